package page

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tomtev/page.fun/internal/middleware"
	"github.com/tomtev/page.fun/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts /page-store. Identity must already be resolved on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/page-store")
	g.GET("", h.get)
	g.POST("", h.save)
	g.PATCH("", h.patch)
	g.DELETE("", h.delete)
}

func (h *Handler) get(c *gin.Context) {
	slug := strings.TrimSpace(c.Query("slug"))
	wallet := strings.TrimSpace(c.Query("walletAddress"))

	switch {
	case wallet != "":
		if !middleware.Authenticate(c) {
			return
		}
		pages, err := h.svc.ListForIdentity(c.Request.Context(), middleware.CurrentIdentity(c), wallet)
		if err != nil {
			writeError(c, err)
			return
		}
		response.OK(c, gin.H{"pages": pages})
	case slug != "":
		rec, isOwner, err := h.svc.View(c.Request.Context(), slug, middleware.CurrentIdentity(c))
		if errors.Is(err, ErrNotFound) {
			response.OK(c, gin.H{"record": nil, "isOwner": false})
			return
		}
		if err != nil {
			writeError(c, err)
			return
		}
		response.OK(c, gin.H{"record": rec, "isOwner": isOwner})
	default:
		response.BadRequest(c, "Slug or wallet address is required")
	}
}

func (h *Handler) save(c *gin.Context) {
	if !middleware.Authenticate(c) {
		return
	}
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request data")
		return
	}
	created, err := h.svc.Save(c.Request.Context(), middleware.CurrentIdentity(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "created": created})
}

func (h *Handler) patch(c *gin.Context) {
	if !middleware.Authenticate(c) {
		return
	}
	var req PatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request data")
		return
	}
	if ifMatch := strings.Trim(strings.TrimSpace(c.GetHeader("If-Match")), `"`); ifMatch != "" && req.Version == nil {
		v, err := strconv.ParseInt(ifMatch, 10, 64)
		if err != nil {
			response.BadRequest(c, "If-Match must be a page version")
			return
		}
		req.Version = &v
	}
	rec, err := h.svc.Patch(c.Request.Context(), middleware.CurrentIdentity(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("ETag", strconv.Quote(strconv.FormatInt(rec.Version, 10)))
	c.JSON(http.StatusOK, gin.H{"success": true, "version": rec.Version})
}

func (h *Handler) delete(c *gin.Context) {
	if !middleware.Authenticate(c) {
		return
	}
	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Slug is required")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentIdentity(c), req.Slug); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c)
}

func writeError(c *gin.Context, err error) {
	if ve, ok := AsValidationError(err); ok {
		response.Invalid(c, ve.Field, ve.Message)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFoundMsg(c, "Page not found")
	case errors.Is(err, ErrConflict):
		response.BadRequest(c, "This URL is already taken")
	case errors.Is(err, ErrStaleWrite):
		response.Conflict(c, "Page was modified by another request, reload and retry")
	case errors.Is(err, ErrNotOwner), errors.Is(err, ErrWalletNotVerified):
		response.Unauthorized(c, "Wallet not owned by authenticated user")
	default:
		response.InternalError(c, err)
	}
}
