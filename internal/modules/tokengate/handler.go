package tokengate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tomtev/page.fun/internal/middleware"
	"github.com/tomtev/page.fun/internal/models"
	"github.com/tomtev/page.fun/internal/modules/content/page"
	"github.com/tomtev/page.fun/internal/pkg/response"
	"go.uber.org/zap"
)

// PageSource loads the page whose gate is being checked.
type PageSource interface {
	Get(ctx context.Context, slug string) (*models.PageRecord, error)
}

// AccessRequest is the body of POST /access-private-content.
type AccessRequest struct {
	WalletAddress string `json:"walletAddress"`
	BlobURL       string `json:"blobUrl"`
	PageSlug      string `json:"pageSlug"`
}

type Handler struct {
	pages            PageSource
	verifier         *Verifier
	signer           Signer
	defaultThreshold string
	logger           *zap.Logger
}

// NewHandler wires the gate. signer may be nil when no private bucket is
// configured; unlocking then fails with 500.
func NewHandler(pages PageSource, verifier *Verifier, signer Signer, defaultThreshold string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(defaultThreshold) == "" {
		defaultThreshold = "1"
	}
	return &Handler{pages: pages, verifier: verifier, signer: signer, defaultThreshold: defaultThreshold, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/access-private-content", middleware.RequireIdentity(), h.access)
}

func (h *Handler) access(c *gin.Context) {
	var req AccessRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.WalletAddress == "" || req.BlobURL == "" || req.PageSlug == "" {
		response.BadRequest(c, "Missing required parameters")
		return
	}
	if !middleware.CurrentIdentity(c).HasWallet(req.WalletAddress) {
		response.Unauthorized(c, "Wallet not owned by authenticated user")
		return
	}

	ctx := c.Request.Context()
	rec, err := h.pages.Get(ctx, req.PageSlug)
	if errors.Is(err, page.ErrNotFound) {
		response.NotFoundMsg(c, "Page not found")
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if rec.ConnectedToken == "" {
		response.BadRequest(c, "No token is connected to this page")
		return
	}

	threshold := rec.GateThreshold
	if threshold == "" {
		threshold = h.defaultThreshold
	}
	decision, err := h.verifier.CheckAccess(ctx, req.WalletAddress, rec.ConnectedToken, threshold)
	if errors.Is(err, ErrInvalidThreshold) {
		response.BadRequest(c, "This page has an invalid token gate threshold")
		return
	}
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "Failed to verify token holdings", nil)
		return
	}

	symbol := rec.TokenSymbol
	if symbol == "" {
		symbol = "tokens"
	}
	if !decision.Allowed {
		h.logger.Info("token gate denied",
			zap.String("slug", rec.Slug), zap.String("wallet", req.WalletAddress), zap.String("balance", decision.Balance))
		response.Error(c, http.StatusForbidden,
			fmt.Sprintf("Insufficient token balance. Required: %s, Current: %s", threshold, decision.Balance),
			gin.H{"tokenSymbol": symbol, "balance": decision.Balance})
		return
	}

	if h.signer == nil {
		response.InternalError(c, ErrSigningDisabled)
		return
	}
	signed, err := h.signer.IssueSignedAccess(ctx, req.BlobURL)
	if errors.Is(err, ErrResourceOutsideBucket) {
		response.Invalid(c, "blobUrl", "Resource is not private content of this service")
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, signed)
}
