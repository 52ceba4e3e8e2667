package page

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tomtev/page.fun/internal/models"
	"github.com/tomtev/page.fun/internal/pkg/identity"
	"go.uber.org/zap"
)

// Service runs the page operations on behalf of a verified or anonymous caller.
type Service struct {
	store  *Store
	index  *WalletIndex
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store *Store, index *WalletIndex, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, index: index, logger: logger, now: time.Now}
}

// Store exposes the underlying page store.
func (s *Service) Store() *Store { return s.store }

// View loads slug and projects it for the caller. id may be nil.
func (s *Service) View(ctx context.Context, slug string, id *identity.Identity) (*models.PageRecord, bool, error) {
	rec, err := s.store.Get(ctx, slug)
	if err != nil {
		return nil, false, err
	}
	isOwner := id != nil && ResolveOwnership(rec, id.Wallets)
	return ProjectForViewer(rec, isOwner), isOwner, nil
}

// ListForIdentity returns pages owned by the caller's verified wallets. When
// wallet is one of them the result is narrowed to it; any other wallet is
// ignored, so a caller never sees pages of an address they cannot prove.
func (s *Service) ListForIdentity(ctx context.Context, id *identity.Identity, wallet string) ([]*models.PageRecord, error) {
	wallets := id.Wallets
	for _, w := range id.Wallets {
		if strings.EqualFold(w, strings.TrimSpace(wallet)) {
			wallets = []string{w}
			break
		}
	}

	pages := make([]*models.PageRecord, 0)
	seen := make(map[string]struct{})
	for _, w := range wallets {
		recs, err := s.index.List(ctx, w)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			if _, dup := seen[rec.Slug]; dup {
				continue
			}
			seen[rec.Slug] = struct{}{}
			pages = append(pages, rec)
		}
	}
	return pages, nil
}

// Save is create-or-update. A slug held by another wallet is a conflict; a
// slug held by the same wallet is merged with the non-empty fields of req.
func (s *Service) Save(ctx context.Context, id *identity.Identity, req SaveRequest) (bool, error) {
	if err := ValidateSlug(req.Slug); err != nil {
		return false, err
	}
	if err := req.Fields.checkNulls(); err != nil {
		return false, err
	}
	wallet := strings.TrimSpace(req.WalletAddress)
	if wallet == "" {
		return false, &ValidationError{Field: "walletAddress", Message: "is required"}
	}

	existing, err := s.store.Get(ctx, req.Slug)
	switch {
	case errors.Is(err, ErrNotFound):
		existing = nil
	case err != nil:
		return false, err
	case !existing.OwnedBy(wallet):
		return false, ErrConflict
	}

	if !id.HasWallet(wallet) {
		return false, ErrWalletNotVerified
	}

	var rec *models.PageRecord
	switch {
	case req.IsSetupWizard && existing != nil:
		return false, nil
	case req.IsSetupWizard:
		rec = &models.PageRecord{Slug: req.Slug, OwnerWallet: wallet, CreatedAt: s.now().UTC()}
	default:
		if existing != nil {
			rec = existing.Clone()
		} else {
			rec = &models.PageRecord{Slug: req.Slug, OwnerWallet: wallet, CreatedAt: s.now().UTC()}
		}
		req.Fields.ApplyOverlay(rec)
		now := s.now().UTC()
		rec.UpdatedAt = &now
	}

	created, err := s.store.Create(ctx, rec)
	if err != nil {
		return false, err
	}
	if created {
		if err := s.index.Add(ctx, rec.OwnerWallet, rec.Slug, rec.CreatedAt); err != nil {
			s.logger.Error("page stored but wallet index not updated",
				zap.String("slug", rec.Slug), zap.String("wallet", rec.OwnerWallet), zap.Error(err))
		}
	}
	return created, nil
}

// Patch merge-updates slug for its owner.
func (s *Service) Patch(ctx context.Context, id *identity.Identity, req PatchRequest) (*models.PageRecord, error) {
	if strings.TrimSpace(req.Slug) == "" {
		return nil, &ValidationError{Field: "slug", Message: "Slug is required"}
	}
	return s.store.Update(ctx, req.Slug, req.Fields, UpdateOptions{
		Authorize:       ownerOnly(id),
		ExpectedVersion: req.Version,
	})
}

// Delete removes slug and its index entry for its owner.
func (s *Service) Delete(ctx context.Context, id *identity.Identity, slug string) error {
	if strings.TrimSpace(slug) == "" {
		return &ValidationError{Field: "slug", Message: "Slug is required"}
	}
	rec, err := s.store.Get(ctx, slug)
	if err != nil {
		return err
	}
	if err := ownerOnly(id)(rec); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, slug); err != nil {
		return err
	}
	if err := s.index.Remove(ctx, rec.OwnerWallet, slug); err != nil {
		s.logger.Error("page deleted but wallet index not updated",
			zap.String("slug", slug), zap.String("wallet", rec.OwnerWallet), zap.Error(err))
	}
	return nil
}

func ownerOnly(id *identity.Identity) func(*models.PageRecord) error {
	return func(rec *models.PageRecord) error {
		if id == nil || !ResolveOwnership(rec, id.Wallets) {
			return ErrNotOwner
		}
		return nil
	}
}
