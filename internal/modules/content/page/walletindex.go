package page

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tomtev/page.fun/internal/models"
	"github.com/tomtev/page.fun/internal/pkg/redis"
)

// WalletKey is the sorted set of slugs owned by wallet. Addresses are
// lowercased so lookups are case-insensitive.
func WalletKey(wallet string) string {
	return "wallet:" + strings.ToLower(strings.TrimSpace(wallet)) + ":pages"
}

// WalletIndex maps a wallet to the slugs it owns. It is a read-side
// acceleration structure; Store is authoritative.
type WalletIndex struct {
	rdb   *redis.Client
	store *Store
}

func NewWalletIndex(rdb *redis.Client, store *Store) *WalletIndex {
	return &WalletIndex{rdb: rdb, store: store}
}

// Add records slug under wallet. Re-adding keeps the original score.
func (w *WalletIndex) Add(ctx context.Context, wallet, slug string, createdAt time.Time) error {
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if _, err := w.rdb.ZAddNX(ctx, WalletKey(wallet), float64(createdAt.UnixMilli()), slug); err != nil {
		return eris.Wrapf(err, "index %q under %q", slug, wallet)
	}
	return nil
}

// Remove drops slug from wallet's entry; absent members are ignored.
func (w *WalletIndex) Remove(ctx context.Context, wallet, slug string) error {
	if _, err := w.rdb.ZRem(ctx, WalletKey(wallet), slug); err != nil {
		return eris.Wrapf(err, "unindex %q under %q", slug, wallet)
	}
	return nil
}

// Slugs returns the raw membership ordered by creation time.
func (w *WalletIndex) Slugs(ctx context.Context, wallet string) ([]string, error) {
	slugs, err := w.rdb.ZMembers(ctx, WalletKey(wallet))
	if err != nil {
		return nil, eris.Wrapf(err, "list index of %q", wallet)
	}
	return slugs, nil
}

// List resolves every indexed slug to its record. Slugs without a record are
// skipped and left in the index.
func (w *WalletIndex) List(ctx context.Context, wallet string) ([]*models.PageRecord, error) {
	slugs, err := w.Slugs(ctx, wallet)
	if err != nil {
		return nil, err
	}
	out := make([]*models.PageRecord, 0, len(slugs))
	for _, slug := range slugs {
		rec, err := w.store.Get(ctx, slug)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
