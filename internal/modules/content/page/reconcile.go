package page

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tomtev/page.fun/internal/pkg/redis"
	"go.uber.org/zap"
)

// Report summarizes one reconciliation pass.
type Report struct {
	PagesScanned int `json:"pagesScanned"`
	IndexAdded   int `json:"indexAdded"`
	IndexRemoved int `json:"indexRemoved"`
}

// Reconciler repairs drift between Store and WalletIndex. Request paths never
// repair; this job is the only writer that does.
type Reconciler struct {
	rdb    *redis.Client
	store  *Store
	index  *WalletIndex
	logger *zap.Logger
}

func NewReconciler(rdb *redis.Client, store *Store, index *WalletIndex, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{rdb: rdb, store: store, index: index, logger: logger}
}

// Run indexes every stored page under its owner, then drops index members
// whose page is gone or owned by another wallet.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var report Report

	err := r.rdb.ScanKeys(ctx, pageKeyPrefix+"*", func(key string) error {
		slug := strings.TrimPrefix(key, pageKeyPrefix)
		rec, err := r.store.Get(ctx, slug)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			r.logger.Warn("skipping unreadable page", zap.String("slug", slug), zap.Error(err))
			return nil
		}
		report.PagesScanned++
		if rec.OwnerWallet == "" {
			return nil
		}
		added, err := r.rdb.ZAddNX(ctx, WalletKey(rec.OwnerWallet), float64(rec.CreatedAt.UnixMilli()), slug)
		if err != nil {
			return eris.Wrapf(err, "index %q", slug)
		}
		if added {
			report.IndexAdded++
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	err = r.rdb.ScanKeys(ctx, "wallet:*:pages", func(key string) error {
		wallet := strings.TrimSuffix(strings.TrimPrefix(key, "wallet:"), ":pages")
		slugs, err := r.index.Slugs(ctx, wallet)
		if err != nil {
			return err
		}
		var stale []string
		for _, slug := range slugs {
			rec, err := r.store.Get(ctx, slug)
			switch {
			case errors.Is(err, ErrNotFound):
				stale = append(stale, slug)
			case err != nil:
				r.logger.Warn("skipping unreadable page", zap.String("slug", slug), zap.Error(err))
			case !rec.OwnedBy(wallet):
				stale = append(stale, slug)
			}
		}
		if len(stale) == 0 {
			return nil
		}
		n, err := r.rdb.ZRem(ctx, key, stale...)
		if err != nil {
			return eris.Wrapf(err, "prune %s", key)
		}
		report.IndexRemoved += int(n)
		return nil
	})
	if err != nil {
		return report, err
	}

	r.logger.Info("wallet index reconciled",
		zap.Int("pages", report.PagesScanned),
		zap.Int("added", report.IndexAdded),
		zap.Int("removed", report.IndexRemoved))
	return report, nil
}
