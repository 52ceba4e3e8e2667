package page

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/tomtev/page.fun/internal/models"
	"github.com/tomtev/page.fun/internal/pkg/redis"
)

const (
	pageKeyPrefix = "page:"
	maxTxAttempts = 3
)

// PageKey is the Redis key holding the blob for slug.
func PageKey(slug string) string { return pageKeyPrefix + slug }

// Store keeps page records as JSON blobs in Redis.
type Store struct {
	rdb       *redis.Client
	validator *Validator
	now       func() time.Time
}

func NewStore(rdb *redis.Client, v *Validator) *Store {
	if v == nil {
		v = NewValidator()
	}
	return &Store{rdb: rdb, validator: v, now: time.Now}
}

// Get returns the stored record or ErrNotFound.
func (s *Store) Get(ctx context.Context, slug string) (*models.PageRecord, error) {
	raw, err := s.rdb.Get(ctx, PageKey(slug))
	if err != nil {
		return nil, eris.Wrapf(err, "get page %q", slug)
	}
	if raw == "" {
		return nil, ErrNotFound
	}
	return decodeStored(slug, raw)
}

func decodeStored(slug, raw string) (*models.PageRecord, error) {
	rec, err := models.DecodePageRecord([]byte(raw))
	if err != nil {
		return nil, eris.Wrapf(err, "page %q", slug)
	}
	if rec.Slug == "" {
		rec.Slug = slug
	}
	return rec, nil
}

// Create writes rec unless the slug belongs to another wallet. When the same
// owner already has the slug the write replaces it, keeping createdAt.
func (s *Store) Create(ctx context.Context, rec *models.PageRecord) (bool, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	if err := s.validator.Validate(rec); err != nil {
		return false, err
	}

	key := PageKey(rec.Slug)
	var created bool
	err := s.watch(ctx, key, func(tx *goredis.Tx) error {
		created = false
		raw, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, goredis.Nil):
			created = true
			rec.Version = 1
		case err != nil:
			return err
		default:
			existing, err := decodeStored(rec.Slug, raw)
			if err != nil {
				return err
			}
			if !existing.OwnedBy(rec.OwnerWallet) {
				return ErrConflict
			}
			rec.OwnerWallet = existing.OwnerWallet
			rec.CreatedAt = existing.CreatedAt
			rec.Version = existing.Version + 1
		}
		return writeTx(ctx, tx, key, rec)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// UpdateOptions controls a read-merge-write.
type UpdateOptions struct {
	// Authorize runs against the current record before anything is written.
	Authorize func(current *models.PageRecord) error
	// ExpectedVersion turns the update into a compare-and-set. Without it
	// concurrent updates race and the last write wins.
	ExpectedVersion *int64
}

// Update reads the record, authorizes, applies fields, revalidates and writes
// the result back.
func (s *Store) Update(ctx context.Context, slug string, fields Fields, opts UpdateOptions) (*models.PageRecord, error) {
	if err := fields.checkNulls(); err != nil {
		return nil, err
	}
	merge := func(raw string) (*models.PageRecord, error) {
		current, err := decodeStored(slug, raw)
		if err != nil {
			return nil, err
		}
		if opts.Authorize != nil {
			if err := opts.Authorize(current); err != nil {
				return nil, err
			}
		}
		if opts.ExpectedVersion != nil && *opts.ExpectedVersion != current.Version {
			return nil, ErrStaleWrite
		}
		next := current.Clone()
		fields.ApplyPatch(next)
		now := s.now().UTC()
		next.UpdatedAt = &now
		next.Version = current.Version + 1
		if err := s.validator.Validate(next); err != nil {
			return nil, err
		}
		return next, nil
	}

	key := PageKey(slug)
	if opts.ExpectedVersion == nil {
		raw, err := s.rdb.Get(ctx, key)
		if err != nil {
			return nil, eris.Wrapf(err, "get page %q", slug)
		}
		if raw == "" {
			return nil, ErrNotFound
		}
		next, err := merge(raw)
		if err != nil {
			return nil, err
		}
		if err := s.put(ctx, next); err != nil {
			return nil, err
		}
		return next, nil
	}

	var next *models.PageRecord
	err := s.watch(ctx, key, func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, goredis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if next, err = merge(raw); err != nil {
			return err
		}
		return writeTx(ctx, tx, key, next)
	})
	if errors.Is(err, goredis.TxFailedErr) {
		return nil, ErrStaleWrite
	}
	if err != nil {
		return nil, err
	}
	return next, nil
}

// Delete removes the blob. The caller confirms ownership first.
func (s *Store) Delete(ctx context.Context, slug string) error {
	n, err := s.rdb.Del(ctx, PageKey(slug))
	if err != nil {
		return eris.Wrapf(err, "delete page %q", slug)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) put(ctx context.Context, rec *models.PageRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "encode page")
	}
	if err := s.rdb.Set(ctx, PageKey(rec.Slug), data, 0); err != nil {
		return eris.Wrapf(err, "write page %q", rec.Slug)
	}
	return nil
}

// watch runs fn under WATCH key, retrying when another client touched the key
// between the read and the write.
func (s *Store) watch(ctx context.Context, key string, fn func(tx *goredis.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = s.rdb.Raw().Watch(ctx, fn, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	if err != nil && !isDomainError(err) && !errors.Is(err, goredis.TxFailedErr) {
		return eris.Wrapf(err, "transaction on %q", key)
	}
	return err
}

func writeTx(ctx context.Context, tx *goredis.Tx, key string, rec *models.PageRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "encode page")
	}
	_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, key, data, 0)
		return nil
	})
	return err
}

func isDomainError(err error) bool {
	if _, ok := AsValidationError(err); ok {
		return true
	}
	for _, target := range []error{ErrNotFound, ErrConflict, ErrStaleWrite, ErrNotOwner, ErrWalletNotVerified} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
