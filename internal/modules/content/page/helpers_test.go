package page

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/tomtev/page.fun/internal/models"
	"github.com/tomtev/page.fun/internal/pkg/identity"
	"github.com/tomtev/page.fun/internal/pkg/redis"
)

type testEnv struct {
	mr    *miniredis.Miniredis
	rdb   *redis.Client
	store *Store
	index *WalletIndex
	svc   *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewStore(rdb, NewValidator())
	index := NewWalletIndex(rdb, store)
	return &testEnv{mr: mr, rdb: rdb, store: store, index: index, svc: NewService(store, index, nil)}
}

func strPtr(s string) *string { return &s }

func item(id, preset, url string) models.LinkItem {
	it := models.LinkItem{ID: id, PresetID: preset, Title: id}
	if url != "" {
		it.URL = strPtr(url)
	}
	return it
}

func alicePage() *models.PageRecord {
	gated := item("b", "discord", "https://discord.gg/secret")
	gated.TokenGated = true
	gated.Order = 1
	gated.RequiredTokens = []string{"TOK1"}
	return &models.PageRecord{
		Slug:           "alice",
		OwnerWallet:    "Wx1",
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Title:          "Alice",
		ConnectedToken: "TOK1",
		TokenSymbol:    "TOK",
		GateThreshold:  "100",
		Items:          []models.LinkItem{item("a", "telegram", "https://t.me/alice"), gated},
	}
}

func wallets(ws ...string) *identity.Identity {
	return &identity.Identity{UserID: "user", Wallets: ws}
}
