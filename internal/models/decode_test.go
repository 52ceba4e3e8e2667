package models

import (
	"testing"
	"time"
)

func TestDecodePageRecordReadsLegacyBlob(t *testing.T) {
	t.Parallel()

	blob := []byte(`{
		"walletAddress": "Wx1",
		"createdAt": "2024-11-02T10:00:00.000Z",
		"title": null,
		"designStyle": "minimal",
		"connectedToken": "TOK1",
		"unknown": {"nested": true},
		"items": [
			{"id": "a", "presetId": "telegram", "url": "https://t.me/alice", "order": 0},
			{"id": "b", "presetId": "discord", "url": null, "order": "2", "tokenGated": true},
			null
		]
	}`)

	p, err := DecodePageRecord(blob)
	if err != nil {
		t.Fatalf("DecodePageRecord returned error: %v", err)
	}

	if p.OwnerWallet != "Wx1" {
		t.Fatalf("expected owner Wx1, got %q", p.OwnerWallet)
	}
	if p.Title != "" {
		t.Fatalf("expected null title to decode as empty, got %q", p.Title)
	}
	if p.Version != 0 {
		t.Fatalf("expected missing version to decode as 0, got %d", p.Version)
	}
	want := time.Date(2024, 11, 2, 10, 0, 0, 0, time.UTC)
	if !p.CreatedAt.Equal(want) {
		t.Fatalf("expected createdAt %v, got %v", want, p.CreatedAt)
	}
	if len(p.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(p.Items))
	}
	if p.Items[0].URLValue() != "https://t.me/alice" {
		t.Fatalf("unexpected first url %q", p.Items[0].URLValue())
	}
	if p.Items[1].URL != nil {
		t.Fatalf("expected null url to stay absent")
	}
	if p.Items[1].Order != 2 || !p.Items[1].TokenGated {
		t.Fatalf("expected string order and gate flag to decode, got %+v", p.Items[1])
	}
}

func TestDecodePageRecordRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	if _, err := DecodePageRecord([]byte(`{"slug":`)); err == nil {
		t.Fatalf("expected malformed blob to fail")
	}
	if _, err := DecodePageRecord([]byte(`null`)); err == nil {
		t.Fatalf("expected null blob to fail")
	}
}

func TestCloneDoesNotShareItems(t *testing.T) {
	t.Parallel()

	u := "https://t.me/alice"
	p := &PageRecord{Slug: "alice", Items: []LinkItem{{ID: "a", URL: &u}}}
	c := p.Clone()
	c.Items[0].URL = nil
	c.Items = append(c.Items, LinkItem{ID: "b"})

	if p.Items[0].URL == nil || len(p.Items) != 1 {
		t.Fatalf("expected original record to be untouched, got %+v", p.Items)
	}
}

func TestOwnedByIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	p := &PageRecord{OwnerWallet: "WxAbC"}
	if !p.OwnedBy("wxabc") {
		t.Fatalf("expected case-insensitive owner match")
	}
	if p.OwnedBy("") {
		t.Fatalf("expected empty wallet never to own a page")
	}
}

func TestDecodePageRecordKeepsFullVersion(t *testing.T) {
	t.Parallel()

	cases := map[string]int64{
		`{"version": 3000000000}`:         3000000000,
		`{"version": 9007199254740993}`:   9007199254740993,
		`{"version": "9007199254740993"}`: 9007199254740993,
		`{"version": 7.0}`:                7,
		`{"version": "soon"}`:             0,
	}
	for blob, want := range cases {
		p, err := DecodePageRecord([]byte(blob))
		if err != nil {
			t.Fatalf("%s: DecodePageRecord returned error: %v", blob, err)
		}
		if p.Version != want {
			t.Fatalf("%s: expected version %d, got %d", blob, want, p.Version)
		}
	}
}
