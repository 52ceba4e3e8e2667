package page

import (
	"testing"

	"github.com/tomtev/page.fun/internal/models"
)

func TestResolveOwnership(t *testing.T) {
	t.Parallel()

	rec := alicePage()
	if !ResolveOwnership(rec, []string{"other", "wX1"}) {
		t.Fatalf("expected case-insensitive match in verified set")
	}
	if ResolveOwnership(rec, nil) || ResolveOwnership(rec, []string{"Wx2"}) {
		t.Fatalf("expected no ownership without a matching wallet")
	}
	if ResolveOwnership(nil, []string{"Wx1"}) {
		t.Fatalf("expected nil record to be unowned")
	}
}

func TestProjectForViewer(t *testing.T) {
	t.Parallel()

	orders := [][]int{{0, 1, 2}, {2, 0, 1}, {1, 2, 0}}
	for _, order := range orders {
		rec := alicePage()
		extra := item("c", "generic", "https://example.com/hidden")
		extra.TokenGated = true
		rec.Items = append(rec.Items, extra)
		shuffled := make([]models.LinkItem, len(order))
		for i, j := range order {
			shuffled[i] = rec.Items[j]
		}
		rec.Items = shuffled

		owner := ProjectForViewer(rec, true)
		if owner != rec {
			t.Fatalf("expected owner to get the record unchanged")
		}

		visitor := ProjectForViewer(rec, false)
		for i, it := range visitor.Items {
			if it.TokenGated && it.URL != nil {
				t.Fatalf("order %v: expected gated item %q url withheld", order, it.ID)
			}
			if !it.TokenGated && it.URLValue() != rec.Items[i].URLValue() {
				t.Fatalf("order %v: expected ungated item %q url kept", order, it.ID)
			}
			if it.ID != rec.Items[i].ID || it.Title != rec.Items[i].Title || it.PresetID != rec.Items[i].PresetID {
				t.Fatalf("order %v: expected item metadata visible", order)
			}
		}
		for _, it := range rec.Items {
			if it.URL == nil {
				t.Fatalf("expected projection not to mutate the stored record")
			}
		}
	}
}
