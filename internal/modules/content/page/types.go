package page

import (
	"bytes"
	"encoding/json"

	"github.com/tomtev/page.fun/internal/models"
)

// Field records whether a JSON property was present and whether it was null.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Null = true
		var zero T
		f.Value = zero
		return nil
	}
	return json.Unmarshal(data, &f.Value)
}

// Present reports a non-null value was sent.
func (f Field[T]) Present() bool { return f.Set && !f.Null }

// Fields is the editable part of a page. Ownership, slug and timestamps are
// not editable.
type Fields struct {
	Title          Field[string]             `json:"title"`
	Description    Field[string]             `json:"description"`
	Image          Field[string]             `json:"image"`
	ConnectedToken Field[string]             `json:"connectedToken"`
	TokenSymbol    Field[string]             `json:"tokenSymbol"`
	GateThreshold  Field[string]             `json:"gateThreshold"`
	DesignStyle    Field[models.DesignStyle] `json:"designStyle"`
	Fonts          Field[*models.Fonts]      `json:"fonts"`
	Items          Field[[]models.LinkItem]  `json:"items"`
}

// checkNulls rejects explicit nulls on fields that cannot be cleared.
func (f Fields) checkNulls() error {
	if f.Items.Set && f.Items.Null {
		return &ValidationError{Field: "items", Message: "Expected array, received null"}
	}
	return nil
}

// ApplyPatch overlays every field present in f, including explicit nulls
// which clear the stored value. Items are replaced as a unit.
func (f Fields) ApplyPatch(rec *models.PageRecord) {
	patchString(&rec.Title, f.Title)
	patchString(&rec.Description, f.Description)
	patchString(&rec.Image, f.Image)
	patchString(&rec.ConnectedToken, f.ConnectedToken)
	patchString(&rec.TokenSymbol, f.TokenSymbol)
	patchString(&rec.GateThreshold, f.GateThreshold)
	if f.DesignStyle.Set {
		rec.DesignStyle = f.DesignStyle.Value
	}
	if f.Fonts.Set {
		rec.Fonts = f.Fonts.Value
	}
	if f.Items.Present() {
		rec.Items = f.Items.Value
	}
}

// ApplyOverlay copies only non-empty values, leaving everything else as
// stored. This is the create-or-update merge of POST.
func (f Fields) ApplyOverlay(rec *models.PageRecord) {
	overlayString(&rec.Title, f.Title)
	overlayString(&rec.Description, f.Description)
	overlayString(&rec.Image, f.Image)
	overlayString(&rec.ConnectedToken, f.ConnectedToken)
	overlayString(&rec.TokenSymbol, f.TokenSymbol)
	overlayString(&rec.GateThreshold, f.GateThreshold)
	if f.DesignStyle.Present() && f.DesignStyle.Value != "" {
		rec.DesignStyle = f.DesignStyle.Value
	}
	if f.Fonts.Present() && f.Fonts.Value != nil {
		rec.Fonts = f.Fonts.Value
	}
	if f.Items.Present() {
		rec.Items = f.Items.Value
	}
}

func patchString(dst *string, f Field[string]) {
	if f.Set {
		*dst = f.Value
	}
}

func overlayString(dst *string, f Field[string]) {
	if f.Present() && f.Value != "" {
		*dst = f.Value
	}
}

// SaveRequest is the POST create-or-update body.
type SaveRequest struct {
	Slug          string `json:"slug"`
	WalletAddress string `json:"walletAddress"`
	IsSetupWizard bool   `json:"isSetupWizard"`
	Fields
}

// PatchRequest is the PATCH merge-update body. Version, when set, must match
// the stored version.
type PatchRequest struct {
	Slug    string `json:"slug"`
	Version *int64 `json:"version"`
	Fields
}

// DeleteRequest is the DELETE body.
type DeleteRequest struct {
	Slug string `json:"slug"`
}
