package models

import (
	"strings"
	"time"
)

// DesignStyle is the closed set of page themes.
type DesignStyle string

const (
	DesignDefault DesignStyle = "default"
	DesignMinimal DesignStyle = "minimal"
	DesignModern  DesignStyle = "modern"
)

// Fonts holds the four optional font slots of a page.
type Fonts struct {
	Global    string `json:"global,omitempty"`
	Heading   string `json:"heading,omitempty"`
	Paragraph string `json:"paragraph,omitempty"`
	Links     string `json:"links,omitempty"`
}

// PageRecord is a link page stored under page:{slug}.
type PageRecord struct {
	Slug           string      `json:"slug"                     validate:"required,slug"`
	OwnerWallet    string      `json:"walletAddress"            validate:"required,max=128"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      *time.Time  `json:"updatedAt,omitempty"`
	Title          string      `json:"title,omitempty"          validate:"max=100"`
	Description    string      `json:"description,omitempty"    validate:"max=500"`
	Image          string      `json:"image,omitempty"          validate:"omitempty,httpurl"`
	ConnectedToken string      `json:"connectedToken,omitempty" validate:"max=128"`
	TokenSymbol    string      `json:"tokenSymbol,omitempty"    validate:"max=32"`
	GateThreshold  string      `json:"gateThreshold,omitempty"  validate:"omitempty,amount"`
	DesignStyle    DesignStyle `json:"designStyle,omitempty"    validate:"omitempty,oneof=default minimal modern"`
	Fonts          *Fonts      `json:"fonts,omitempty"`
	Items          []LinkItem  `json:"items,omitempty"          validate:"dive"`
	Version        int64       `json:"version"`
}

// LinkItem is a single entry on a page.
type LinkItem struct {
	ID             string   `json:"id"                       validate:"required"`
	PresetID       string   `json:"presetId"                 validate:"required"`
	Title          string   `json:"title,omitempty"          validate:"max=200"`
	URL            *string  `json:"url"`
	Order          int      `json:"order"                    validate:"min=0"`
	IsPlugin       bool     `json:"isPlugin,omitempty"`
	TokenGated     bool     `json:"tokenGated,omitempty"`
	RequiredTokens []string `json:"requiredTokens,omitempty"`
}

// URLValue returns the item URL or "" when absent.
func (i LinkItem) URLValue() string {
	if i.URL == nil {
		return ""
	}
	return *i.URL
}

// OwnedBy reports whether wallet owns the page. Addresses compare case-insensitively.
func (p *PageRecord) OwnedBy(wallet string) bool {
	w := strings.TrimSpace(wallet)
	return w != "" && strings.EqualFold(strings.TrimSpace(p.OwnerWallet), w)
}

// Clone returns a copy that shares no mutable state with p.
func (p *PageRecord) Clone() *PageRecord {
	out := *p
	if p.UpdatedAt != nil {
		t := *p.UpdatedAt
		out.UpdatedAt = &t
	}
	if p.Fonts != nil {
		f := *p.Fonts
		out.Fonts = &f
	}
	if p.Items != nil {
		out.Items = make([]LinkItem, len(p.Items))
		for i, item := range p.Items {
			out.Items[i] = item.clone()
		}
	}
	return &out
}

func (i LinkItem) clone() LinkItem {
	out := i
	if i.URL != nil {
		u := *i.URL
		out.URL = &u
	}
	if i.RequiredTokens != nil {
		out.RequiredTokens = append([]string(nil), i.RequiredTokens...)
	}
	return out
}
