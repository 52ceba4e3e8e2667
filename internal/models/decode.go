package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DecodePageRecord decodes a stored page blob leniently.
//
// Unknown fields are ignored, nulls become zero values, numeric fields accept
// numbers or numeric strings, and legacy "ownerWallet" is read when
// "walletAddress" is missing. Fields of the wrong type are dropped instead of
// failing the whole record. Only malformed JSON is an error.
func DecodePageRecord(data []byte) (*PageRecord, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode page record: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("decode page record: not an object")
	}

	p := &PageRecord{
		Slug:           looseString(raw["slug"]),
		OwnerWallet:    looseString(raw["walletAddress"]),
		Title:          looseString(raw["title"]),
		Description:    looseString(raw["description"]),
		Image:          looseString(raw["image"]),
		ConnectedToken: looseString(raw["connectedToken"]),
		TokenSymbol:    looseString(raw["tokenSymbol"]),
		GateThreshold:  looseString(raw["gateThreshold"]),
		DesignStyle:    DesignStyle(looseString(raw["designStyle"])),
		Version:        looseInt(raw["version"]),
	}
	if p.OwnerWallet == "" {
		p.OwnerWallet = looseString(raw["ownerWallet"])
	}
	if t, ok := looseTime(raw["createdAt"]); ok {
		p.CreatedAt = t
	}
	if t, ok := looseTime(raw["updatedAt"]); ok {
		p.UpdatedAt = &t
	}

	var fonts map[string]json.RawMessage
	if json.Unmarshal(nonNull(raw["fonts"]), &fonts) == nil && fonts != nil {
		p.Fonts = &Fonts{
			Global:    looseString(fonts["global"]),
			Heading:   looseString(fonts["heading"]),
			Paragraph: looseString(fonts["paragraph"]),
			Links:     looseString(fonts["links"]),
		}
	}

	var items []map[string]json.RawMessage
	if json.Unmarshal(nonNull(raw["items"]), &items) == nil && len(items) > 0 {
		p.Items = make([]LinkItem, 0, len(items))
		for _, it := range items {
			if it == nil {
				continue
			}
			item := LinkItem{
				ID:         looseString(it["id"]),
				PresetID:   looseString(it["presetId"]),
				Title:      looseString(it["title"]),
				Order:      int(looseInt(it["order"])),
				IsPlugin:   looseBool(it["isPlugin"]),
				TokenGated: looseBool(it["tokenGated"]),
			}
			if item.PresetID == "" {
				item.PresetID = looseString(it["type"])
			}
			if u := looseString(it["url"]); u != "" {
				item.URL = &u
			}
			var tokens []string
			if json.Unmarshal(nonNull(it["requiredTokens"]), &tokens) == nil && len(tokens) > 0 {
				item.RequiredTokens = tokens
			}
			p.Items = append(p.Items, item)
		}
	}
	return p, nil
}

func nonNull(b json.RawMessage) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}

func looseString(b json.RawMessage) string {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(b, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(b, &n) == nil {
		return n.String()
	}
	return ""
}

func looseInt(b json.RawMessage) int64 {
	str := strings.TrimSpace(looseString(b))
	if str == "" {
		return 0
	}
	if v, err := strconv.ParseInt(str, 10, 64); err == nil {
		return v
	}
	// Fractional or exponent forms such as 2.0 or 1e3.
	f, err := strconv.ParseFloat(str, 64)
	if err != nil || math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

func looseBool(b json.RawMessage) bool {
	var v bool
	if json.Unmarshal(b, &v) == nil {
		return v
	}
	return strings.EqualFold(looseString(b), "true")
}

func looseTime(b json.RawMessage) (time.Time, bool) {
	s := looseString(b)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}
