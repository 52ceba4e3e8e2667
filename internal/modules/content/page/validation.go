package page

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/tomtev/page.fun/internal/models"
)

var (
	slugPattern    = regexp.MustCompile(`^[A-Za-z0-9-]{1,50}$`)
	httpURLPattern = regexp.MustCompile(`(?i)^https?://[^\s/$.?#].[^\s]*$`)
)

type presetRule struct {
	prefixes    []string
	requiresURL bool
	message     string
	check       func(string) bool
}

var presetRules = map[string]presetRule{
	"telegram":     {prefixes: []string{"https://t.me/"}, requiresURL: true, message: "Invalid Telegram URL"},
	"private-chat": {prefixes: []string{"https://t.me/"}, message: "Invalid Telegram URL"},
	"discord":      {prefixes: []string{"https://discord.gg/", "https://discord.com/"}, requiresURL: true, message: "Invalid Discord URL"},
	"twitter":      {prefixes: []string{"https://twitter.com/", "https://x.com/"}, requiresURL: true, message: "Invalid Twitter URL"},
	"tiktok":       {prefixes: []string{"https://tiktok.com/@", "https://www.tiktok.com/@"}, requiresURL: true, message: "Invalid TikTok URL"},
	"instagram":    {prefixes: []string{"https://instagram.com/", "https://www.instagram.com/"}, requiresURL: true, message: "Invalid Instagram URL"},
	"dexscreener":  {prefixes: []string{"https://dexscreener.com/"}, requiresURL: true, message: "Invalid DexScreener URL"},
	"email": {requiresURL: true, message: "Invalid email format", check: func(u string) bool {
		return strings.Contains(u, "@") || strings.HasPrefix(u, "mailto:")
	}},
	"generic": {requiresURL: true, message: "Invalid URL format", check: httpURLPattern.MatchString},
}

var tagMessages = map[string]string{
	"required": "is required",
	"slug":     "Only letters, numbers, and hyphens allowed (max 50)",
	"httpurl":  "Invalid URL format",
	"amount":   "must be a positive number",
	"oneof":    "must be one of default, minimal, modern",
	"min":      "must not be negative",
	"max":      "is too long",
	"uniqueid": "Duplicate item id",
}

// Validator is the validation boundary every write path goes through.
type Validator struct {
	v *validator.Validate
}

// NewValidator registers the page rules on a fresh validator instance.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		return httpURLPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		return err == nil && d.IsPositive()
	})
	v.RegisterStructValidation(validateItem, models.LinkItem{})
	v.RegisterStructValidation(validateItemIDs, models.PageRecord{})
	return &Validator{v: v}
}

// Validate returns the first violation as a *ValidationError, or nil.
func (v *Validator) Validate(rec *models.PageRecord) error {
	err := v.v.Struct(rec)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return &ValidationError{Field: "", Message: err.Error()}
	}
	return toValidationError(errs[0])
}

// ValidateSlug checks a slug outside of a full record.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return &ValidationError{Field: "slug", Message: tagMessages["slug"]}
	}
	return nil
}

func toValidationError(fe validator.FieldError) *ValidationError {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	msg := tagMessages[fe.Tag()]
	switch fe.Tag() {
	case "preseturl":
		msg = fe.Param()
	case "":
		msg = "is invalid"
	}
	if msg == "" {
		msg = "failed " + fe.Tag() + " validation"
	}
	return &ValidationError{Field: field, Message: msg}
}

// CheckItemURL returns the message for an item whose url breaks its preset's
// grammar, or "" when the url is acceptable.
func CheckItemURL(item models.LinkItem) string {
	url := item.URLValue()
	rule, known := presetRules[item.PresetID]
	if url == "" {
		if known && rule.requiresURL {
			return "URL is required for this item type"
		}
		return ""
	}
	switch {
	case known && rule.check != nil:
		if !rule.check(url) {
			return rule.message
		}
	case known:
		for _, p := range rule.prefixes {
			if strings.HasPrefix(url, p) {
				return ""
			}
		}
		return rule.message
	case !item.IsPlugin:
		if !httpURLPattern.MatchString(url) {
			return "Invalid URL format for this item type"
		}
	}
	return ""
}

func validateItem(sl validator.StructLevel) {
	item := sl.Current().Interface().(models.LinkItem)
	if msg := CheckItemURL(item); msg != "" {
		sl.ReportError(item.URL, "url", "URL", "preseturl", msg)
	}
}

func validateItemIDs(sl validator.StructLevel) {
	rec := sl.Current().Interface().(models.PageRecord)
	seen := make(map[string]struct{}, len(rec.Items))
	for _, item := range rec.Items {
		if _, dup := seen[item.ID]; dup {
			sl.ReportError(rec.Items, "items", "Items", "uniqueid", item.ID)
			return
		}
		seen[item.ID] = struct{}{}
	}
}
