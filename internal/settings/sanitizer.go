package settings

import (
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/adminstyler/adminstyler/internal/errors"
)

// maxTextLength bounds free-text settings; longer input collapses to the
// empty string rather than failing, since text always has a safe
// representation.
const maxTextLength = 1000

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

func strictTextPolicy() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}

// Result is the outcome of sanitizing one raw value: either a canonical
// value or a rejection reason, never both.
type Result struct {
	Valid  bool
	Value  string
	Reason string
}

func valid(value string) Result {
	return Result{Valid: true, Value: value}
}

func invalid(reason string) Result {
	return Result{Reason: reason}
}

// Sanitize normalizes a raw untrusted value according to the setting's
// type and constraints. It is a pure function: rejections are returned,
// never thrown, so callers can aggregate partial failures. Callers decide
// whether to substitute a default for a rejected value; the sanitizer
// never does.
func Sanitize(raw string, def Definition) Result {
	switch def.Type {
	case TypeColor:
		return sanitizeColor(raw)
	case TypeNumber:
		return sanitizeNumber(raw, def.Min, def.Max)
	case TypeURL:
		return sanitizeURL(raw)
	case TypeBoolean:
		return sanitizeBoolean(raw)
	case TypeText:
		return sanitizeText(raw)
	default:
		return invalid("unknown setting type")
	}
}

// sanitizeColor strips everything outside [#0-9A-Fa-f] and accepts only
// 6-digit hex colors, canonicalized to uppercase.
func sanitizeColor(raw string) Result {
	stripped := strings.Map(func(r rune) rune {
		switch {
		case r == '#':
			return r
		case r >= '0' && r <= '9':
			return r
		case r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
			return r
		default:
			return -1
		}
	}, raw)

	if !hexColorPattern.MatchString(stripped) {
		return invalid("bad color format")
	}
	return valid(strings.ToUpper(stripped))
}

// sanitizeNumber parses an integer and checks it against the inclusive
// [min, max] range. Out-of-range values are rejected, not clamped.
func sanitizeNumber(raw string, min, max int) Result {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return invalid("not a number")
	}
	if n < min || n > max {
		return invalid("out of range")
	}
	return valid(strconv.Itoa(n))
}

// sanitizeURL accepts only absolute http/https URLs and returns the
// trimmed input unmodified on success.
func sanitizeURL(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return invalid("bad url")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return invalid("bad url scheme")
	}
	if parsed.Host == "" {
		return invalid("missing host")
	}
	return valid(trimmed)
}

// sanitizeBoolean coerces the usual true/false spellings
func sanitizeBoolean(raw string) Result {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1":
		return valid("true")
	case "false", "0":
		return valid("false")
	default:
		return invalid("bad boolean")
	}
}

// sanitizeText NFC-normalizes, strips HTML tags and control characters,
// and never hard-fails: over-long input collapses to the empty string.
func sanitizeText(raw string) Result {
	normalized := norm.NFC.String(raw)
	if utf8.RuneCountInString(normalized) > maxTextLength {
		return valid("")
	}

	cleaned := strictTextPolicy().Sanitize(normalized)
	// The policy entity-escapes the text it keeps; undo that so stored
	// values round-trip as the user typed them ("Tom & Jerry" stays
	// "Tom & Jerry"). Tags are already gone, so nothing reactivates.
	cleaned = html.UnescapeString(cleaned)
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, cleaned)

	return valid(strings.TrimSpace(cleaned))
}

// SanitizeAll validates a raw settings map against the registry. It
// returns the canonical values for every setting that passed and a
// per-key error list for every setting that failed. Unknown keys are
// ignored silently so newer clients can talk to older servers. The error
// list follows registry order, matching generated CSS ordering.
func SanitizeAll(raw map[string]string) (map[string]string, []apperrors.FieldError) {
	validValues := make(map[string]string, len(raw))
	collector := apperrors.NewCollector()

	for _, def := range registry {
		rawValue, ok := raw[def.Key]
		if !ok {
			continue
		}
		result := Sanitize(rawValue, def)
		if result.Valid {
			validValues[def.Key] = result.Value
		} else {
			collector.Add(def.Key, result.Reason)
		}
	}

	return validValues, collector.Fields()
}
