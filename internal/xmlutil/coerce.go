package xmlutil

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var nonDigits = regexp.MustCompile(`\D`)

// Digits strips every non-numeric character from s
func Digits(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

// IsAccessKey reports whether s is exactly 44 numeric digits
func IsAccessKey(s string) bool {
	if len(s) != 44 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseDecimal parses a decimal value tolerating both comma and dot
// separators ("1.234,56", "1234.56", "1234,56"). Invalid input yields the
// default; ok reports whether the input itself parsed.
func ParseDecimal(s string, def float64) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, false
	}
	if strings.Contains(s, ",") {
		// Comma is the decimal separator, dots are thousands marks
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def, false
	}
	return v, true
}

// ParseInt parses an integer, also accepting float-like strings such as
// "12.0". Invalid input yields the default.
func ParseInt(s string, def int) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, false
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, true
	}
	if f, ok := ParseDecimal(s, 0); ok {
		return int(f), true
	}
	return def, false
}

var (
	truthy = map[string]bool{"1": true, "true": true, "t": true, "yes": true, "y": true, "sim": true, "s": true}
	falsy  = map[string]bool{"0": true, "false": true, "f": true, "no": true, "n": true, "nao": true, "não": true}
)

// ParseBool parses a boolean from the multi-token truthy/falsy set used by
// issuer software. Unrecognized input yields the default.
func ParseBool(s string, def bool) (bool, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def, false
	}
	if truthy[s] {
		return true, true
	}
	if falsy[s] {
		return false, true
	}
	return def, false
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// ParseTime parses a timestamp across the layouts seen in the wild and
// normalizes it to UTC. Returns nil when nothing matches.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}
