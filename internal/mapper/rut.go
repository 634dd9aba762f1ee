package mapper

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	canonicalRUT = regexp.MustCompile(`^\d{1,2}\.\d{3}\.\d{3}-[\dkK]$`)
	rutJunk      = regexp.MustCompile(`[^0-9kK]`)
)

// NormalizeRUT brings a Chilean RUT into canonical DD.DDD.DDD-C form.
// Already-canonical values pass through untouched. Anything else is
// stripped to digits plus the check letter and reformatted; values too
// short to split into body and check digit are returned as-is so the
// caller can still group on them.
func NormalizeRUT(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if canonicalRUT.MatchString(s) {
		return s
	}

	clean := rutJunk.ReplaceAllString(s, "")
	if len(clean) >= 8 {
		body := clean[:len(clean)-1]
		dv := clean[len(clean)-1:]
		if len(body) >= 7 {
			return fmt.Sprintf("%s.%s.%s-%s",
				body[:len(body)-6], body[len(body)-6:len(body)-3], body[len(body)-3:], dv)
		}
	}
	return s
}
