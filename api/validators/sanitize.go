package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims s, folds runs of whitespace into one space, drops
// control characters and caps the result at maxLen runes (0 means no cap).
func SanitizeString(s string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(s))
	runes, pendingSpace := 0, false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
			continue
		case unicode.IsControl(r):
			continue
		}
		if maxLen > 0 && runes+boolInt(pendingSpace) >= maxLen {
			break
		}
		if pendingSpace {
			b.WriteByte(' ')
			runes++
			pendingSpace = false
		}
		b.WriteRune(r)
		runes++
	}
	return b.String()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
