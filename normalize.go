package edgar

import (
	"regexp"
	"strings"
	"unicode"
)

var pageMarker = regexp.MustCompile(`(?i)\bpage \d+ of \d+\b`)

// NormalizeText cleans one line of extracted filing text: format characters
// (zero-width spaces, BOMs, soft hyphens) are dropped, Unicode spaces
// become ASCII spaces, "Page N of M" markers are removed, and whitespace
// runs collapse to one space
func NormalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Cf, r):
			continue
		case unicode.IsSpace(r) || unicode.Is(unicode.Zs, r):
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	text = pageMarker.ReplaceAllString(b.String(), "")
	return strings.Join(strings.Fields(text), " ")
}
