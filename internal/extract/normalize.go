package extract

import (
	"regexp"
	"strings"
)

var (
	hyphenBreak = regexp.MustCompile(`(\p{L})-\n[ \t]*(\p{L})`)
	hspaceRun   = regexp.MustCompile("[ \t ]+")
	edgeSpaces  = regexp.MustCompile(` ?\n ?`)
	blankRun    = regexp.MustCompile(`\n{3,}`)
)

// NormalizePageText applies the uniform cleanup used on every extracted page:
// words broken across line wraps are re-joined, runs of blank lines collapse
// to one blank line, runs of whitespace collapse to a single space, and the
// result is trimmed.
func NormalizePageText(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = hyphenBreak.ReplaceAllString(s, "$1$2")
	s = hspaceRun.ReplaceAllString(s, " ")
	s = edgeSpaces.ReplaceAllString(s, "\n")
	s = blankRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
