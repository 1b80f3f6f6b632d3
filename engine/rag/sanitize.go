package rag

import (
	"regexp"
	"strings"
)

// OmittedMarker separates the kept head and tail of truncated context.
const OmittedMarker = "... [middle content omitted] ..."

var (
	typography = strings.NewReplacer(
		"\u00a0", " ",
		"\u2013", "-",
		"\u2014", "-",
		"\u201c", `"`,
		"\u201d", `"`,
		"\u2018", "'",
		"\u2019", "'",
	)
	nonASCII = regexp.MustCompile(`[^\x00-\x7E]+`)
	newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// Sanitize makes text safe for a model request: typographic punctuation
// becomes ASCII, other non-ASCII runs become a space, whitespace collapses
// to single spaces, and text over limit characters is cut with "...".
// A limit of zero or less disables the cut.
func Sanitize(text string, limit int) string {
	if text == "" {
		return ""
	}
	text = typography.Replace(text)
	text = nonASCII.ReplaceAllString(text, " ")
	text = newlines.Replace(text)
	text = strings.Join(strings.Fields(text), " ")
	if limit > 0 && len(text) > limit {
		text = text[:limit] + "..."
	}
	return text
}

// TruncateMiddle keeps the first and last max/2 characters of text when it
// is longer than max, joined by OmittedMarker.
func TruncateMiddle(text string, max int) string {
	r := []rune(text)
	if max <= 0 || len(r) <= max {
		return text
	}
	half := max / 2
	return string(r[:half]) + OmittedMarker + string(r[len(r)-half:])
}
