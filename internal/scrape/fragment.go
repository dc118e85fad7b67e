package scrape

import (
	"regexp"
	"strings"
	"sync"
)

// The portal's pages are server-rendered templates with stable class names but
// markup too sloppy for a strict DOM parser. Extraction works on raw strings:
// every pattern is compiled with (?s) because the markup spans lines, and a
// miss yields an empty result rather than an error. Callers treat "found
// nothing" as a normal outcome.

var (
	rowPattern  = regexp.MustCompile(`(?s)<tr[^>]*>.*?</tr>`)
	cellPattern = regexp.MustCompile(`(?s)<t[dh][^>]*>(.*?)</t[dh]>`)

	brPattern         = regexp.MustCompile(`(?is)<br\s*/?>`)
	tagPattern        = regexp.MustCompile(`(?s)<[^>]+>`)
	hspacePattern     = regexp.MustCompile(`[ \t\x{00a0}\x{3000}]+`)
	blankLinesPattern = regexp.MustCompile(`\n\s*\n+`)
)

// FirstMatch returns the first capture group of the first match of pattern in
// html, or "" and false when the pattern does not match.
func FirstMatch(html string, pattern *regexp.Regexp) (string, bool) {
	m := pattern.FindStringSubmatch(html)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// Rows splits a table fragment into its <tr>...</tr> chunks in document
// order, attributes included.
func Rows(tableHTML string) []string {
	return rowPattern.FindAllString(tableHTML, -1)
}

// Cells splits a row into the inner HTML of its <td>/<th> cells in document
// order. Blank cells stay as empty strings so column position is never lost.
func Cells(rowHTML string) []string {
	matches := cellPattern.FindAllStringSubmatch(rowHTML, -1)
	cells := make([]string, 0, len(matches))
	for _, m := range matches {
		cells = append(cells, m[1])
	}
	return cells
}

// HasClass reports whether any tag in the fragment carries the given class
// token. Row classification works on whole <tr> chunks, where the class may
// sit on the row itself or on one of its cells.
func HasClass(fragment, class string) bool {
	return classPattern(class).MatchString(fragment)
}

var classPatternCache sync.Map

func classPattern(class string) *regexp.Regexp {
	if p, ok := classPatternCache.Load(class); ok {
		return p.(*regexp.Regexp)
	}
	p := regexp.MustCompile(`(?s)class="[^"]*\b` + regexp.QuoteMeta(class) + `\b[^"]*"`)
	classPatternCache.Store(class, p)
	return p
}

// PlainText reduces an HTML fragment to its text: <br> becomes a newline, the
// entities the portal actually emits are decoded, remaining tags are stripped.
// With condense set, runs of horizontal whitespace collapse to one space.
func PlainText(fragment string, condense bool) string {
	text := brPattern.ReplaceAllString(fragment, "\n")
	text = tagPattern.ReplaceAllString(text, "")
	text = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&yen;", "¥",
	).Replace(text)
	if condense {
		text = hspacePattern.ReplaceAllString(text, " ")
	}
	text = blankLinesPattern.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// Lines splits the PlainText of a fragment into its non-blank trimmed lines.
func Lines(fragment string) []string {
	raw := strings.Split(PlainText(fragment, true), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
