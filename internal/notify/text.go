package notify

import (
	"html"
	"regexp"
	"strings"
)

var (
	reBreak  = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|tr|li|h[1-6]|table)>`)
	reCell   = regexp.MustCompile(`(?i)</t[dh]>`)
	reItem   = regexp.MustCompile(`(?i)<li[^>]*>`)
	reDrop   = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	reTag    = regexp.MustCompile(`<[^>]*>`)
	reSpaces = regexp.MustCompile(`[ \t\x{00a0}]+`)
)

// PlainText flattens the small HTML bodies this package produces (and ticket
// cards scraped from the site) into readable text.
func PlainText(s string) string {
	s = reDrop.ReplaceAllString(s, "")
	s = reItem.ReplaceAllString(s, "- ")
	s = reCell.ReplaceAllString(s, " ")
	s = reBreak.ReplaceAllString(s, "\n")
	s = reTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	var out []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(reSpaces.ReplaceAllString(line, " "))
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
