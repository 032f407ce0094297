package css

import (
	"regexp"
	"strings"
)

// urlRewritePattern matches url() references in CSS text.
var urlRewritePattern = regexp.MustCompile(`url\s*\(\s*(?:["']([^"']*)["']|([^)"']*))\s*\)`)

// RewriteURLs replaces every url() reference in CSS text with the value
// returned by fn. References are always written back double quoted.
func RewriteURLs(text string, fn func(originalURL string) string) string {
	return urlRewritePattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := urlRewritePattern.FindStringSubmatch(match)
		u := sub[1]
		if u == "" {
			u = strings.TrimSpace(sub[2])
		}
		if u == "" {
			return match
		}
		return `url("` + EscapeDoubleQuoted(fn(u)) + `")`
	})
}
