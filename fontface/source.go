// Package fontface models @font-face descriptors and their sources.
package fontface

import (
	"path"
	"regexp"
	"strings"
)

// Source is a single entry of @font-face src list: either local font
// (Name is set) or remote file (URL is set).
type Source struct {
	Name   string `json:"name,omitempty"`
	URL    string `json:"url,omitempty"`
	Format string `json:"format,omitempty"`
	Tech   string `json:"tech,omitempty"`
}

// Local returns source referencing font installed on the system.
func Local(name string) Source {
	return Source{Name: name}
}

// Remote returns source referencing font file, format is guessed from url
// extension if not specified.
func Remote(url, format string) Source {
	if format == "" {
		format = FormatFromPath(url)
	}
	return Source{URL: url, Format: format}
}

func (s Source) IsLocal() bool {
	return s.URL == ""
}

var extToFormat = map[string]string{
	"otf":   "opentype",
	"woff":  "woff",
	"woff2": "woff2",
	"ttf":   "truetype",
	"eot":   "embedded-opentype",
	"svg":   "svg",
}

// FormatFromPath guesses font format from file extension, query and
// fragment are ignored. Returns empty string for unknown extensions.
func FormatFromPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return extToFormat[strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))]
}

var protocolPattern = regexp.MustCompile(`^[\s\w+.-]{2,}:[/\\]{1,2}`)

// HasProtocol reports if value looks like absolute URL with scheme.
func HasProtocol(s string) bool {
	return protocolPattern.MatchString(s)
}

// ParseShorthand converts src shorthand value into Source: absolute paths
// and URLs become remote sources, anything else is treated as local font
// name.
func ParseShorthand(value string) Source {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "/") || HasProtocol(value) {
		return Remote(value, "")
	}
	return Local(value)
}

// format priority, lower is better
var formatPriority = map[string]int{
	"woff2":             0,
	"woff":              1,
	"opentype":          2,
	"truetype":          3,
	"embedded-opentype": 4,
	"svg":               5,
}

func sourceRank(s Source) int {
	if s.IsLocal() {
		return -1
	}
	f := strings.Trim(strings.ToLower(s.Format), `"'`)
	if f == "" {
		f = FormatFromPath(s.URL)
	}
	if p, ok := formatPriority[f]; ok {
		return p
	}
	return len(formatPriority)
}
