package local

import (
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var fontFilePattern = regexp.MustCompile(`(?i)\.(?:ttf|woff2?|eot|otf)(?:\?[^.]+)?$`)

// IsFontFile reports if path has one of the font file extensions.
func IsFontFile(path string) bool {
	return fontFilePattern.MatchString(path)
}

// canonical weight slugs, numeric weights and hyphen-less spellings are
// mapped to the same value
var weightSlugs = map[string]string{
	"100":         "thin",
	"200":         "extra-light",
	"300":         "light",
	"400":         "normal",
	"500":         "medium",
	"600":         "semi-bold",
	"700":         "bold",
	"800":         "extra-bold",
	"900":         "black",
	"extralight":  "extra-light",
	"semibold":    "semi-bold",
	"extrabold":   "extra-bold",
	"thin":        "thin",
	"extra-light": "extra-light",
	"light":       "light",
	"normal":      "normal",
	"regular":     "normal",
	"medium":      "medium",
	"semi-bold":   "semi-bold",
	"bold":        "bold",
	"extra-bold":  "extra-bold",
	"black":       "black",
}

// order matters: alternatives are tried in this order at every position
var weightWords = []string{
	"100", "thin", "200", "extra-light", "300", "light", "500", "medium",
	"600", "semi-bold", "700", "bold", "800", "extra-bold", "900", "black",
	"extralight", "semibold", "extrabold",
}

var styleWords = []string{"italic", "oblique"}

var subsetWords = []string{
	"cyrillic-ext", "cyrillic", "greek-ext", "greek", "vietnamese", "latin-ext", "latin",
}

var (
	weightRangePattern = regexp.MustCompile(`(?:^|\D)(\d{3})[-_](\d{3})(?:\D|$)`)
	extPattern         = regexp.MustCompile(`\.\w*$`)
	tailPattern        = regexp.MustCompile(`[._-]\w*$`)
	trailingPattern    = regexp.MustCompile(`[\W_]+$`)
	nonWordPattern     = regexp.MustCompile(`\W+`)
)

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isWordChar(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// findWord returns leftmost case-insensitive occurrence of one of the words.
// Word must not be preceded by a digit (when digitBefore is set) and must
// be followed by accepted character or end of string.
func findWord(name string, words []string, digitBefore bool, after func(byte) bool) (string, bool) {
	start := 0
	if digitBefore {
		// word has to follow something
		start = 1
	}
	for i := start; i < len(name); i++ {
		if digitBefore && isDigit(name[i-1]) {
			continue
		}
		for _, w := range words {
			j := i + len(w)
			if j > len(name) || !strings.EqualFold(name[i:j], w) {
				continue
			}
			if j < len(name) && !after(name[j]) {
				continue
			}
			return name[i:j], true
		}
	}
	return "", false
}

// familySlug reduces family name to the form used in registry keys.
func familySlug(family string) string {
	return nonWordPattern.ReplaceAllString(strings.ToLower(norm.NFC.String(family)), "")
}

// weightSlug normalizes requested or detected weight.
func weightSlug(w string) string {
	w = strings.ToLower(strings.TrimSpace(w))
	if s, ok := weightSlugs[w]; ok {
		return s
	}
	return strings.Join(strings.Fields(w), " ")
}

func key(family, weight, style, subset string) string {
	return strings.ToLower(strings.Join([]string{familySlug(family), weightSlug(weight), style, subset}, "-"))
}

// fileSlugs derives registry keys from font file name. File name carries
// family name optionally decorated with weight, style and subset, every
// combination of separators is accepted: "Inter-Bold-latin.woff2",
// "Inter_700.ttf", "Inter.100-900.woff2".
func fileSlugs(path string) []string {
	name := filepath.Base(path)
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}

	weight, weightText := "normal", "normal"
	if m := weightRangePattern.FindStringSubmatchIndex(name); m != nil {
		weight = name[m[2]:m[3]] + " " + name[m[4]:m[5]]
		weightText = name[m[2]:m[5]]
	} else if w, ok := findWord(name, weightWords, true, func(c byte) bool { return !isDigit(c) }); ok {
		weight, weightText = w, w
	}
	style := "normal"
	if s, ok := findWord(name, styleWords, false, func(c byte) bool { return !isWordChar(c) }); ok {
		style = s
	}
	subset := "latin"
	if s, ok := findWord(name, subsetWords, false, func(c byte) bool { return !isWordChar(c) }); ok {
		subset = s
	}

	for _, s := range []string{weightText, style, subset} {
		name = strings.Replace(name, s, "", 1)
	}

	var slugs []string
	for _, variant := range []string{extPattern.ReplaceAllString(name, ""), tailPattern.ReplaceAllString(name, "")} {
		k := key(trailingPattern.ReplaceAllString(variant, ""), weight, strings.ToLower(style), strings.ToLower(subset))
		if !slices.Contains(slugs, k) {
			slugs = append(slugs, k)
		}
	}
	return slugs
}
