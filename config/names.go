package config

import (
	"strings"
	"unicode"
)

const maxFileNameLen = 200

// CleanFileName makes name safe to be used as single path element on any
// platform: report archives are often unpacked elsewhere.
func CleanFileName(in string) string {
	out := strings.Map(func(sym rune) rune {
		if unicode.IsControl(sym) || strings.ContainsRune(`<>":/\|?*`, sym) {
			return -1
		}
		return sym
	}, in)
	out = strings.TrimRight(strings.TrimLeft(out, ". "), ". ")
	if len(out) > maxFileNameLen {
		out = strings.ToValidUTF8(out[:maxFileNameLen], "")
	}
	if len(out) == 0 {
		out = "_bad_file_name_"
	}
	return out
}
