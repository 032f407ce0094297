// Package builtin lists providers shipped with fontpipe.
package builtin

import (
	"fontpipe/provider"
	"fontpipe/provider/local"
	"fontpipe/provider/remote"
)

// Factories returns constructors of every built-in provider. Callers may add
// their own factories to the returned map before building registry.
func Factories() provider.Factories {
	return provider.Factories{
		local.Name:    local.Factory,
		"google":      remote.NewGoogle,
		"googleicons": remote.NewGoogleIcons,
		"bunny":       remote.NewBunny,
		"fontshare":   remote.NewFontshare,
		"fontsource":  remote.NewFontsource,
		"adobe":       remote.NewAdobe,
	}
}

// DefaultSpecs are providers enabled when configuration does not list any.
// Adobe requires kit id and is never enabled implicitly.
func DefaultSpecs() []provider.Spec {
	return []provider.Spec{
		{Name: "google"},
		{Name: "googleicons"},
		{Name: "bunny"},
		{Name: "fontshare"},
		{Name: "fontsource"},
		{Name: local.Name},
	}
}
