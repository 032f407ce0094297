// Package metrics computes @font-face overrides which make system fallback
// fonts occupy the same space as web font they stand in for.
package metrics

import (
	"strings"
)

// Metrics are vertical metrics and average character width of a font, all
// in font units. Descent is negative.
type Metrics struct {
	Ascent     float64 `json:"ascent"`
	Descent    float64 `json:"descent"`
	LineGap    float64 `json:"lineGap"`
	UnitsPerEm float64 `json:"unitsPerEm"`
	XWidthAvg  float64 `json:"xWidthAvg"`
}

// Lookup returns metrics of the family or nil if they are unknown.
type Lookup func(family string) *Metrics

// Table is metrics database keyed by family name.
type Table map[string]Metrics

// Lookup is case insensitive.
func (t Table) Lookup(family string) *Metrics {
	if m, ok := t[family]; ok {
		return &m
	}
	for name, m := range t {
		if strings.EqualFold(name, family) {
			return &m
		}
	}
	return nil
}

// builtin covers system fonts commonly used as fallbacks and few popular
// web fonts.
var builtin = Table{
	"Arial":           {Ascent: 1854, Descent: -434, LineGap: 67, UnitsPerEm: 2048, XWidthAvg: 904},
	"Times New Roman": {Ascent: 1825, Descent: -443, LineGap: 87, UnitsPerEm: 2048, XWidthAvg: 819},
	"Courier New":     {Ascent: 1705, Descent: -615, LineGap: 0, UnitsPerEm: 2048, XWidthAvg: 1229},
	"Helvetica Neue":  {Ascent: 952, Descent: -213, LineGap: 28, UnitsPerEm: 1000, XWidthAvg: 450},
	"Roboto":          {Ascent: 1900, Descent: -500, LineGap: 0, UnitsPerEm: 2048, XWidthAvg: 911},
	"Segoe UI":        {Ascent: 2210, Descent: -514, LineGap: 0, UnitsPerEm: 2048, XWidthAvg: 920},
	"Poppins":         {Ascent: 1050, Descent: -350, LineGap: 100, UnitsPerEm: 1000, XWidthAvg: 548},
	"Lato":            {Ascent: 1974, Descent: -426, LineGap: 0, UnitsPerEm: 2000, XWidthAvg: 920},
	"Montserrat":      {Ascent: 968, Descent: -251, LineGap: 0, UnitsPerEm: 1000, XWidthAvg: 527},
}

// Builtin returns copy of built-in metrics database.
func Builtin() Table {
	t := make(Table, len(builtin))
	for k, v := range builtin {
		t[k] = v
	}
	return t
}
