package transform

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"fontpipe/fontface"
)

var preloadTypes = map[string]string{
	"woff2":    "font/woff2",
	"woff":     "font/woff",
	"truetype": "font/ttf",
	"opentype": "font/otf",
}

// PreloadLink returns <link rel="preload"> tag for font url.
func PreloadLink(u string) string {
	var sb strings.Builder
	sb.WriteString(`<link rel="preload" as="font" href="`)
	sb.WriteString(html.EscapeString(u))
	sb.WriteString(`"`)
	if t, ok := preloadTypes[fontface.FormatFromPath(u)]; ok {
		sb.WriteString(` type="` + t + `"`)
	}
	sb.WriteString(` crossorigin>`)
	return sb.String()
}

// InjectPreloadLinks adds preload links for urls to the head of HTML
// document, urls already preloaded are skipped.
func InjectPreloadLinks(doc string, urls []string) (string, error) {
	if len(urls) == 0 {
		return doc, nil
	}
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return doc, fmt.Errorf("unable to parse HTML: %w", err)
	}

	present := make(map[string]bool)
	d.Find(`link[rel="preload"]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			present[href] = true
		}
	})

	var links strings.Builder
	for _, u := range urls {
		if present[u] {
			continue
		}
		present[u] = true
		links.WriteString(PreloadLink(u))
	}
	if links.Len() == 0 {
		return doc, nil
	}

	d.Find("head").First().AppendHtml(links.String())
	out, err := d.Html()
	if err != nil {
		return doc, fmt.Errorf("unable to render HTML: %w", err)
	}
	return out, nil
}
