package transform

import (
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"go.uber.org/zap"
)

// minify compacts injected declarations, on failure text is returned as
// is.
func (t *Transformer) minify(text string) string {
	res := api.Transform(text, api.TransformOptions{
		Loader:           api.LoaderCSS,
		Charset:          api.CharsetUTF8,
		MinifyWhitespace: true,
		MinifySyntax:     true,
		LogLevel:         api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		t.log.Warn("Unable to minify injected CSS", zap.String("error", res.Errors[0].Text))
		return text
	}
	return strings.TrimSuffix(string(res.Code), "\n")
}
