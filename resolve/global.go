package resolve

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"fontpipe/fontface"
)

// GlobalStylesheet renders @font-face rules of every global family. Fallback
// metrics are not generated: nothing references fallback names there.
func (r *Resolver) GlobalStylesheet(ctx context.Context) (string, error) {
	var sb strings.Builder
	for i := range r.opts.Families {
		o := &r.opts.Families[i]
		if !o.Global {
			continue
		}
		res, err := r.Resolve(ctx, Request{Family: o.Name})
		if err != nil {
			return "", err
		}
		if res == nil {
			r.log.Warn("Global family could not be resolved", zap.String("family", o.Name))
			continue
		}
		for j := range res.Fonts {
			sb.WriteString(fontface.Render(o.Name, res.Fonts[j]))
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}
