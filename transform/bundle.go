package transform

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// TransformBundle runs transform over final stylesheet assets of the bundle
// keyed by their file names, font urls are made relative to every asset.
// Returns only assets which were changed. Failing assets are left as is and
// reported together.
func (t *Transformer) TransformBundle(ctx context.Context, assets map[string]string) (map[string]string, error) {
	names := make([]string, 0, len(assets))
	for name := range assets {
		if IsCSS(name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	var (
		changed = make(map[string]string)
		errs    error
	)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		code, ok, err := t.Transform(ctx, name, assets[name], true)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("unable to transform '%s': %w", name, err))
			continue
		}
		if ok {
			t.log.Debug("Bundle asset updated", zap.String("asset", name))
			changed[name] = code
		}
	}
	return changed, errs
}
