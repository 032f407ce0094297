package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"fontpipe/config"
	"fontpipe/fontface"
	"fontpipe/metrics"
	"fontpipe/resolve"
	"fontpipe/state"
)

// FamilyResolver resolves families for the commands which do not process
// stylesheets.
type FamilyResolver interface {
	Resolve(ctx context.Context, req resolve.Request) (*resolve.Result, error)
	GlobalStylesheet(ctx context.Context) (string, error)
}

// FallbackGenerator produces metric overrides for fallback fonts.
type FallbackGenerator interface {
	GenerateFallbacks(ctx context.Context, family string, face *fontface.Face, fallbacks []string) []metrics.Block
}

// Resolve prints @font-face rules of requested families.
func Resolve(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("resolve")

	out := output(cmd)
	if cmd.Bool("global") {
		if cmd.Args().Len() > 0 {
			log.Warn("Malformed command line, families are ignored with --global", zap.Strings("ignoring", cmd.Args().Slice()))
		}
		text, err := env.Resolver.GlobalStylesheet(ctx)
		if err != nil {
			return fmt.Errorf("unable to build global stylesheet: %w", err)
		}
		env.Rpt.StoreData("resolve/global.css", []byte(text))
		_, err = io.WriteString(out, text)
		return err
	}

	families := cmd.Args().Slice()
	if len(families) == 0 {
		return errors.New("no font families have been specified")
	}
	req := resolve.Request{Fallbacks: cmd.StringSlice("fallback"), Generic: cmd.String("generic")}
	return resolveFamilies(ctx, env.Resolver, env.Fallbacks, families, req, out, env.Rpt, log)
}

// resolveFamilies writes rules of every family to out, families nobody knows
// are reported and skipped.
func resolveFamilies(ctx context.Context, r FamilyResolver, fallbacks FallbackGenerator, families []string, req resolve.Request, out io.Writer, rpt *config.Report, log *zap.Logger) error {
	unresolved := 0
	for _, family := range families {
		req.Family = family
		res, err := r.Resolve(ctx, req)
		if err != nil {
			return fmt.Errorf("unable to resolve '%s': %w", family, err)
		}
		if res == nil || len(res.Fonts) == 0 {
			log.Warn("Family could not be resolved", zap.String("family", family))
			unresolved++
			continue
		}

		var sb strings.Builder
		if res.Provider != "" {
			fmt.Fprintf(&sb, "/* %s: %s */\n", family, res.Provider)
		}
		for i := range res.Fonts {
			sb.WriteString(fontface.Render(family, res.Fonts[i]))
			sb.WriteByte('\n')
		}
		if fallbacks != nil && len(res.Fallbacks) > 0 {
			for _, b := range fallbacks.GenerateFallbacks(ctx, family, &res.Fonts[0], res.Fallbacks) {
				sb.WriteString(b.CSS)
				sb.WriteByte('\n')
			}
		}
		log.Debug("Family resolved", zap.String("family", family), zap.String("provider", res.Provider), zap.Int("faces", len(res.Fonts)))

		rpt.StoreData("resolve/"+config.CleanFileName(family)+".css", []byte(sb.String()))
		if _, err := io.WriteString(out, sb.String()); err != nil {
			return err
		}
	}
	if unresolved == len(families) {
		return errors.New("none of the families could be resolved")
	}
	return nil
}
