package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"fontpipe/resolve"
	"fontpipe/state"
)

// Download resolves families and stores their proxied font files in a
// directory, global families are used when none are given.
func Download(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("download")

	if env.Proxy == nil {
		return errors.New("font proxy is disabled in configuration, nothing to download")
	}

	dir := cmd.Args().Get(0)
	if len(dir) == 0 {
		return errors.New("no destination directory has been specified")
	}
	if dir, err = filepath.Abs(dir); err != nil {
		return err
	}

	log.Info("Download starting", zap.String("destination", dir))
	defer func(start time.Time) {
		log.Info("Download completed", zap.Duration("elapsed", time.Since(start)), zap.Int("files", len(env.Proxy.Files())))
	}(time.Now())

	if err := collectFonts(ctx, env.Resolver, cmd.Args().Slice()[1:], log); err != nil {
		return err
	}
	return env.Proxy.Download(ctx, dir)
}

// collectFonts resolves families so proxy learns their font files.
func collectFonts(ctx context.Context, r FamilyResolver, families []string, log *zap.Logger) error {
	if len(families) == 0 {
		if _, err := r.GlobalStylesheet(ctx); err != nil {
			return fmt.Errorf("unable to resolve global families: %w", err)
		}
		return nil
	}
	for _, family := range families {
		res, err := r.Resolve(ctx, resolve.Request{Family: family})
		if err != nil {
			return fmt.Errorf("unable to resolve '%s': %w", family, err)
		}
		if res == nil {
			log.Warn("Family could not be resolved", zap.String("family", family))
		}
	}
	return nil
}
