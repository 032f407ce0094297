package commands

import (
	"context"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"fontpipe/server"
	"fontpipe/state"
)

// Serve runs development server until interrupted.
func Serve(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("serve")

	listen := cmd.String("listen")
	if len(listen) == 0 {
		listen = env.Cfg.Server.Listen
	}

	opts := server.Options{
		Listen:      listen,
		Transformer: env.Transformer,
		Global:      env.Resolver,
	}
	// typed nil must not end up in the interface
	if env.Proxy != nil {
		opts.Fonts = env.Proxy
	}

	log.Info("Server starting", zap.String("listen", listen), zap.Bool("proxy", env.Proxy != nil))
	return server.New(opts, env.Log).Run(ctx)
}
