package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"fontpipe/commands"
	"fontpipe/config"
	"fontpipe/misc"
	"fontpipe/provider/builtin"
	"fontpipe/state"
)

// initializeAppContext prepares application context before command execution but
// after command line has been parsed
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error

	if cmd.NArg() == 0 {
		// nothing to do, just return
		return ctx, nil
	}

	env := state.EnvFromContext(ctx)

	configFile := cmd.String("config")
	if env.Cfg, err = config.LoadConfiguration(configFile); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if cmd.Bool("debug") {
		if env.Rpt, err = env.Cfg.Reporting.Prepare(); err != nil {
			return ctx, fmt.Errorf("unable to prepare debug reporter: %w", err)
		}
		// save complete processed configuration if external configuration was provided
		if len(configFile) > 0 {
			// secrets are masked by Dump
			if data, err := config.Dump(env.Cfg); err == nil {
				env.Rpt.StoreData(fmt.Sprintf("config/%s", filepath.Base(configFile)), data)
			}
		}
	}
	if env.Log, err = env.Cfg.Logging.Prepare(env.Rpt); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.RedirectStdLog()

	env.Log.Debug("Program started", zap.Strings("args", os.Args), zap.String("ver", misc.GetVersion()), zap.String("runtime", runtime.Version()), zap.String("hash", misc.GetGitHash()))

	if env.Rpt != nil {
		env.Log.Info("Creating debug report", zap.String("location", env.Rpt.Name()))
	}
	if len(configFile) == 0 {
		env.Log.Info("Using defaults (no configuration file)")
	}
	return ctx, nil
}

// initializePipeline builds font pipeline for commands which need it.
func initializePipeline(ctx context.Context, _ *cli.Command) (context.Context, error) {
	env := state.EnvFromContext(ctx)
	if env.Ready() {
		return ctx, nil
	}
	if err := env.Initialize(ctx, builtin.Factories()); err != nil {
		return ctx, fmt.Errorf("unable to initialize font pipeline: %w", err)
	}
	return ctx, nil
}

func destroyAppContext(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)

	if er := env.Close(); er != nil {
		err = multierr.Append(err, fmt.Errorf("unable to release font pipeline: %w", er))
	}

	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Uptime()), zap.Strings("parsed args", cmd.Args().Slice()))
	}

	// close logging
	env.RestoreStdLog()

	// log is synced now and result can be used in report if necessary, errors
	// must be reported directly to stderr from now on
	if env.Rpt != nil {
		if er := env.Rpt.Close(); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close debug report: %w", er))
		}
	}
	// reporting is closed now - remove empty panic file if any
	if env.Cfg != nil && len(env.Cfg.Logging.FileLogger.Destination) > 0 {
		debug.SetCrashOutput(nil, debug.CrashOptions{})
		fname := env.Cfg.Logging.PanicLogName()
		if fi, er := os.Stat(fname); er == nil && fi.Size() == 0 {
			if er := os.Remove(fname); er != nil {
				err = multierr.Append(err, fmt.Errorf("unable to remove empty panic log file '%s': %w", fname, er))
			}
		}
	}
	return
}

// Subcommands return regular errors, cli.Exit is not used.
var errWasHandled bool

// this is called before appContext is destroyed, so we have a chance to
// properly log any error from subcommand
func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {
	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	// do nothing special, error is reported either by exitErrHandler or on
	// exit directly to stderr.
	return err
}

func subcommandNotFoundHandler(ctx context.Context, _ *cli.Command, name string) {
	if log := state.EnvFromContext(ctx).Log; log != nil {
		log.Warn("Unknown command, nothing to do", zap.String("command", name))
	}
}

func main() {

	// interrupt stops server and cancels downloads
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "resolves web fonts used by stylesheets and injects @font-face rules",
		Version:         misc.GetVersion() + " (" + runtime.Version() + ") : " + misc.GetGitHash(),
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  exitErrHandler,
		CommandNotFound: subcommandNotFoundHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, DefaultText: "", Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "changes program behavior to help troubleshooting, produces report archive"},
		},
		Commands: []*cli.Command{
			{
				Name:         "transform",
				Usage:        "Injects @font-face rules for fonts used by stylesheet(s)",
				OnUsageError: usageErrorHandler,
				Before:       initializePipeline,
				Action:       commands.Transform,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "download", Usage: "store proxied font files in `DIR`"},
					&cli.StringFlag{Name: "manifest", Usage: "add font preloads to bundler manifest `FILE` (JSON)"},
					&cli.StringFlag{Name: "build-assets-dir", Value: "/", Usage: "url `PATH` bundle assets are served under, manifest keys are relative to it"},
					&cli.StringFlag{Name: "entry", Usage: "`SOURCE` of the entry chunk in manifest, receives preloads no other chunk claimed"},
					&cli.BoolFlag{Name: "html", Usage: "add preload links to HTML documents of processed directory"},
					&cli.StringFlag{Name: "force-zip-cp",
						Usage: "Force `ENCODING` for ALL non UTF-8 file names in processed archives (see IANA.org for character set names)"},
				},
				ArgsUsage: "SOURCE [DESTINATION]",
				CustomHelpTemplate: fmt.Sprintf(`%s
SOURCE:
    stylesheet(s) to process, following formats are supported:
        path to a file: "[path_to_file]file.css" - font urls are left as resolved
        path to a directory: "[path_to_directory]directory" - all stylesheets under directory are processed as a bundle, font urls are made relative to every stylesheet
        path to archive with path inside archive: "[path_to_archive]archive.zip[path_in_archive]" - stylesheets under archive path are processed as a bundle

DESTINATION:
    for a file - file or directory to write result to, if absent - STDOUT
    for a directory - directory to write changed files to, if absent - files are changed in place
    for an archive - zip file to produce or directory to write changed files to, if absent - current working directory
`, cli.CommandHelpTemplate),
			},
			{
				Name:         "resolve",
				Usage:        "Prints @font-face rules of font families",
				OnUsageError: usageErrorHandler,
				Before:       initializePipeline,
				Action:       commands.Resolve,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "fallback", Usage: "`FAMILY` to generate metric overrides for, may be repeated"},
					&cli.StringFlag{Name: "generic", Usage: "generic `FAMILY` selecting default fallbacks"},
					&cli.BoolFlag{Name: "global", Usage: "print rules of all global families"},
				},
				ArgsUsage: "FAMILY...",
			},
			{
				Name:         "download",
				Usage:        "Downloads font files of families for self hosting",
				OnUsageError: usageErrorHandler,
				Before:       initializePipeline,
				Action:       commands.Download,
				ArgsUsage:    "DESTINATION [FAMILY...]",
				CustomHelpTemplate: fmt.Sprintf(`%s

DESTINATION:
    directory to store font files in

FAMILY:
    font families to download, if absent - all global families
`, cli.CommandHelpTemplate),
			},
			{
				Name:         "serve",
				Usage:        "Runs development server transforming posted stylesheets and serving proxied fonts",
				OnUsageError: usageErrorHandler,
				Before:       initializePipeline,
				Action:       commands.Serve,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "listen", Usage: "`ADDRESS` to listen on, overrides configuration"},
				},
			},
			{
				Name:  "dumpconfig",
				Usage: "Dumps either default or actual configuration (YAML)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
				},
				OnUsageError: usageErrorHandler,
				Action:       outputConfiguration,
				ArgsUsage:    "DESTINATION",
				CustomHelpTemplate: fmt.Sprintf(`%s

DESTINATION:
    file name to write configuration to, if absent - STDOUT

Produces file with actual "active" configuration values which is composition of
default values and values specified in configuration file. To see default
configuration embedded into the program use --default flag.
`, cli.CommandHelpTemplate),
			},
		},
	}

	var err error
	// NOTE: os.Exit is called at the end of main to set exit code, make sure
	// there are no other deffered functions after that
	defer func() {
		stop()
		if err != nil {
			// log may be not set yet (argument parsing) or already closed,
			// report errors to stderr directly
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = app.Run(ctx, os.Args)
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {

	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	fname := cmd.Args().Get(0)

	var (
		err   error
		data  []byte
		state string
	)

	out := os.Stdout
	if len(fname) > 0 {
		out, err = os.Create(fname)
		if err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer out.Close()
	}

	if cmd.Bool("default") {
		state = "default"
		data, err = config.Prepare()
	} else {
		state = "actual"
		data, err = config.Dump(env.Cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	if len(fname) == 0 {
		fname = "STDOUT"
	}
	env.Log.Info("Outputting configuration", zap.String("state", state), zap.String("file", fname))

	if _, err = out.Write(data); err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}
