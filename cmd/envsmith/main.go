package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/envsmith/internal/application"
	"github.com/eugenenazirov/envsmith/internal/config"
	"github.com/eugenenazirov/envsmith/internal/logging"
	"github.com/eugenenazirov/envsmith/internal/output"
)

var signalNotify = signal.Notify

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// loadFlags are the file loading flags shared by the commands.
type loadFlags struct {
	files       *[]string
	override    *bool
	overrideSet bool
	expand      *bool
	expandSet   bool
}

func registerLoadFlags(cmd *kingpin.CmdClause) *loadFlags {
	f := &loadFlags{}
	f.files = cmd.Flag("file", "Environment file to load (repeatable, defaults to .env)").Short('f').Strings()
	f.override = cmd.Flag("override", "Override existing environment variables").IsSetByUser(&f.overrideSet).Bool()
	f.expand = cmd.Flag("expand", "Expand ${VAR} references (use --no-expand to disable)").IsSetByUser(&f.expandSet).Default("true").Bool()
	return f
}

func (f *loadFlags) apply(overrides *config.CLIOverrides) {
	overrides.Files = *f.files
	if f.overrideSet {
		overrides.Override = f.override
	}
	if f.expandSet {
		overrides.Expand = f.expand
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	kingpinApp := kingpin.New("envsmith", "Environment variable loader with schema validation and secret resolution")
	kingpinApp.UsageWriter(stderr)
	kingpinApp.ErrorWriter(stderr)

	configFile := kingpinApp.Flag("config", "Path to YAML settings file").String()
	verbose := kingpinApp.Flag("verbose", "Enable debug logging").Short('v').Bool()
	quiet := kingpinApp.Flag("quiet", "Only log errors").Short('q').Bool()

	checkCmd := kingpinApp.Command("check", "Check environment files and required variables")
	checkLoad := registerLoadFlags(checkCmd)
	checkRequire := checkCmd.Flag("require", "Required environment variable (repeatable)").Short('r').Strings()

	validateCmd := kingpinApp.Command("validate", "Validate the environment against a schema")
	validateSchema := validateCmd.Flag("schema", "Schema file (YAML or JSON)").Short('s').Required().String()
	validateLoad := registerLoadFlags(validateCmd)
	validateFormat := validateCmd.Flag("format", "Output format").Enum(output.Formats()...)
	var strictSet bool
	validateStrict := validateCmd.Flag("strict", "Fail on missing optional variables without defaults (use --no-strict to disable)").IsSetByUser(&strictSet).Default("true").Bool()

	printCmd := kingpinApp.Command("print", "Print loaded environment variables")
	printLoad := registerLoadFlags(printCmd)
	printFormat := printCmd.Flag("format", "Output format").Enum(output.Formats()...)
	printAll := printCmd.Flag("all", "Show every loaded variable, including ones already set").Bool()

	watchCmd := kingpinApp.Command("watch", "Reload an environment file whenever it changes")
	watchFile := watchCmd.Flag("file", "Environment file to watch (defaults to .env)").Short('f').String()
	var intervalSet, pollingSet bool
	watchInterval := watchCmd.Flag("interval", "Polling interval").IsSetByUser(&intervalSet).Duration()
	watchPolling := watchCmd.Flag("polling", "Poll the modification time instead of using file events").IsSetByUser(&pollingSet).Bool()

	command, err := kingpinApp.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "envsmith: %v\n", err)
		return application.ExitError
	}

	overrides := &config.CLIOverrides{ConfigFile: *configFile}
	switch {
	case *verbose:
		overrides.LogLevel = ptr("debug")
	case *quiet:
		overrides.LogLevel = ptr("error")
	}

	switch command {
	case checkCmd.FullCommand():
		checkLoad.apply(overrides)
	case validateCmd.FullCommand():
		validateLoad.apply(overrides)
		overrides.Format = validateFormat
		if strictSet {
			overrides.Strict = validateStrict
		}
	case printCmd.FullCommand():
		printLoad.apply(overrides)
		overrides.Format = printFormat
	case watchCmd.FullCommand():
		if *watchFile != "" {
			overrides.Files = []string{*watchFile}
		}
		if intervalSet {
			overrides.WatchInterval = watchInterval
		}
		if pollingSet {
			overrides.WatchPolling = watchPolling
		}
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		fmt.Fprintf(stderr, "envsmith: failed to load configuration: %v\n", err)
		return application.ExitError
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintf(stderr, "envsmith: failed to initialize logger: %v\n", err)
		return application.ExitError
	}
	defer func() {
		_ = logger.Sync()
	}()

	app := application.New(cfg, logger, application.WithOutput(stdout))

	switch command {
	case checkCmd.FullCommand():
		return app.Check(*checkRequire)
	case validateCmd.FullCommand():
		return app.Validate(*validateSchema)
	case printCmd.FullCommand():
		return app.Print(*printAll)
	case watchCmd.FullCommand():
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go shutdown(ctx, cancel, logger)
		return app.Watch(ctx)
	default:
		fmt.Fprintf(stderr, "envsmith: unknown command %q\n", command)
		return application.ExitError
	}
}

// shutdown cancels the watch context on SIGINT or SIGTERM.
func shutdown(ctx context.Context, cancel context.CancelFunc, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down watcher", zap.String("signal", sig.String()))
		cancel()
	case <-ctx.Done():
	}
}

func ptr[T any](v T) *T {
	return &v
}
