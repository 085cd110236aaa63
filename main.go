package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/mcncl/pytyper/internal/config"
	"github.com/mcncl/pytyper/internal/errors"
	"github.com/mcncl/pytyper/internal/logging"
)

// Version information
const (
	Version = "0.1.0"
)

// Globals are flags shared by every command.
type Globals struct {
	Config   string           `help:"Path to a config file. Defaults to the nearest .pytyper.yml." short:"c" type:"path" env:"PYTYPER_CONFIG"`
	Debug    bool             `help:"Enable debug logging." short:"d" env:"PYTYPER_DEBUG"`
	LogLevel string           `help:"Log level: debug, info, warn or error." env:"PYTYPER_LOG_LEVEL"`
	LogFile  string           `help:"Write logs to a rotating file instead of stderr." type:"path" env:"PYTYPER_LOG_FILE"`
	Version  kong.VersionFlag `help:"Show version information." short:"v"`
}

// CLI defines the command-line interface
type CLI struct {
	Globals

	Generate   GenerateCmd   `cmd:"" default:"withargs" help:"Generate TypedDict declarations from a JSON or YAML document."`
	Accumulate AccumulateCmd `cmd:"" help:"Merge several documents into one set of declarations."`
	Batch      BatchCmd      `cmd:"" help:"Generate one Python module per input document."`
	Check      CheckCmd      `cmd:"" help:"Validate documents against the shape of a sample document."`
}

// Context holds the runtime context handed to every command.
type Context struct {
	*Globals

	ctx    context.Context
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// exitRequest is raised by kong's exit hook (--help, --version) so that run
// can return instead of terminating the process.
type exitRequest int

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses args, executes the selected command and returns the exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (code int) {
	// A missing .env file is normal.
	_ = godotenv.Load()

	defer func() {
		if r := recover(); r != nil {
			req, ok := r.(exitRequest)
			if !ok {
				panic(r)
			}
			code = int(req)
		}
	}()

	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("pytyper"),
		kong.Description("A tool to convert JSON and YAML documents to Python TypedDict declarations"),
		kong.UsageOnError(),
		kong.Vars{"version": Version},
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { panic(exitRequest(code)) }),
	)
	if err != nil {
		fmt.Fprintf(stderr, "pytyper: %v\n", err)
		return 1
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "pytyper: error: %v\n", err)
		fmt.Fprintf(stderr, "\nFor help, run: pytyper --help\n")
		return 1
	}

	err = kctx.Run(&Context{
		Globals: &cli.Globals,
		ctx:     ctx,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
	})
	if err != nil {
		// Use our custom error handling to provide user-friendly error messages
		fmt.Fprintf(stderr, "%s\n", errors.UserFriendlyError(err))
		return 1
	}
	return 0
}

// setup loads the configuration with CLI overrides applied and installs
// the logger. The returned function flushes the log file.
func (c *Context) setup(overrides config.Overrides) (*config.Config, func(), error) {
	if overrides.LogLevel == "" {
		overrides.LogLevel = c.LogLevel
	}
	if c.Debug {
		overrides.LogLevel = "debug"
	}
	if overrides.LogFile == "" {
		overrides.LogFile = c.LogFile
	}

	path := c.Config
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.LoadConfigWithCLI(path, overrides)
	if err != nil {
		return nil, nil, errors.NewInputError(fmt.Sprintf("failed to load configuration: %v", err), err)
	}

	closeLog, err := logging.Setup(logging.Config{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}, c.stderr)
	if err != nil {
		return nil, nil, errors.NewOutputError("failed to set up logging", err)
	}
	if path != "" {
		slog.Debug("loaded config", "path", path)
	}

	return cfg, func() {
		if err := closeLog(); err != nil {
			fmt.Fprintf(c.stderr, "Error closing log file: %v\n", err)
		}
	}, nil
}
