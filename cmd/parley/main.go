// parley - multi-provider LLM chat backend
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/matiasleandrokruk/parley/internal/infra/config"
	"github.com/matiasleandrokruk/parley/internal/infra/logging"
	"github.com/matiasleandrokruk/parley/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := pflag.NewFlagSet("parley", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	configPath := fs.StringP("config", "c", "", "Path to a YAML config file")
	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.BoolP("help", "h", false, "Show help")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(out, err) //nolint:errcheck
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}

	if *showHelp {
		printHelp(out)
		return 0
	}

	command := "serve"
	if fs.NArg() > 0 {
		command = fs.Arg(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(out, err) //nolint:errcheck
		return 1
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(out, err) //nolint:errcheck
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "serve":
		err = serve(ctx, cfg, log)
	case "migrate":
		err = migrate(ctx, cfg, log, out)
	case "models":
		err = listModels(cfg, out)
	default:
		fmt.Fprintf(out, "unknown command %q\n", command) //nolint:errcheck
		return 2
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error(command + " failed")
		return 1
	}
	return 0
}

func printHelp(out io.Writer) {
	helpText := `parley - multi-provider LLM chat backend

Usage:
  parley [options] [command]

Options:
  -c, --config   Path to a YAML config file
  --version      Show version information
  -h, --help     Show this help message

Commands:
  serve          Start the HTTP server (default)
  migrate        Apply audit database migrations
  models         List the model catalog

Environment:
  PARLEY_<SECTION>_<KEY> overrides any config key, e.g. PARLEY_SERVER_PORT.
  ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY and OLLAMA_BASE_URL are
  read as well; a .env file in the working directory is loaded first.

Examples:
  parley --version
  parley --config parley.yaml serve
  PARLEY_AUDIT_DB_PATH=./parley.db parley migrate`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
