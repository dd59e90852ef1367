// Command tally is the voting client: it serves the view API and renders
// the precinct view, leaderboards and exports in the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/okian/tally/internal/adapters/tallyclient"
	"github.com/okian/tally/internal/adapters/term"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/config"
	"github.com/okian/tally/internal/export"
	"github.com/okian/tally/pkg/logger"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// errUsage marks errors that should print usage.
var errUsage = errors.New("usage")

// env is what every command runs with.
type env struct {
	cfg    *config.Config
	out    io.Writer
	errOut io.Writer
	log    logger.Logger
	render *term.Renderer
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

func commands() []command {
	return []command{
		{"serve", "serve the view API", runServe},
		{"show", "show precinct cards, or one precinct", runShow},
		{"results", "show the leaderboard, server results or a verification", runResults},
		{"vote", "submit a ballot", runVote},
		{"mine", "finalize pending votes", runMine},
		{"export", "write the paginated vote listing", runExport},
		{"print", "write the printable report", runPrint},
		{"archive", "write or read a compressed snapshot", runArchive},
		{"roster", "show or save the roster", runRoster},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var (
		configPath string
		serverURL  string
		logLevel   string
		jsonLogs   bool
	)
	flagSet := pflag.NewFlagSet("tally", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&configPath, "config", os.Getenv(config.EnvPrefix+"CONFIG"), "YAML config file")
	flagSet.StringVar(&serverURL, "server", "", "voting service base URL (overrides config)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	flagSet.BoolVar(&jsonLogs, "json-logs", false, "log JSON lines")
	flagSet.Usage = func() { printUsage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(stderr, flagSet)
		return exitUsage
	}

	if err := logger.Init(logger.WithWriter(stderr), logger.WithJSON(jsonLogs)); err != nil {
		fmt.Fprintf(stderr, "failed to initialize logging: %v\n", err)
		return exitError
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return exitError
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return exitError
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	e := &env{cfg: cfg, out: stdout, errOut: stderr, log: logger.Get(), render: term.New()}
	for _, c := range commands() {
		if c.name != rest[0] {
			continue
		}
		err := c.run(ctx, e, rest[1:])
		switch {
		case err == nil:
			return exitOK
		case errors.Is(err, pflag.ErrHelp):
			return exitOK
		case errors.Is(err, errUsage):
			fmt.Fprintf(stderr, "%s: %v\n", c.name, err)
			return exitUsage
		default:
			_ = e.render.Notice(stderr, "", err)
			return exitError
		}
	}
	fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
	printUsage(stderr, flagSet)
	return exitUsage
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprint(w, "Usage: tally [flags] <command> [command flags]\n\nCommands:\n")
	cmds := commands()
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].name < cmds[j].name })
	for _, c := range cmds {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, "\nFlags:\n%s", flagSet.FlagUsages())
}

// newFlagSet returns a flag set for a subcommand that reports errors
// instead of exiting.
func newFlagSet(e *env, name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(e.errOut)
	return fs
}

func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}
	return nil
}

// newService connects to the voting service and loads the roster.
func newService(ctx context.Context, e *env) (*service.Service, error) {
	client, err := tallyclient.New(e.cfg.ServerURL,
		tallyclient.WithTimeout(e.cfg.RequestTimeout()),
		tallyclient.WithLogger(e.log.Named("client")),
	)
	if err != nil {
		return nil, err
	}
	svc := service.New(client,
		service.WithLogger(e.log.Named("service")),
		service.WithRosterFile(e.cfg.RosterFile),
		service.WithLayout(layoutOf(e.cfg)),
		service.WithRedactionMarker(e.cfg.RedactionMarker),
	)
	if err := svc.Start(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

// loadView is newService followed by a refresh.
func loadView(ctx context.Context, e *env) (*service.Service, *service.View, error) {
	svc, err := newService(ctx, e)
	if err != nil {
		return nil, nil, err
	}
	v, err := svc.Refresh(ctx)
	if err != nil {
		return nil, nil, err
	}
	return svc, v, nil
}

func layoutOf(cfg *config.Config) export.Layout {
	return export.Layout{
		TopOffset:    cfg.PageTopOffset,
		LineHeight:   cfg.PageLineHeight,
		HeaderHeight: cfg.PageHeaderHeight,
		MaxOffset:    cfg.PageMaxOffset,
	}
}

// output runs write against path, or stdout when path is empty or "-".
func output(e *env, path string, write func(io.Writer) error) (err error) {
	if path == "" || path == "-" {
		return write(e.out)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}

func oneOf(value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%w: format must be one of %s", errUsage, strings.Join(allowed, ", "))
}
