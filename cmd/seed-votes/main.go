// Command seed-votes submits random ballots to a voting service and checks
// that the local recount agrees with the service's tally.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/okian/tally/internal/adapters/tallyclient"
	"github.com/okian/tally/internal/seeder"
	"github.com/okian/tally/pkg/logger"
)

const (
	defaultWorkers = 2 // multiplier for runtime.NumCPU()
	runTimeout     = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := seeder.Config{}
	var logLevel string

	flagSet := pflag.NewFlagSet("seed-votes", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.ServerURL, "server", "http://localhost:5000", "voting service base URL")
	flagSet.IntVarP(&cfg.Votes, "votes", "n", seeder.DefaultVotes, "ballots to generate and submit")
	flagSet.StringSliceVarP(&cfg.Precincts, "barangay", "b", []string{"Poblacion", "San Isidro", "Santa Cruz"}, "precincts to spread ballots over")
	flagSet.IntVarP(&cfg.Workers, "workers", "w", runtime.NumCPU()*defaultWorkers, "concurrent submissions")
	flagSet.DurationVar(&cfg.Timeout, "timeout", seeder.DefaultTimeout, "per-request timeout")
	flagSet.Uint64Var(&cfg.Seed, "seed", 0, "ballot generator seed; 0 picks one")
	flagSet.BoolVar(&cfg.Mine, "mine", false, "mine every precinct after submitting")
	flagSet.StringVarP(&cfg.OutputFile, "output", "o", "", "write generated ballots to this JSON file")
	flagSet.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log every rejected ballot")
	flagSet.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(logLevel); err != nil {
		return err
	}
	log := logger.Named("seeder")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	client, err := tallyclient.New(cfg.ServerURL,
		tallyclient.WithTimeout(cfg.Timeout),
		tallyclient.WithLogger(log.Named("client")),
		tallyclient.WithUserAgent("tally-seed-votes"),
	)
	if err != nil {
		return err
	}

	stats, err := seeder.NewRunner(&cfg, client, log).Run(ctx)
	if stats != nil {
		fmt.Printf("%s ballots accepted, %s rejected, %s failed in %s\n",
			humanize.Comma(int64(stats.Accepted)),
			humanize.Comma(int64(stats.Rejected)),
			humanize.Comma(int64(stats.Failed)),
			stats.Duration.Round(time.Millisecond))
	}
	return err
}
