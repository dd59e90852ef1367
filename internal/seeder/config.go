package seeder

import (
	"errors"
	"fmt"
	"time"
)

// Default configuration values.
const (
	DefaultVotes   = 500
	DefaultWorkers = 8
	DefaultTimeout = 10 * time.Second
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid seeder config")

// Config holds configuration for a seeding run.
type Config struct {
	ServerURL  string        // Base URL of the voting service
	Votes      int           // Number of ballots to generate
	Precincts  []string      // Precincts ballots are spread over
	Workers    int           // Concurrent submissions
	Timeout    time.Duration // Per-request timeout
	Seed       uint64        // Ballot generator seed; 0 picks one from the clock
	Mine       bool          // Mine every precinct after submitting
	OutputFile string        // Generated ballots are written here when set
	Verbose    bool          // Log every rejected ballot
}

// Validate checks the run parameters.
func (c *Config) Validate() error {
	switch {
	case c.Votes <= 0:
		return fmt.Errorf("%w: votes must be > 0", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be > 0", ErrInvalidConfig)
	case len(c.Precincts) == 0:
		return fmt.Errorf("%w: at least one precinct is required", ErrInvalidConfig)
	}
	for _, p := range c.Precincts {
		if p == "" {
			return fmt.Errorf("%w: blank precinct", ErrInvalidConfig)
		}
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Accepted   int
	Rejected   int
	Failed     int
	Mined      bool
	Consistent bool
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
