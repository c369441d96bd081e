package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type inputArgs struct {
	InputFile string `positional-arg-name:"input-file" description:"OPML file to read"`
}

type inputOutputArgs struct {
	InputFile  string `positional-arg-name:"input-file" description:"OPML file to read"`
	OutputFile string `positional-arg-name:"output-file" description:"File to write"`
}

type analyzeCmd struct {
	Args inputArgs `positional-args:"yes" required:"yes"`
}

type dedupeCmd struct {
	Args inputOutputArgs `positional-args:"yes" required:"yes"`
}

type validateCmd struct {
	Timeout int       `long:"timeout" env:"TIMEOUT" default:"10" description:"Request timeout in seconds for each attempt"`
	Args    inputArgs `positional-args:"yes" required:"yes"`
}

type reportCmd struct {
	ValidateFeeds bool            `long:"validate-feeds" description:"Append feed validation results to the report"`
	Timeout       int             `long:"timeout" env:"TIMEOUT" default:"10" description:"Request timeout in seconds for each attempt"`
	Args          inputOutputArgs `positional-args:"yes" required:"yes"`
}

type serveCmd struct {
	SourcesDir        string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	DBPath            string `long:"db-path" env:"DB_PATH" default:"./opml-comb.db" description:"SQLite database file"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://opml.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers for source validation"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	Timeout           int    `long:"timeout" env:"TIMEOUT" default:"10" description:"Request timeout in seconds for each attempt of an ad-hoc validation"`
}

type rawCfg struct {
	Concurrency int    `long:"concurrency" env:"CONCURRENCY" default:"20" description:"Maximum number of feeds validated at once"`
	UserAgent   string `long:"user-agent" env:"USER_AGENT" default:"OPML Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone    string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug       bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	Analyze  analyzeCmd  `command:"analyze" description:"Print feed, duplicate and category counts"`
	Dedupe   dedupeCmd   `command:"dedupe" description:"Write a copy of the OPML file without duplicate feeds"`
	Validate validateCmd `command:"validate" description:"Check every feed and write a timestamped validation report"`
	Report   reportCmd   `command:"report" description:"Write a Markdown analysis report"`
	Serve    serveCmd    `command:"serve" description:"Run the scheduled validation service"`
}

var globalCfg *Cfg

// Load parses args (without the program name). A nil Cfg with a nil error
// means help was requested.
func Load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Concurrency: raw.Concurrency,
		UserAgent:   raw.UserAgent,
		Timezone:    raw.Timezone,
		Debug:       raw.Debug,
		Version:     GetVersion(),
	}

	if parser.Active != nil {
		cfg.Command = parser.Active.Name
	}

	switch cfg.Command {
	case CommandAnalyze:
		cfg.InputFile = raw.Analyze.Args.InputFile
	case CommandDedupe:
		cfg.InputFile = raw.Dedupe.Args.InputFile
		cfg.OutputFile = raw.Dedupe.Args.OutputFile
	case CommandValidate:
		cfg.InputFile = raw.Validate.Args.InputFile
		cfg.Timeout = raw.Validate.Timeout
	case CommandReport:
		cfg.InputFile = raw.Report.Args.InputFile
		cfg.OutputFile = raw.Report.Args.OutputFile
		cfg.Timeout = raw.Report.Timeout
		cfg.ValidateFeeds = raw.Report.ValidateFeeds
	case CommandServe:
		cfg.SourcesDir = raw.Serve.SourcesDir
		cfg.DBPath = raw.Serve.DBPath
		cfg.Port = raw.Serve.Port
		cfg.BaseUrl = raw.Serve.BaseUrl
		cfg.WorkerCount = raw.Serve.WorkerCount
		cfg.SchedulerInterval = raw.Serve.SchedulerInterval
		cfg.APIAccessKey = raw.Serve.APIAccessKey
		cfg.Timeout = raw.Serve.Timeout
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func validate(cfg *Cfg) error {
	if cfg.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", cfg.Concurrency)
	}

	switch cfg.Command {
	case CommandValidate, CommandReport:
		if cfg.Timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %d", cfg.Timeout)
		}
	case CommandServe:
		if cfg.Timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %d", cfg.Timeout)
		}
		if cfg.WorkerCount <= 0 {
			return fmt.Errorf("worker count must be positive, got %d", cfg.WorkerCount)
		}
		if cfg.SchedulerInterval <= 0 {
			return fmt.Errorf("scheduler interval must be positive, got %d", cfg.SchedulerInterval)
		}
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return err
		}
		time.Local = loc
	}
	return nil
}

// TimeoutDuration is the per-attempt request timeout.
func (c *Cfg) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
