package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/lysyi3m/opml-comb/app/cfg"
	"github.com/lysyi3m/opml-comb/app/feed"
	"github.com/lysyi3m/opml-comb/app/report"
	"github.com/lysyi3m/opml-comb/app/validation"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	appCfg, err := cfg.Load(os.Args[1:])
	if err != nil {
		// go-flags already printed its own parse errors
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.RFC3339,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch appCfg.Command {
	case cfg.CommandAnalyze:
		err = runAnalyze(appCfg)
	case cfg.CommandDedupe:
		err = runDedupe(appCfg)
	case cfg.CommandValidate:
		err = runValidate(ctx, appCfg)
	case cfg.CommandReport:
		err = runReport(ctx, appCfg)
	case cfg.CommandServe:
		err = runServe(ctx, appCfg)
	default:
		err = fmt.Errorf("unknown command: %s", appCfg.Command)
	}

	if err != nil {
		slog.Error("Command failed", "command", appCfg.Command, "error", err)
		os.Exit(1)
	}
}

func loadFeeds(path string) ([]feed.Feed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read OPML file: %w", err)
	}

	feeds, err := feed.NewParser().Run(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	slog.Debug("OPML loaded", "file", path, "feeds", len(feeds))
	return feeds, nil
}

func runAnalyze(appCfg *cfg.Cfg) error {
	feeds, err := loadFeeds(appCfg.InputFile)
	if err != nil {
		return err
	}

	summary := report.Summarize(feeds)

	fmt.Println("\n📊 OPML Analysis Report")
	fmt.Printf("Total Feeds: %d\n", len(summary.Feeds))
	fmt.Printf("Unique Feeds: %d\n", summary.Unique)
	fmt.Printf("Duplicates: %d\n", len(summary.Duplicates))
	fmt.Printf("Total Categories: %d\n", len(summary.Categories))

	if len(summary.Duplicates) > 0 {
		fmt.Println("\n🔄 Duplicate Feeds:")
		for _, f := range summary.Duplicates {
			fmt.Printf("  - %s (%s)\n", f.Title, f.XMLURL)
			if len(f.Category) > 0 {
				fmt.Printf("    Categories: %s\n", strings.Join(f.Category, " > "))
			}
		}
	}

	return nil
}

func runDedupe(appCfg *cfg.Cfg) error {
	feeds, err := loadFeeds(appCfg.InputFile)
	if err != nil {
		return err
	}

	unique, duplicates := feed.NewDeduplicator().Run(feeds)

	opml, err := feed.NewGenerator().Run(unique)
	if err != nil {
		return fmt.Errorf("failed to generate OPML: %w", err)
	}

	if err := os.WriteFile(appCfg.OutputFile, []byte(opml), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", appCfg.OutputFile, err)
	}

	fmt.Printf("✅ Removed %d duplicates\n", len(duplicates))
	return nil
}

// validateFeeds checks each distinct feed once.
func validateFeeds(ctx context.Context, appCfg *cfg.Cfg, feeds []feed.Feed) []validation.Result {
	feeds, _ = feed.NewDeduplicator().Run(feeds)

	client := validation.NewHTTPClient(appCfg.TimeoutDuration())
	validator := validation.NewValidator(client, appCfg.UserAgent)
	return validation.NewBatch(validator, appCfg.Concurrency).Run(ctx, feeds)
}

func runValidate(ctx context.Context, appCfg *cfg.Cfg) error {
	feeds, err := loadFeeds(appCfg.InputFile)
	if err != nil {
		return err
	}

	results := validateFeeds(ctx, appCfg, feeds)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("validation interrupted: %w", err)
	}

	now := time.Now()
	reportPath := report.ValidationFileName(appCfg.InputFile, now)
	content := report.Validation(results, appCfg.InputFile, now)

	if err := os.WriteFile(reportPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write validation report: %w", err)
	}

	fmt.Printf("\n✅ Validation report saved: %s\n", reportPath)
	return nil
}

func runReport(ctx context.Context, appCfg *cfg.Cfg) error {
	feeds, err := loadFeeds(appCfg.InputFile)
	if err != nil {
		return err
	}

	content := report.Analysis(report.Summarize(feeds), time.Now())

	if appCfg.ValidateFeeds {
		results := validateFeeds(ctx, appCfg, feeds)
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("validation interrupted: %w", err)
		}
		content += report.ValidationSection(results)
	}

	if err := os.WriteFile(appCfg.OutputFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	fmt.Printf("✅ Report generated: %s\n", appCfg.OutputFile)
	return nil
}
