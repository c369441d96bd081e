package cfg

import (
	"testing"
	"time"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestLoadCommands(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		verify func(t *testing.T, cfg *Cfg)
	}{
		{
			name: "analyze",
			args: []string{"analyze", "feeds.opml"},
			verify: func(t *testing.T, cfg *Cfg) {
				if cfg.Command != CommandAnalyze {
					t.Errorf("Expected command '%s', got '%s'", CommandAnalyze, cfg.Command)
				}
				if cfg.InputFile != "feeds.opml" {
					t.Errorf("Expected input file 'feeds.opml', got '%s'", cfg.InputFile)
				}
			},
		},
		{
			name: "dedupe",
			args: []string{"dedupe", "in.opml", "out.opml"},
			verify: func(t *testing.T, cfg *Cfg) {
				if cfg.InputFile != "in.opml" || cfg.OutputFile != "out.opml" {
					t.Errorf("Expected in.opml -> out.opml, got '%s' -> '%s'", cfg.InputFile, cfg.OutputFile)
				}
			},
		},
		{
			name: "validate with default timeout",
			args: []string{"validate", "feeds.opml"},
			verify: func(t *testing.T, cfg *Cfg) {
				if cfg.Timeout != 10 {
					t.Errorf("Expected default timeout 10, got %d", cfg.Timeout)
				}
				if cfg.TimeoutDuration() != 10*time.Second {
					t.Errorf("Expected timeout duration 10s, got %v", cfg.TimeoutDuration())
				}
				if cfg.Concurrency != 20 {
					t.Errorf("Expected default concurrency 20, got %d", cfg.Concurrency)
				}
			},
		},
		{
			name: "report with validation",
			args: []string{"--concurrency", "4", "report", "--validate-feeds", "--timeout", "3", "in.opml", "report.md"},
			verify: func(t *testing.T, cfg *Cfg) {
				if cfg.Command != CommandReport {
					t.Errorf("Expected command '%s', got '%s'", CommandReport, cfg.Command)
				}
				if !cfg.ValidateFeeds {
					t.Error("Expected validate-feeds to be enabled")
				}
				if cfg.Timeout != 3 {
					t.Errorf("Expected timeout 3, got %d", cfg.Timeout)
				}
				if cfg.Concurrency != 4 {
					t.Errorf("Expected concurrency 4, got %d", cfg.Concurrency)
				}
				if cfg.OutputFile != "report.md" {
					t.Errorf("Expected output file 'report.md', got '%s'", cfg.OutputFile)
				}
			},
		},
		{
			name: "serve",
			args: []string{"serve", "--sources-dir", "/etc/opml", "--port", "9090", "--api-key", "secret"},
			verify: func(t *testing.T, cfg *Cfg) {
				if cfg.SourcesDir != "/etc/opml" {
					t.Errorf("Expected sources dir '/etc/opml', got '%s'", cfg.SourcesDir)
				}
				if cfg.Port != "9090" {
					t.Errorf("Expected port '9090', got '%s'", cfg.Port)
				}
				if cfg.APIAccessKey != "secret" {
					t.Errorf("Expected API key 'secret', got '%s'", cfg.APIAccessKey)
				}
				if cfg.WorkerCount <= 0 || cfg.SchedulerInterval <= 0 {
					t.Errorf("Expected positive worker defaults, got %d workers every %ds", cfg.WorkerCount, cfg.SchedulerInterval)
				}
				if cfg.TimeoutDuration() != 10*time.Second {
					t.Errorf("Expected default timeout duration 10s, got %v", cfg.TimeoutDuration())
				}
			},
		},
		{
			name: "serve with timeout",
			args: []string{"serve", "--timeout", "3"},
			verify: func(t *testing.T, cfg *Cfg) {
				if cfg.TimeoutDuration() != 3*time.Second {
					t.Errorf("Expected timeout duration 3s, got %v", cfg.TimeoutDuration())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.args)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if cfg == nil {
				t.Fatal("Expected config, got nil")
			}
			tt.verify(t, cfg)

			if Get() != cfg {
				t.Error("Expected Get to return the loaded config")
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", []string{}},
		{"unknown command", []string{"interactive", "feeds.opml"}},
		{"missing input file", []string{"analyze"}},
		{"missing output file", []string{"dedupe", "in.opml"}},
		{"zero timeout", []string{"validate", "--timeout", "0", "feeds.opml"}},
		{"zero serve timeout", []string{"serve", "--timeout", "0"}},
		{"zero concurrency", []string{"--concurrency", "0", "validate", "feeds.opml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.args)
			if err == nil {
				t.Errorf("Expected error, got config %+v", cfg)
			}
		})
	}
}
