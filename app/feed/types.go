package feed

import (
	"time"
)

// Subscription list types

type Feed struct {
	Title    string   `json:"title"`
	XMLURL   string   `json:"xml_url"`
	HTMLURL  string   `json:"html_url,omitempty"`
	Category []string `json:"category"` // outermost first, empty when uncategorized
}

type Metadata struct {
	Title         string
	Link          string
	ItemCount     int
	FeedUpdatedAt *time.Time
}

// Configuration types

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	OPML     string         `yaml:"opml"` // relative paths resolve against the sources directory
	Settings ConfigSettings `yaml:"settings"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	Timeout         int  `yaml:"timeout"`          // seconds, per request attempt
	Concurrency     int  `yaml:"concurrency"`
	Dedupe          bool `yaml:"dedupe"`
}
