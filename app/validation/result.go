package validation

import (
	"slices"

	"github.com/lysyi3m/opml-comb/app/feed"
)

type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
	StatusError   Status = "error"
)

// Statuses lists every status in report order.
var Statuses = []Status{StatusValid, StatusInvalid, StatusError}

const (
	ErrNetworkTimeout   = "Network timeout"
	ErrMaxRetries       = "Max retry attempts reached"
	httpStatusErrFormat = "HTTP %d"
	bodyTooLargeFormat  = "response body exceeds %d bytes"
)

// Result is the verdict for one feed. It copies everything it needs from the
// feed so it can outlive the batch.
type Result struct {
	Feed       string   `json:"feed"`
	URL        string   `json:"url"`
	Status     Status   `json:"status"`
	Error      string   `json:"error"`
	Categories []string `json:"categories"`

	Format       Format `json:"format,omitempty"`
	Title        string `json:"title,omitempty"`
	Items        int    `json:"items,omitempty"`
	SuggestedURL string `json:"suggested_url,omitempty"`
	Attempts     int    `json:"attempts"`
}

func newResult(f feed.Feed, status Status, errText string) Result {
	categories := slices.Clone(f.Category)
	if categories == nil {
		categories = []string{}
	}

	return Result{
		Feed:       f.Title,
		URL:        f.XMLURL,
		Status:     status,
		Error:      errText,
		Categories: categories,
	}
}
