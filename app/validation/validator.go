package validation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/lysyi3m/opml-comb/app/feed"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultMaxAttempts    = 5
	DefaultInitialBackoff = 1 * time.Second
	DefaultMaxBodySize    = 50 << 20

	acceptHeader = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.9, */*;q=0.8"
)

// NewHTTPClient builds the client shared by every validation of a batch.
// timeout bounds each request attempt, body read included.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: timeout,
		},
	}
}

type Validator struct {
	httpClient     *http.Client
	userAgent      string
	maxAttempts    int
	initialBackoff time.Duration
	maxBodySize    int64
	inspector      *feed.Inspector
	discoverer     *feed.Discoverer
}

func NewValidator(httpClient *http.Client, userAgent string) *Validator {
	return &Validator{
		httpClient:     httpClient,
		userAgent:      userAgent,
		maxAttempts:    DefaultMaxAttempts,
		initialBackoff: DefaultInitialBackoff,
		maxBodySize:    DefaultMaxBodySize,
		inspector:      feed.NewInspector(),
		discoverer:     feed.NewDiscoverer(),
	}
}

// attemptResult is the tagged outcome of one fetch and classify attempt.
// When retry is set the driver may try again, otherwise status is final.
type attemptResult struct {
	retry   bool
	status  Status
	reason  string
	format  Format
	body    []byte
	pageURL string
}

func terminal(status Status, reason string) attemptResult {
	return attemptResult{status: status, reason: reason}
}

func retryable(reason string) attemptResult {
	return attemptResult{retry: true, reason: reason}
}

// Validate fetches the feed URL and returns exactly one Result. Every failure
// is folded into the result; cancelling ctx stops further attempts.
func (v *Validator) Validate(ctx context.Context, f feed.Feed) Result {
	start := time.Now()

	var (
		attempts     int
		attemptStart time.Time
		last         attemptResult
	)

	limited := retry.WithMaxRetries(uint64(v.maxAttempts-1), retry.NewExponential(v.initialBackoff))
	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		next, stop := limited.Next()
		if stop {
			return 0, true
		}
		return max(next-time.Since(attemptStart), 0), false
	})

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		attemptStart = time.Now()
		last = v.attempt(ctx, f.XMLURL)
		if !last.retry {
			return nil
		}

		slog.Debug("Validation attempt failed", "url", f.XMLURL, "attempt", attempts, "max_attempts", v.maxAttempts, "reason", last.reason)
		return retry.RetryableError(errors.New(last.reason))
	})

	var result Result
	switch {
	case err == nil:
		result = newResult(f, last.status, last.reason)
		result.Format = last.format
		v.enrich(&result, last)
	case ctx.Err() != nil:
		result = newResult(f, StatusError, ctx.Err().Error())
	default:
		result = newResult(f, StatusError, err.Error())
	}
	result.Attempts = attempts

	observe(result, time.Since(start))
	slog.Debug("Feed validated", "url", f.XMLURL, "status", string(result.Status), "attempts", attempts, "duration", time.Since(start))

	return result
}

func (v *Validator) attempt(ctx context.Context, url string) attemptResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return retryable(fmt.Sprintf("failed to create request: %v", err))
	}

	req.Header.Set("User-Agent", v.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return v.transportFailure(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 && resp.StatusCode <= 599:
		return retryable(ErrMaxRetries)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return terminal(StatusError, fmt.Sprintf(httpStatusErrFormat, resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, v.maxBodySize+1))
	if err != nil {
		if ctx.Err() != nil {
			return terminal(StatusError, ctx.Err().Error())
		}
		if isTimeout(err) {
			return terminal(StatusError, ErrNetworkTimeout)
		}
		return retryable(fmt.Sprintf("failed to read response body: %v", err))
	}
	if int64(len(data)) > v.maxBodySize {
		return terminal(StatusError, fmt.Sprintf(bodyTooLargeFormat, v.maxBodySize))
	}

	classification := Classify(data)
	if !classification.IsFeed() {
		return attemptResult{
			status:  StatusInvalid,
			reason:  classification.Reason,
			body:    data,
			pageURL: resp.Request.URL.String(),
		}
	}

	return attemptResult{status: StatusValid, format: classification.Format, body: data}
}

func (v *Validator) transportFailure(ctx context.Context, err error) attemptResult {
	switch {
	case ctx.Err() != nil:
		return terminal(StatusError, ctx.Err().Error())
	case isTimeout(err):
		return terminal(StatusError, ErrNetworkTimeout)
	case isConnectFailure(err):
		return retryable(err.Error())
	default:
		return terminal(StatusError, err.Error())
	}
}

// enrich adds metadata to a finished result without touching its verdict.
func (v *Validator) enrich(result *Result, last attemptResult) {
	switch result.Status {
	case StatusValid:
		metadata, err := v.inspector.Run(last.body)
		if err != nil {
			slog.Debug("Feed metadata unavailable", "url", result.URL, "error", err)
			return
		}
		result.Title = metadata.Title
		result.Items = metadata.ItemCount
	case StatusInvalid:
		result.SuggestedURL = v.discoverer.Run(last.pageURL, last.body)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isConnectFailure reports failures to establish or keep a connection.
// Name resolution failures are not included.
func isConnectFailure(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
