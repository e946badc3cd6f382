package edgar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	VERSION = "0.4.0"

	// MaxRequestsPerSecond is the SEC fair access cap
	// https://www.sec.gov/os/webmaster-faq#code-support
	MaxRequestsPerSecond = 10

	// DefaultMaxRetries is the default number of attempts per request
	DefaultMaxRetries = 5

	// DefaultChunkSize is the copy buffer used when streaming downloads to disk
	DefaultChunkSize = 32 * 1024

	// SecEmailEnvVar is the environment variable name for SEC email
	SecEmailEnvVar = "SEC_EMAIL"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// GetSecEmail retrieves email from environment variable or returns error
func GetSecEmail() (string, error) {
	email := os.Getenv(SecEmailEnvVar)
	if email == "" {
		return "", fmt.Errorf("SEC email required: set %s environment variable or use --email flag", SecEmailEnvVar)
	}
	return email, ValidateEmail(email)
}

// ValidateEmail rejects addresses the SEC would not accept as a contact
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	if strings.HasSuffix(email, "example.com") {
		return fmt.Errorf("use a real email address, not example.com: %s", email)
	}
	return nil
}

// BuildUserAgent creates a proper SEC User-Agent string
func BuildUserAgent(email string) string {
	return fmt.Sprintf("go-edgar-bulk/%s (%s)", VERSION, email)
}

// StatusError is returned when the SEC answers with a non-success status
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("SEC returned status %d for %s", e.StatusCode, e.URL)
}

// Temporary reports whether the request is worth retrying
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Downloader streams a remote file to a local path
type Downloader interface {
	DownloadToFile(ctx context.Context, url, path string) (int64, error)
}

// Client makes rate-limited, retried requests against SEC endpoints.
// Every request carries the identifying User-Agent the SEC requires.
type Client struct {
	userAgent     string
	httpClient    *http.Client
	limiter       *rate.Limiter
	ratePerSecond int
	maxRetries    int
	retryInterval time.Duration
	chunkSize     int
	logger        *zap.Logger
	metrics       *clientMetrics
	registerer    prometheus.Registerer
}

// ClientOption allows for customization of the client
type ClientOption func(*Client)

// WithHTTPClient allows custom HTTP client configuration
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit sets the maximum number of requests per second (1-10)
func WithRateLimit(perSecond int) ClientOption {
	return func(c *Client) {
		c.ratePerSecond = perSecond
	}
}

// WithMaxRetries sets the maximum number of attempts per request before giving up
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryInterval sets the initial backoff between attempts
func WithRetryInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryInterval = d
	}
}

// WithChunkSize sets the buffer size used when streaming downloads
func WithChunkSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new SEC client identified by userAgent
func NewClient(userAgent string, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(userAgent) == "" {
		return nil, ErrEmptyUserAgent
	}

	client := &Client{
		userAgent:     userAgent,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		ratePerSecond: MaxRequestsPerSecond,
		maxRetries:    DefaultMaxRetries,
		retryInterval: 500 * time.Millisecond,
		chunkSize:     DefaultChunkSize,
		logger:        zap.NewNop(),
	}

	for _, option := range options {
		option(client)
	}

	if client.ratePerSecond <= 0 || client.ratePerSecond > MaxRequestsPerSecond {
		return nil, fmt.Errorf("rate limit %d must be between 1 and %d requests per second", client.ratePerSecond, MaxRequestsPerSecond)
	}
	if client.maxRetries <= 0 {
		return nil, fmt.Errorf("max retries %d must be a positive integer", client.maxRetries)
	}

	client.limiter = rate.NewLimiter(rate.Limit(client.ratePerSecond), client.ratePerSecond)

	if client.registerer != nil {
		metrics, err := newClientMetrics(client.registerer)
		if err != nil {
			return nil, fmt.Errorf("failed to register client metrics: %w", err)
		}
		client.metrics = metrics
	}

	return client, nil
}

// UserAgent returns the User-Agent header sent with every request
func (c *Client) UserAgent() string {
	return c.userAgent
}

// Get performs a GET request and returns the successful response.
// The caller must close the response body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	var resp *http.Response
	err := c.retry(ctx, url, func(r *http.Response) error {
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetJSON fetches url and decodes the JSON body into v
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	return c.retry(ctx, url, func(resp *http.Response) error {
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode JSON from %s: %w", url, err))
		}
		return nil
	})
}

// GetBytes fetches url and returns the whole response body
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := c.retry(ctx, url, func(resp *http.Response) error {
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", url, err)
		}
		data = b
		return nil
	})
	return data, err
}

// DownloadToFile streams url into a new file at path and returns the bytes written.
// An existing file at path is never overwritten; a partial file is removed on failure.
func (c *Client) DownloadToFile(ctx context.Context, url, path string) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, fmt.Errorf("target path %s already exists", path)
		}
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}

	start := time.Now()
	var written int64
	err = c.retry(ctx, url, func(resp *http.Response) error {
		defer resp.Body.Close()

		// A retried attempt starts the file over
		if err := f.Truncate(0); err != nil {
			return backoff.Permanent(err)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return backoff.Permanent(err)
		}

		pw := &progressWriter{w: f, total: resp.ContentLength, logger: c.logger.With(zap.String("path", path))}
		n, err := io.CopyBuffer(pw, resp.Body, make([]byte, c.chunkSize))
		written = n
		if err != nil {
			return fmt.Errorf("failed to stream %s: %w", url, err)
		}
		return nil
	})

	closeErr := f.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close %s: %w", path, closeErr)
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}

	c.metrics.downloaded(written)
	c.logger.Info("download complete",
		zap.String("url", url),
		zap.String("path", path),
		zap.Int64("bytes", written),
		zap.Duration("elapsed", time.Since(start)),
	)
	return written, nil
}

// retry runs one rate-limited GET per attempt and hands successful responses to handle.
// Transport errors, 429s, and 5xx responses are retried with exponential backoff;
// errors wrapped with backoff.Permanent stop immediately.
func (c *Client) retry(ctx context.Context, url string, handle func(*http.Response) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limit GET %s: %w", url, err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if err := checkStatus(resp, url); err != nil {
			resp.Body.Close()
			return err
		}
		return handle(resp)
	}

	notify := func(err error, wait time.Duration) {
		c.metrics.retried()
		c.logger.Warn("retrying SEC request",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries-1)), ctx)

	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		c.metrics.request("error")
		c.logger.Debug("SEC request failed", zap.String("url", url), zap.Int("attempts", attempt), zap.Error(err))
		return err
	}
	c.metrics.request("success")
	return nil
}

func checkStatus(resp *http.Response, url string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, url))
	}

	statusErr := &StatusError{StatusCode: resp.StatusCode, URL: url}
	if statusErr.Temporary() {
		return statusErr
	}
	return backoff.Permanent(statusErr)
}

// progressWriter logs download progress at debug level every 10%
type progressWriter struct {
	w       io.Writer
	total   int64
	written int64
	nextLog int64
	logger  *zap.Logger
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.total > 0 && p.written >= p.nextLog {
		p.logger.Debug("download progress",
			zap.Int64("bytes", p.written),
			zap.Int64("total", p.total),
			zap.Int64("percent", p.written*100/p.total),
		)
		p.nextLog = p.written + p.total/10
	}
	return n, err
}
