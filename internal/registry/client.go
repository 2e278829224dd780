package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/resilience"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public npm registry.
const DefaultBaseURL = "https://registry.npmjs.org"

// abbreviatedMetadata asks the registry for the install-time subset of the
// package document, which is much smaller than the full one.
const abbreviatedMetadata = "application/vnd.npm.install-v1+json; q=1.0, application/json; q=0.8"

// Options configures a Client.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RetryCount        int
	RequestsPerSecond float64
	UserAgent         string
	Logger            *logging.Logger
}

// Client talks to an npm-compatible registry.
type Client struct {
	baseURL string
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *logging.Logger
}

// New creates a registry client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "executejs/0.1"
	}
	logger := logging.OrNop(opts.Logger).Named("registry")

	// retryablehttp is only used for its pooled transport; retry policy lives in resty
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	restyClient := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("User-Agent", opts.UserAgent).
		SetTransport(retryClient.HTTPClient.Transport)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	breaker := resilience.New("registry", resilience.Settings{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || clientError(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		resty:   restyClient,
		limiter: limiter,
		breaker: breaker,
		logger:  logger,
	}
}

// BaseURL returns the registry root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BreakerState exposes the circuit breaker state for health reporting.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// PackageURL returns the packument URL for a package name. The slash of a
// scoped name is escaped as the registry expects.
func (c *Client) PackageURL(name string) string {
	return c.baseURL + "/" + url.PathEscape(name)
}

// Metadata fetches and decodes the package document for name.
func (c *Client) Metadata(ctx context.Context, name string) (*Packument, error) {
	target := c.PackageURL(name)
	c.logger.Debug("fetching package metadata", zap.String("package", name), zap.String("url", target))

	body, err := c.get(ctx, target, abbreviatedMetadata)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata for %s: %w", name, err)
	}

	var doc Packument
	if err := sonic.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w: %w", name, ErrRegistry, err)
	}
	if doc.Name == "" {
		doc.Name = name
	}
	return &doc, nil
}

// Download retrieves the tarball at tarballURL.
func (c *Client) Download(ctx context.Context, tarballURL string) ([]byte, error) {
	if _, err := url.ParseRequestURI(tarballURL); err != nil {
		return nil, fmt.Errorf("invalid tarball URL %q: %w", tarballURL, err)
	}

	start := time.Now()
	body, err := c.get(ctx, tarballURL, "application/octet-stream")
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", tarballURL, err)
	}

	c.logger.Debug("tarball downloaded",
		zap.String("url", tarballURL),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)))
	return body, nil
}

func (c *Client) get(ctx context.Context, target, accept string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	resp, err := resilience.Do(c.breaker, func() (*resty.Response, error) {
		resp, err := c.resty.R().
			SetContext(ctx).
			SetHeader("Accept", accept).
			Get(target)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRegistry, err)
		}
		if !resp.IsSuccess() {
			return nil, &StatusError{URL: target, StatusCode: resp.StatusCode()}
		}
		return resp, nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, fmt.Errorf("%w: registry unavailable: %w", ErrRegistry, err)
	}
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}
