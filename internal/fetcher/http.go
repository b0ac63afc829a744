package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/auction-cli/internal/resilience"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; auction-cli/1.0)"

// maxBodyBytes bounds a single response read.
const maxBodyBytes = 32 << 20

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	Source    string
	UserAgent string
	Timeout   time.Duration
	Client    *http.Client
	Limiter   *resilience.Limiter
	Retry     resilience.RetryConfig
}

// HTTPFetcher implements Fetcher using net/http with a per-source limiter
// and linear-backoff retry on transient failures.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Source == "" {
		opts.Source = "http"
	}
	if opts.Limiter == nil {
		opts.Limiter = resilience.NewLimiter(opts.Source, 0)
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
		opts.Retry.OnRetry = resilience.RetryLogger(opts.Source, "http")
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &HTTPFetcher{client: client, opts: opts}
}

// Source returns the source name used in errors and logs.
func (f *HTTPFetcher) Source() string { return f.opts.Source }

// Do performs req, retrying transient failures, and returns the body.
func (f *HTTPFetcher) Do(ctx context.Context, req Request) ([]byte, error) {
	return resilience.DoVal(ctx, f.opts.Retry, func(ctx context.Context) ([]byte, error) {
		resp, err := f.send(ctx, req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, resilience.NewTransientError(
				eris.Wrapf(err, "%s: read body", f.opts.Source), 0)
		}
		return body, nil
	})
}

// Download fetches url and returns the open body of a 2xx response. The
// caller must close it.
func (f *HTTPFetcher) Download(ctx context.Context, url string, header http.Header) (io.ReadCloser, error) {
	return resilience.DoVal(ctx, f.opts.Retry, func(ctx context.Context) (io.ReadCloser, error) {
		resp, err := f.send(ctx, Request{Method: http.MethodGet, URL: url, Header: header})
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	})
}

// GetJSON performs a GET and decodes the JSON response into out.
func (f *HTTPFetcher) GetJSON(ctx context.Context, url string, header http.Header, out any) error {
	body, err := f.Do(ctx, Request{Method: http.MethodGet, URL: url, Header: header})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "%s: decode response", f.opts.Source)
	}
	return nil
}

// PostJSON encodes in as the request body and decodes the response into out.
func (f *HTTPFetcher) PostJSON(ctx context.Context, url string, header http.Header, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return eris.Wrapf(err, "%s: encode request", f.opts.Source)
	}
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/json")

	body, err := f.Do(ctx, Request{Method: http.MethodPost, URL: url, Header: h, Body: payload})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "%s: decode response", f.opts.Source)
	}
	return nil
}

// send waits for the limiter and performs a single attempt. Non-2xx
// responses are closed and returned as errors.
func (f *HTTPFetcher) send(ctx context.Context, r Request) (*http.Response, error) {
	if err := f.opts.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: create request", f.opts.Source)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	for k, vals := range r.Header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrapf(err, "%s: request", f.opts.Source)
		}
		// Network errors and client timeouts are worth another attempt.
		return nil, resilience.NewTransientError(eris.Wrapf(err, "%s: request", f.opts.Source), 0)
	}

	if err := resilience.CheckStatus(f.opts.Source, resp.StatusCode); err != nil {
		_ = resp.Body.Close()
		zap.L().Debug("fetcher: non-2xx response",
			zap.String("source", f.opts.Source),
			zap.String("url", r.URL),
			zap.Int("status", resp.StatusCode),
		)
		return nil, err
	}
	return resp, nil
}
