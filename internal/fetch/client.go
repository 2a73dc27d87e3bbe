// Package fetch wraps plain HTTP with the two behaviors every network
// tier shares: per-domain politeness delays and bounded retry of
// transient failures. Redirects are followed hop by hop so the full chain
// is visible to classifiers, and every hop waits on its own domain's
// limiter, not the original URL's.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"boardwatch/internal/urlutil"
)

// ErrTooManyRedirects reports a redirect chain longer than the configured
// cap. It is a per-item failure, never a partial success.
var ErrTooManyRedirects = errors.New("too many redirects")

// RedirectResult records one resolution attempt: the chain walked, where
// it ended and how.
type RedirectResult struct {
	RequestedURL string
	FinalURL     string
	Chain        []string
	StatusCode   int
	Method       string
	Err          string
}

// OK reports whether the resolution produced a usable response.
func (r RedirectResult) OK() bool {
	return r.Err == "" && r.StatusCode > 0
}

type Options struct {
	Timeout       time.Duration
	MaxRedirects  int
	RetryAttempts int
	UserAgent     string
}

// Client is the shared fetcher. One instance serves all workers; the
// limiter inside it is what keeps cross-worker fetches polite.
type Client struct {
	http    *http.Client
	limiter *Limiter
	opts    Options
}

func NewClient(limiter *Limiter, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 8
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			// Redirects are followed manually in doFollow so each hop can
			// wait on its own domain and land in the chain.
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: limiter,
		opts:    opts,
	}
}

// retryableStatus matches the transient half of the error taxonomy.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// doFollow walks redirects for one method, rate-limiting every hop against
// that hop's own domain. The returned chain includes the requested URL and
// the final URL.
func (c *Client) doFollow(ctx context.Context, method, rawURL string) (*http.Response, []string, error) {
	current := rawURL
	chain := []string{current}

	for hop := 0; ; hop++ {
		if hop > c.opts.MaxRedirects {
			return nil, chain, ErrTooManyRedirects
		}
		if err := c.limiter.Wait(ctx, current); err != nil {
			return nil, chain, err
		}

		req, err := http.NewRequestWithContext(ctx, method, current, nil)
		if err != nil {
			return nil, chain, err
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, chain, err
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			loc := resp.Header.Get("Location")
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if loc == "" {
				return nil, chain, fmt.Errorf("redirect without location from %s", current)
			}
			next, err := resp.Request.URL.Parse(loc)
			if err != nil {
				return nil, chain, fmt.Errorf("bad redirect location %q: %w", loc, err)
			}
			current = next.String()
			chain = append(chain, current)
			continue
		}

		return resp, chain, nil
	}
}

// ResolveRedirects follows a URL to its destination, HEAD first and GET as
// fallback, retrying transient failures with backoff. Errors are folded
// into the result; callers branch on OK().
func (c *Client) ResolveRedirects(ctx context.Context, rawURL string) RedirectResult {
	normalized := urlutil.NormalizeURL(rawURL)
	if normalized == "" {
		return RedirectResult{RequestedURL: rawURL, FinalURL: rawURL, Method: http.MethodHead, Err: "empty url"}
	}
	if !urlutil.IsSupportedHTTPURL(normalized) {
		return RedirectResult{
			RequestedURL: rawURL,
			FinalURL:     normalized,
			Chain:        []string{normalized},
			Method:       http.MethodHead,
			Err:          "unsupported url",
		}
	}

	var lastErr error
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		var out RedirectResult
		err := retry.Do(
			func() error {
				resp, chain, err := c.doFollow(ctx, method, normalized)
				if err != nil {
					if errors.Is(err, ErrTooManyRedirects) || errors.Is(err, context.Canceled) {
						return retry.Unrecoverable(err)
					}
					return err // network error: transient, retry
				}
				defer func() {
					io.Copy(io.Discard, resp.Body)
					resp.Body.Close()
				}()
				if retryableStatus(resp.StatusCode) {
					return fmt.Errorf("status %d from %s", resp.StatusCode, chain[len(chain)-1])
				}
				out = RedirectResult{
					RequestedURL: normalized,
					FinalURL:     chain[len(chain)-1],
					Chain:        chain,
					StatusCode:   resp.StatusCode,
					Method:       method,
				}
				return nil
			},
			retry.Attempts(uint(c.opts.RetryAttempts)),
			retry.Delay(400*time.Millisecond),
			retry.MaxDelay(5*time.Second),
			retry.Context(ctx),
			retry.LastErrorOnly(true),
		)
		if err == nil {
			return out
		}
		lastErr = err
		// HEAD is cheap but not universally supported; fall through to GET
		// on any failure.
	}

	return RedirectResult{
		RequestedURL: normalized,
		FinalURL:     normalized,
		Chain:        []string{normalized},
		Method:       http.MethodGet,
		Err:          lastErr.Error(),
	}
}

// PostJSON posts a JSON payload and returns the response body, truncated
// at maxBytes. Used by ATS adapters with JSON search APIs. Non-2xx is a
// hard failure after transient retries.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload any, maxBytes int) ([]byte, error) {
	if !urlutil.IsSupportedHTTPURL(rawURL) {
		return nil, fmt.Errorf("unsupported url: %s", rawURL)
	}
	if maxBytes <= 0 {
		maxBytes = 350_000
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var body []byte
	err = retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx, rawURL); err != nil {
				return retry.Unrecoverable(err)
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(reqBody))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", c.opts.UserAgent)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json")

			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if retryableStatus(resp.StatusCode) {
				return fmt.Errorf("status %d from %s", resp.StatusCode, rawURL)
			}
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return retry.Unrecoverable(fmt.Errorf("status %d from %s", resp.StatusCode, rawURL))
			}

			b, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxBytes)))
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Attempts(uint(c.opts.RetryAttempts)),
		retry.Delay(400*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// FetchText GETs a body with no content-type gate, truncated at maxBytes.
// Used for robots.txt and sitemaps where servers disagree on types.
func (c *Client) FetchText(ctx context.Context, rawURL string, maxBytes int) (string, error) {
	normalized := urlutil.NormalizeURL(rawURL)
	if normalized == "" || !urlutil.IsSupportedHTTPURL(normalized) {
		return "", fmt.Errorf("unsupported url: %s", rawURL)
	}
	if maxBytes <= 0 {
		maxBytes = 350_000
	}

	var body string
	err := retry.Do(
		func() error {
			resp, chain, err := c.doFollow(ctx, http.MethodGet, normalized)
			if err != nil {
				if errors.Is(err, ErrTooManyRedirects) || errors.Is(err, context.Canceled) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			defer resp.Body.Close()

			if retryableStatus(resp.StatusCode) {
				return fmt.Errorf("status %d from %s", resp.StatusCode, chain[len(chain)-1])
			}
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return retry.Unrecoverable(fmt.Errorf("status %d from %s", resp.StatusCode, chain[len(chain)-1]))
			}

			b, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxBytes)))
			if err != nil {
				return err
			}
			body = string(b)
			return nil
		},
		retry.Attempts(uint(c.opts.RetryAttempts)),
		retry.Delay(400*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}
	return body, nil
}

// FetchHTML GETs a page body, truncated at maxBytes, returning the final
// URL after redirects. Non-HTML-ish content types come back empty without
// error: a PDF or image board is handled upstream by classification, not
// by parsing.
func (c *Client) FetchHTML(ctx context.Context, rawURL string, maxBytes int) (body, finalURL string, err error) {
	normalized := urlutil.NormalizeURL(rawURL)
	if normalized == "" {
		return "", "", fmt.Errorf("empty url")
	}
	if !urlutil.IsSupportedHTTPURL(normalized) {
		return "", normalized, fmt.Errorf("unsupported url: %s", normalized)
	}
	if maxBytes <= 0 {
		maxBytes = 350_000
	}

	err = retry.Do(
		func() error {
			resp, chain, err := c.doFollow(ctx, http.MethodGet, normalized)
			if err != nil {
				if errors.Is(err, ErrTooManyRedirects) || errors.Is(err, context.Canceled) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			defer resp.Body.Close()

			if retryableStatus(resp.StatusCode) {
				return fmt.Errorf("status %d from %s", resp.StatusCode, chain[len(chain)-1])
			}
			finalURL = chain[len(chain)-1]
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return retry.Unrecoverable(fmt.Errorf("status %d from %s", resp.StatusCode, finalURL))
			}

			ct := resp.Header.Get("Content-Type")
			if ct != "" && !strings.Contains(ct, "text/html") && !strings.Contains(ct, "xml") && !strings.Contains(ct, "json") {
				body = ""
				return nil
			}

			b, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxBytes)))
			if err != nil {
				return err
			}
			body = string(b)
			return nil
		},
		retry.Attempts(uint(c.opts.RetryAttempts)),
		retry.Delay(400*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", normalized, err
	}
	return body, finalURL, nil
}
