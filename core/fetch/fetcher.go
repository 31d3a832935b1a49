// Package fetch implements the Fetcher interface.
// It performs cookie-bearing HTTP GET requests and classifies failures as
// transient or permanent for the retry governor.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/gaurav-prasanna/bookpipe/core"
	"github.com/gaurav-prasanna/bookpipe/core/retry"
	"golang.org/x/net/publicsuffix"
)

const (
	defaultUserAgent = "bookpipe/1.0 (https://github.com/gaurav-prasanna/bookpipe)"
	maxBodyBytes     = 64 << 20
)

// StatusError is returned for non-2xx responses. The body is kept so
// callers can inspect platform error pages.
type StatusError struct {
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode == http.StatusTooEarly,
		e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode >= 500:
		return true
	}
	return false
}

// HTTPFetcher fetches pages and assets via HTTP with a shared cookie jar.
// Timeouts come from the caller's context, one per attempt.
type HTTPFetcher struct {
	client *http.Client
	// MaxBodyBytes bounds a response body. Zero means 64 MiB.
	MaxBodyBytes int64
}

// ErrBodyTooLarge is returned, marked permanent, for bodies above the limit.
var ErrBodyTooLarge = errors.New("response body too large")

// New creates an HTTPFetcher whose jar holds the session cookies for every
// given domain and its subdomains.
func New(cookies []*http.Cookie, domains ...string) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	for _, domain := range domains {
		u := &url.URL{Scheme: "https", Host: domain, Path: "/"}
		scoped := make([]*http.Cookie, 0, len(cookies))
		for _, c := range cookies {
			cc := *c
			if cc.Domain == "" {
				cc.Domain = domain
			}
			if cc.Path == "" {
				cc.Path = "/"
			}
			scoped = append(scoped, &cc)
		}
		jar.SetCookies(u, scoped)
	}
	return &HTTPFetcher{client: &http.Client{Jar: jar}}, nil
}

// NewWithClient wraps an existing client, mainly for tests.
func NewWithClient(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

// Fetch retrieves the body of the given URL. Non-2xx responses yield a
// *StatusError; 4xx other than 408/425/429 are marked permanent.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*core.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	limit := f.MaxBodyBytes
	if limit <= 0 {
		limit = maxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, retry.Permanent(fmt.Errorf("fetching %s: %w (over %d bytes)", rawURL, ErrBodyTooLarge, limit))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serr := &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Body: body}
		if serr.Transient() {
			return nil, serr
		}
		return nil, retry.Permanent(serr)
	}

	return &core.FetchResult{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// AsStatusError unwraps a *StatusError from err, if any.
func AsStatusError(err error) (*StatusError, bool) {
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr, true
	}
	return nil, false
}
