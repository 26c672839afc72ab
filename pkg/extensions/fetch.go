package extensions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
)

// maxRedirects matches the limit net/http applies when it follows redirects
// itself.
const maxRedirects = 10

// ErrNetworkFailure is returned when a download cannot be completed.
var ErrNetworkFailure = errors.New("network failure")

// Downloader fetches the full body behind a URL.
type Downloader interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Fetcher downloads archives over HTTP(S). Redirects are followed by
// re-issuing the request against Location. No timeout is configured; callers
// bound latency through ctx.
type Fetcher struct {
	Client    *http.Client
	UserAgent string

	log *logrus.Entry
}

// NewFetcher returns a Fetcher that sends userAgent with every request.
func NewFetcher(userAgent string) *Fetcher {
	return &Fetcher{
		Client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		UserAgent: userAgent,
		log:       logrus.WithField("pkg", "extensions"),
	}
}

// Get returns the body of the first non-redirect response for rawURL.
// Responses with status 400 and above fail with "<code>: <text> - <url>".
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	log := f.logger().WithField("method", "Get")

	current := rawURL
	for hop := 0; ; hop++ {
		if hop > maxRedirects {
			return nil, fmt.Errorf("%w: stopped after %d redirects - %s", ErrNetworkFailure, maxRedirects, rawURL)
		}

		resp, err := f.do(ctx, current)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode >= 400:
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %d: %s - %s", ErrNetworkFailure, resp.StatusCode, statusText(resp), current)
		case resp.StatusCode >= 300:
			loc := resp.Header.Get("Location")
			resp.Body.Close()
			if loc == "" {
				return nil, fmt.Errorf("%w: %d without Location - %s", ErrNetworkFailure, resp.StatusCode, current)
			}
			next, err := resolveLocation(current, loc)
			if err != nil {
				return nil, fmt.Errorf("%w: bad redirect target %q: %w", ErrNetworkFailure, loc, err)
			}
			log.WithFields(logrus.Fields{"from": current, "to": next}).Debug("following redirect")
			current = next
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: reading body of %s: %w", ErrNetworkFailure, current, err)
		}
		log.WithFields(logrus.Fields{"url": current, "bytes": len(body)}).Debug("download complete")
		return body, nil
	}
}

func (f *Fetcher) do(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = NewFetcher("").Client
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	return resp, nil
}

func (f *Fetcher) logger() *logrus.Entry {
	if f.log == nil {
		return logrus.WithField("pkg", "extensions")
	}
	return f.log
}

func statusText(resp *http.Response) string {
	if t := http.StatusText(resp.StatusCode); t != "" {
		return t
	}
	return resp.Status
}

func resolveLocation(base, loc string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	l, err := url.Parse(loc)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(l).String(), nil
}
