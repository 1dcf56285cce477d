package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"polecheck/internal/config"
)

const maxAttempts = 5

var ErrTooLarge = errors.New("remote document exceeds size limit")

// Client downloads map documents from HTTP(S) URLs.
type Client struct {
	httpClient *http.Client
	limiter    *RateLimiter
	maxBytes   int64
	backoff    func(attempt int) time.Duration
}

// Download is a fetched document and the filename it should be processed as.
type Download struct {
	Filename    string
	ContentType string
	Content     []byte
}

func NewClient(cfg config.Config) *Client {
	timeout := time.Duration(cfg.SourceTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxMB := cfg.SourceMaxMB
	if maxMB <= 0 {
		maxMB = 64
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    NewRateLimiter(cfg.SourceRateLimitRPS),
		maxBytes:   int64(maxMB) << 20,
		backoff:    exponentialBackoff,
	}
}

// Fetch GETs rawURL, retrying transport errors and 429/5xx responses with
// exponential backoff.
func (c *Client) Fetch(ctx context.Context, rawURL string) (Download, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Download{}, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Download{}, fmt.Errorf("unsupported url scheme: %q", u.Scheme)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return Download{}, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return Download{}, err
		}
		req.Header.Set("Accept", "application/vnd.google-earth.kml+xml, application/vnd.google-earth.kmz, */*")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return Download{}, ctx.Err()
			}
			lastErr = err
			if err := c.wait(ctx, attempt); err != nil {
				return Download{}, err
			}
			continue
		}

		body, readErr := c.readBody(resp.Body)
		_ = resp.Body.Close()
		if errors.Is(readErr, ErrTooLarge) {
			return Download{}, readErr
		}
		if readErr != nil {
			lastErr = readErr
			if err := c.wait(ctx, attempt); err != nil {
				return Download{}, err
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				if err := c.wait(ctx, attempt); err != nil {
					return Download{}, err
				}
				lastErr = fmt.Errorf("source status %d", resp.StatusCode)
				continue
			}
			return Download{}, fmt.Errorf("source error: status=%d url=%s", resp.StatusCode, u.Redacted())
		}

		return Download{
			Filename:    filenameHint(resp, u),
			ContentType: resp.Header.Get("Content-Type"),
			Content:     body,
		}, nil
	}

	if lastErr == nil {
		lastErr = errors.New("source request failed")
	}
	return Download{}, lastErr
}

// wait sleeps before the next attempt; there is nothing to wait for after the last.
func (c *Client) wait(ctx context.Context, attempt int) error {
	if attempt >= maxAttempts {
		return nil
	}
	return sleepCtx(ctx, c.backoff(attempt))
}

func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
}

func (c *Client) readBody(body io.Reader) ([]byte, error) {
	blob, err := io.ReadAll(io.LimitReader(body, c.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(blob)) > c.maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, c.maxBytes)
	}
	return blob, nil
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// filenameHint prefers the Content-Disposition filename, then the last URL
// path segment.
func filenameHint(resp *http.Response, u *url.URL) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := strings.TrimSpace(params["filename"]); name != "" {
				return path.Base(name)
			}
		}
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
