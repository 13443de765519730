package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"sbc/config"
)

// Response size above this is refused, site pages and covers are way smaller.
const maxBodySize = 32 << 20

// Client is the only way out to the network. All fetches share its limiter
// and cache. Nil cache disables caching.
type Client struct {
	hc      *http.Client
	cfg     *config.FetchConfig
	cache   *Cache
	limiter *Limiter
	log     *zap.Logger
}

func NewClient(cfg *config.FetchConfig, cache *Cache, log *zap.Logger) *Client {
	return &Client{
		hc:      &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		cfg:     cfg,
		cache:   cache,
		limiter: NewLimiter(time.Duration(cfg.ThrottleMSec)*time.Millisecond, cfg.Jitter),
		log:     log.Named("fetch"),
	}
}

// Text retrieves a site page as a string. Referer is sent when not empty.
func (c *Client) Text(ctx context.Context, url, referer string) (string, error) {
	body, _, err := c.Bytes(ctx, url, referer)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Bytes retrieves url returning the body and the content type. Cached
// responses are served without touching the network or the limiter.
func (c *Client) Bytes(ctx context.Context, url, referer string) ([]byte, string, error) {
	if body, ctype, ok := c.cache.Get(ctx, url); ok {
		c.log.Debug("cache hit", zap.String("url", url))
		return body, ctype, nil
	}

	var (
		body  []byte
		ctype string
	)
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.cfg.Retries-1)), ctx)

	err := backoff.RetryNotify(
		func() error {
			var err error
			body, ctype, err = c.do(ctx, url, referer)
			return err
		},
		bo,
		func(err error, next time.Duration) {
			c.log.Debug("retrying", zap.String("url", url), zap.Duration("in", next), zap.Error(err))
		})
	if err != nil {
		return nil, "", fmt.Errorf("unable to fetch %s: %w", url, err)
	}

	c.cache.Put(ctx, url, body, ctype)
	return body, ctype, nil
}

func (c *Client) do(ctx context.Context, url, referer string) ([]byte, string, error) {
	c.limiter.Wait()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", c.cfg.AcceptLanguage)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("server replied with %s", resp.Status)
		// only too-many-requests and server side errors are worth retrying
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			return nil, "", backoff.Permanent(err)
		}
		return nil, "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}
