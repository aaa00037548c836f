package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/flarexio/marketfit/security"
)

var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Edge/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (iPad; CPU OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Android 14; Mobile; rv:121.0) Gecko/121.0 Firefox/121.0",
}

// StatusError is returned when a remote answers with an unexpected status code.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

type ClientConfig struct {
	Timeout time.Duration
	Guard   security.Validator

	// DialControl, when set, is run on every outgoing connection before it is made.
	DialControl func(network, address string, c syscall.RawConn) error

	// DisableJitter turns every Wait into a no-op.
	DisableJitter bool
}

const maxRedirects = 10

// Client is the http client shared by every scraper. All urls pass the guard before being fetched.
type Client struct {
	http   *http.Client
	guard  security.Validator
	jitter bool
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	guard := cfg.Guard
	if guard == nil {
		guard = security.AllowAll{}
	}

	c := &Client{
		guard:  guard,
		jitter: !cfg.DisableJitter,
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.DialControl != nil {
		dialer := &net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
			Control:   cfg.DialControl,
		}

		transport.DialContext = dialer.DialContext
	}

	c.http = &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}

			return c.validate(req.Context(), req.URL.String())
		},
	}

	return c
}

// validate runs the guard and marks any refusal with security.ErrBlocked.
func (c *Client) validate(ctx context.Context, rawURL string) error {
	err := c.guard.Validate(ctx, rawURL)
	if err == nil || errors.Is(err, security.ErrBlocked) {
		return err
	}

	return fmt.Errorf("%w: %w", security.ErrBlocked, err)
}

func (c *Client) UserAgent() string {
	return UserAgents[rand.IntN(len(UserAgents))]
}

// Wait sleeps for a random duration in [min, max).
func (c *Client) Wait(ctx context.Context, min, max time.Duration) error {
	if !c.jitter || max <= min {
		return ctx.Err()
	}

	d := min + rand.N(max-min)

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.validate(ctx, req.URL.String()); err != nil {
		return nil, err
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent())
	}

	return c.http.Do(req.WithContext(ctx))
}

func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	return c.Do(ctx, req)
}

// GetBody fetches rawURL and returns the body of a 200 response.
func (c *Client) GetBody(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{rawURL, resp.StatusCode}
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{rawURL, resp.StatusCode}
	}

	return json.NewDecoder(resp.Body).Decode(v)
}
