package facade

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/angelmondragon/ghanadude-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
)

const (
	breakerName      = "ghanadude-backend"
	maxResponseBytes = 1 << 20
)

// Client talks JSON to the storefront backend. Every call goes through a
// circuit breaker; nothing is retried.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logg    *logger.Logger
}

// NewClient builds a facade client. httpClient may be nil, in which case one is
// created with the configured timeout.
func NewClient(cfg config.FacadeConfig, httpClient *http.Client, logg *logger.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid facade base url %q", cfg.BaseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	minRequests := cfg.BreakerMinRequests
	ratio := cfg.BreakerFailureRatio
	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !pkgerrors.IsCode(err, pkgerrors.CodeDependency)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logg == nil {
				return
			}
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "facade.breaker.state_change")
		},
	}

	return &Client{
		baseURL: base,
		http:    httpClient,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		logg:    logg,
	}, nil
}

// BreakerState exposes the breaker position for readiness checks.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// Ping reports whether the backend is currently considered reachable.
func (c *Client) Ping(context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return errors.New("backend circuit open")
	}
	return nil
}

type requestOptions struct {
	body    any
	headers map[string]string
}

func (c *Client) call(ctx context.Context, method, path string, opts requestOptions, out any) error {
	endpoint := c.baseURL.String() + path

	var payload []byte
	if opts.body != nil {
		encoded, err := json.Marshal(opts.body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode backend request")
		}
		payload = encoded
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, endpoint, payload, opts.headers)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "backend unavailable")
		}
		c.logFailure(ctx, method, path, err)
		return err
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode backend response")
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint string, payload []byte, headers map[string]string) ([]byte, error) {
	var reader io.Reader = http.NoBody
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build backend request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "backend request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read backend response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ParseResponseError(resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) logFailure(ctx context.Context, method, path string, err error) {
	if c.logg == nil {
		return
	}
	fields := pkgerrors.Dump(err).Fields()
	fields["method"] = method
	fields["path"] = path
	ctx = c.logg.WithFields(ctx, fields)
	if pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		c.logg.Error(ctx, "facade.request.failed", err)
		return
	}
	c.logg.Warn(ctx, "facade.request.rejected")
}
