// Package places is the HTTP client for the remote places/autocomplete API.
//
// The endpoint is treated as opaque: the request URL is the configured base
// URL with the query appended, followed by the API key parameter, and the
// response body is JSON of the form
//
//	{"results": [...], "error_message": "...", "status": "..."}
//
// Result records are passed through as intent.Place without interpretation.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"github.com/roach88/placefinder/internal/intent"
)

// DefaultTimeout bounds a single request when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of a non-2xx body is kept in RequestError.
const maxErrorBody = 512

// Config locates the endpoint.
type Config struct {
	// BaseURL ends where the query text starts, e.g.
	// "https://maps.googleapis.com/maps/api/place/textsearch/json?query=".
	BaseURL string
	// KeyParam is the query parameter name carrying the key ("key").
	KeyParam string
	APIKey   string
	Timeout  time.Duration
}

// Response is the decoded body of a places call.
type Response struct {
	Results      []intent.Place `json:"results"`
	ErrorMessage string         `json:"error_message"`
	Status       string         `json:"status,omitempty"`
}

// Payload converts the response into the store's success payload.
func (r Response) Payload() intent.SearchPayload {
	return intent.SearchPayload{Results: r.Results, ErrorMessage: r.ErrorMessage}
}

// Client performs place searches. Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit caps outbound requests per second. A limit <= 0 disables
// limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// New creates a client.
func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL builds the request URL for query.
//
// The query is NFC-normalized and query-escaped so that composed and
// decomposed input produce the same request and reserved characters cannot
// inject parameters.
func (c *Client) URL(query string) string {
	q := url.QueryEscape(norm.NFC.String(query))
	return c.cfg.BaseURL + q + "&" + c.cfg.KeyParam + "=" + url.QueryEscape(c.cfg.APIKey)
}

// Search issues one GET for query and decodes the response.
//
// A 2xx response whose body carries an error_message is not an error; the
// message is returned in Response.ErrorMessage. Transport failures, non-2xx
// statuses and undecodable bodies are errors.
func (c *Client) Search(ctx context.Context, query string) (Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(query), nil)
	if err != nil {
		return Response{}, fmt.Errorf("build places request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	slog.Debug("places request", "query", query)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("places request: %w", redactURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Response{}, &RequestError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decode places response: %w", err)
	}
	if out.Results == nil {
		out.Results = []intent.Place{}
	}

	slog.Debug("places response",
		"query", query,
		"results", len(out.Results),
		"status", out.Status,
	)

	return out, nil
}

// redactURLError strips the request URL, which carries the API key, from
// transport errors that end up in user-visible messages.
func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
