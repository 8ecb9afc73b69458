// Package gh provides a GraphQL client for the GitHub Projects v2 API.
// It implements a deep module interface - Query and FetchAll hide the
// transport, status mapping and cursor handling behind two calls.
package gh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/h0rv/roadmap/internal/auth"
	"github.com/h0rv/roadmap/internal/domain"
	"github.com/machinebox/graphql"
	"go.uber.org/zap"
)

// DefaultEndpoint is the public GitHub GraphQL endpoint.
const DefaultEndpoint = "https://api.github.com/graphql"

// maxMessageLen bounds the upstream body excerpt kept in error messages.
const maxMessageLen = 512

// RateLimit is the rate-limit state GitHub reported with a response.
type RateLimit struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Used      int       `json:"used"`
	ResetAt   time.Time `json:"resetAt"`
}

// Response is the result of one GraphQL query.
type Response struct {
	Data      json.RawMessage
	RateLimit RateLimit
}

// Querier issues a single GraphQL query. Client implements it; tests mock it.
type Querier interface {
	Query(ctx context.Context, document string, variables map[string]any) (*Response, error)
}

// Client is a GitHub GraphQL API client. It is stateless apart from its
// configuration and safe for concurrent use.
type Client struct {
	gql    *graphql.Client
	tokens auth.TokenProvider
	logger *zap.Logger
}

type clientOptions struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option customizes client construction.
type Option func(*clientOptions)

// WithEndpoint overrides the GraphQL endpoint (GitHub Enterprise, tests).
func WithEndpoint(endpoint string) Option {
	return func(o *clientOptions) {
		if endpoint != "" {
			o.endpoint = endpoint
		}
	}
}

// WithHTTPClient overrides the base HTTP client. Its transport is wrapped to
// record response status and rate-limit headers.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(o *clientOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates a new GitHub GraphQL client. The token is resolved on every
// query, so a missing credential surfaces as a ConfigurationError at call
// time rather than preventing construction.
func New(tokens auth.TokenProvider, opts ...Option) *Client {
	o := clientOptions{
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	base := o.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	httpClient := *o.httpClient
	httpClient.Transport = recordingTransport{base: base}

	gql := graphql.NewClient(o.endpoint, graphql.WithHTTPClient(&httpClient))
	logger := o.logger.Named("graphql")
	gql.Log = func(s string) {
		logger.Debug(s)
	}

	return &Client{
		gql:    gql,
		tokens: tokens,
		logger: logger,
	}
}

// Query executes a GraphQL document with the given variables and returns the
// raw `data` object plus rate-limit metadata.
//
// Errors:
//   - *domain.ConfigurationError when no token is available or GitHub rejects it (401)
//   - *domain.UpstreamError for other non-2xx responses, GraphQL errors and transport failures
//
// When every GraphQL error is of type NOT_FOUND the partial data is returned
// without error so the caller can report the missing board precisely.
func (c *Client) Query(ctx context.Context, document string, variables map[string]any) (*Response, error) {
	token, err := c.tokens.GetToken()
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, cfgErr
		}
		return nil, &domain.ConfigurationError{Reason: err.Error(), Hint: domain.TokenHint}
	}

	req := graphql.NewRequest(document)
	for k, v := range variables {
		req.Var(k, v)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	meta := &responseMeta{}
	var data json.RawMessage
	runErr := c.gql.Run(context.WithValue(ctx, metaKey{}, meta), req, &data)

	resp := &Response{Data: data, RateLimit: meta.rateLimit()}

	switch {
	case meta.status == http.StatusUnauthorized:
		return nil, &domain.ConfigurationError{
			Reason: "GitHub rejected the token: " + upstreamMessage(meta),
			Hint:   domain.TokenHint,
		}
	case meta.status != 0 && (meta.status < 200 || meta.status > 299):
		return nil, &domain.UpstreamError{StatusCode: meta.status, Message: upstreamMessage(meta), Err: runErr}
	case runErr != nil && meta.status == 0:
		// No response at all: dial failure, timeout or cancellation
		return nil, &domain.UpstreamError{Message: runErr.Error(), Err: runErr}
	case runErr != nil:
		if onlyNotFound(meta.body) {
			return resp, nil
		}
		return nil, &domain.UpstreamError{
			StatusCode: meta.status,
			Message:    strings.TrimPrefix(runErr.Error(), "graphql: "),
			Err:        runErr,
		}
	}

	return resp, nil
}

// responseMeta captures what machinebox/graphql does not expose.
type responseMeta struct {
	status int
	header http.Header
	body   []byte
}

type metaKey struct{}

func (m *responseMeta) rateLimit() RateLimit {
	if m.header == nil {
		return RateLimit{}
	}
	rl := RateLimit{
		Limit:     headerInt(m.header, "X-RateLimit-Limit"),
		Remaining: headerInt(m.header, "X-RateLimit-Remaining"),
		Used:      headerInt(m.header, "X-RateLimit-Used"),
	}
	if reset := headerInt(m.header, "X-RateLimit-Reset"); reset > 0 {
		rl.ResetAt = time.Unix(int64(reset), 0).UTC()
	}
	return rl
}

func headerInt(h http.Header, key string) int {
	n, err := strconv.Atoi(h.Get(key))
	if err != nil {
		return 0
	}
	return n
}

// recordingTransport copies status, headers and body of each response into
// the responseMeta carried by the request context.
type recordingTransport struct {
	base http.RoundTripper
}

func (t recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	meta, ok := req.Context().Value(metaKey{}).(*responseMeta)
	if !ok {
		return res, nil
	}

	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	res.Body = io.NopCloser(bytes.NewReader(body))

	meta.status = res.StatusCode
	meta.header = res.Header.Clone()
	meta.body = body
	return res, nil
}

// upstreamMessage extracts GitHub's error message from a non-2xx body.
func upstreamMessage(meta *responseMeta) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(meta.body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	text := strings.TrimSpace(string(meta.body))
	if text == "" {
		return http.StatusText(meta.status)
	}
	if len(text) > maxMessageLen {
		text = text[:maxMessageLen] + "…"
	}
	return text
}

// onlyNotFound reports whether the body's GraphQL errors are all NOT_FOUND.
func onlyNotFound(body []byte) bool {
	var payload struct {
		Errors []struct {
			Type string `json:"type"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Errors) == 0 {
		return false
	}
	for _, e := range payload.Errors {
		if e.Type != "NOT_FOUND" {
			return false
		}
	}
	return true
}
