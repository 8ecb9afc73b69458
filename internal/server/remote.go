package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/h0rv/roadmap/internal/domain"
)

// RemoteSource reads the board from a running roadmap server, so the
// terminal board can share one server-side cache instead of calling GitHub.
type RemoteSource struct {
	endpoint     string
	refreshToken string
	client       *http.Client
}

// NewRemoteSource creates a source for the server at baseURL (e.g.
// "http://localhost:8080"). refreshToken is sent on forced refreshes.
func NewRemoteSource(baseURL, refreshToken string, client *http.Client) *RemoteSource {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &RemoteSource{
		endpoint:     strings.TrimRight(baseURL, "/") + "/roadmap",
		refreshToken: refreshToken,
		client:       client,
	}
}

// GetBoard fetches /roadmap and maps a failed envelope back to a typed error.
func (r *RemoteSource) GetBoard(ctx context.Context, forceRefresh bool) (*domain.NormalizedProjectData, error) {
	u := r.endpoint
	if forceRefresh {
		u += "?" + url.Values{"refresh": {"true"}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if forceRefresh && r.refreshToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.refreshToken)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &domain.UpstreamError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &domain.UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to decode roadmap response: %v", err),
			Err:        err,
		}
	}

	if !env.Success {
		return nil, remoteError(resp.StatusCode, env)
	}
	if env.Data == nil {
		return nil, &domain.UpstreamError{StatusCode: resp.StatusCode, Message: "roadmap response has no data"}
	}
	return env.Data, nil
}

// remoteError rebuilds the typed error behind a failed envelope. A 404
// without a detail is a wrong server URL, not a missing board.
func remoteError(status int, env Envelope) error {
	if d := env.Detail; d != nil {
		switch d.Kind {
		case ErrorKindConfiguration:
			hint := env.Hint
			if hint == "" {
				hint = domain.TokenHint
			}
			return &domain.ConfigurationError{Reason: d.Reason, Hint: hint}
		case ErrorKindNotFound:
			return &domain.NotFoundError{Owner: d.Owner, Number: d.Number}
		}
	}
	if status == http.StatusInternalServerError && env.Hint != "" {
		return &domain.ConfigurationError{Reason: env.Error, Hint: env.Hint}
	}
	return &domain.UpstreamError{StatusCode: status, Message: env.Error}
}
