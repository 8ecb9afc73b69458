// Package server exposes the cached board over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/h0rv/roadmap/internal/domain"
	"github.com/h0rv/roadmap/internal/store"
	"github.com/h0rv/roadmap/internal/view"
	"go.uber.org/zap"
)

// BoardCache is the read side of store.Cache.
type BoardCache interface {
	GetBoard(ctx context.Context, forceRefresh bool) (*domain.NormalizedProjectData, error)
	Status() store.Status
}

// Envelope is the body of every /roadmap response.
type Envelope struct {
	Success bool                          `json:"success"`
	Data    *domain.NormalizedProjectData `json:"data,omitempty"`
	Error   string                        `json:"error,omitempty"`
	Hint    string                        `json:"hint,omitempty"`    // setup guidance for configuration errors
	Detail  *ErrorDetail                  `json:"detail,omitempty"`  // typed form of Error
	Stale   bool                          `json:"stale,omitempty"`   // data is from before a failed refresh
	Warning string                        `json:"warning,omitempty"` // why data is stale
}

// Error kinds carried in ErrorDetail.
const (
	ErrorKindConfiguration = "configuration"
	ErrorKindNotFound      = "not_found"
	ErrorKindUpstream      = "upstream"
)

// ErrorDetail lets clients rebuild the typed board error from an envelope.
type ErrorDetail struct {
	Kind       string `json:"kind"`
	Reason     string `json:"reason,omitempty"`
	Owner      string `json:"owner,omitempty"`
	Number     int    `json:"number,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
}

func errorDetail(err error) *ErrorDetail {
	var cfgErr *domain.ConfigurationError
	var notFound *domain.NotFoundError
	var upErr *domain.UpstreamError
	switch {
	case errors.As(err, &cfgErr):
		return &ErrorDetail{Kind: ErrorKindConfiguration, Reason: cfgErr.Reason}
	case errors.As(err, &notFound):
		return &ErrorDetail{Kind: ErrorKindNotFound, Owner: notFound.Owner, Number: notFound.Number}
	case errors.As(err, &upErr):
		return &ErrorDetail{Kind: ErrorKindUpstream, Reason: upErr.Message, StatusCode: upErr.StatusCode}
	}
	return nil
}

// Handler serves the board endpoints.
type Handler struct {
	Cache BoardCache
	// RefreshToken, when set, must be presented as a bearer token to force a refresh.
	RefreshToken string
	Logger       *zap.Logger
	Now          func() time.Time
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *Handler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// GetRoadmap handles GET /roadmap?refresh={true|false}.
func (h *Handler) GetRoadmap(c *gin.Context) {
	refresh := false
	if raw := c.Query("refresh"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, Envelope{Error: fmt.Sprintf("invalid refresh value '%s' (expected true or false)", raw)})
			return
		}
		refresh = v
	}

	if refresh && !h.refreshAllowed(c) {
		h.logger().Warn("rejected forced refresh", zap.String("clientIP", c.ClientIP()))
		c.JSON(http.StatusForbidden, Envelope{Error: "forced refresh requires a valid bearer token"})
		return
	}

	data, err := h.Cache.GetBoard(c.Request.Context(), refresh)
	if err != nil {
		status := StatusFor(err)
		h.logger().Error("failed to serve roadmap", zap.Error(err), zap.Int("status", status))
		c.JSON(status, Envelope{Error: err.Error(), Hint: view.Guidance(err), Detail: errorDetail(err)})
		return
	}

	env := Envelope{Success: true, Data: data}
	if st := h.Cache.Status(); st.LastError != "" {
		env.Stale = true
		env.Warning = fmt.Sprintf("refresh failed, serving board from %s: %s",
			data.LastUpdated.Format(time.RFC3339), st.LastError)
	}
	c.JSON(http.StatusOK, env)
}

// GetStatus handles GET /roadmap/status.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Cache.Status())
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "ts": h.now().UTC().Format(time.RFC3339)})
}

func (h *Handler) refreshAllowed(c *gin.Context) bool {
	if h.RefreshToken == "" {
		return true
	}
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.RefreshToken)) == 1
}

// StatusFor maps a board error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case domain.IsConfigurationError(err):
		return http.StatusInternalServerError
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case domain.IsUpstream(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
