package domain

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a missing or rejected credential. It is
// user-fixable, so it always carries a remediation hint.
type ConfigurationError struct {
	Reason string
	Hint   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// NotFoundError reports that the board does not exist or the credential cannot see it.
type NotFoundError struct {
	Owner  string
	Number int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("project #%d not found for owner '%s' (missing, renamed, or not visible to the token)", e.Number, e.Owner)
}

// UpstreamError reports a transport or GraphQL-level failure from GitHub.
type UpstreamError struct {
	StatusCode int    // HTTP status, 0 when the failure was not an HTTP status
	Message    string // Raw upstream message
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream error: %s", e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// TokenHint is the remediation text attached to credential errors.
const TokenHint = "Set GITHUB_TOKEN (or github.token in the config file) to a token with the read:project scope " +
	"(add repo for boards that reference private repositories), or run 'gh auth login'."

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsUpstream reports whether err is or wraps an UpstreamError.
func IsUpstream(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}
