// Package auth resolves the GitHub credential used to read the roadmap board.
// It keeps a simple interface with multiple providers following the
// "deep modules" principle - simple interface, source selection hidden.
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/h0rv/roadmap/internal/domain"
)

// ErrNoToken indicates a provider had no token to offer.
var ErrNoToken = errors.New("no token available")

// TokenProvider defines the interface for obtaining a GitHub authentication token.
// Implementations may use different sources (config values, CLI tools, environment variables).
type TokenProvider interface {
	GetToken() (string, error)
}

// StaticProvider returns a token supplied through configuration.
type StaticProvider struct {
	Token string
}

// GetToken returns the configured token, or ErrNoToken if it is empty.
func (s StaticProvider) GetToken() (string, error) {
	token := strings.TrimSpace(s.Token)
	if token == "" {
		return "", fmt.Errorf("%w: github.token not set", ErrNoToken)
	}
	return token, nil
}

// EnvProvider obtains tokens from environment variables, checked in order.
// The zero value reads ROADMAP_GITHUB_TOKEN then GITHUB_TOKEN.
type EnvProvider struct {
	Vars []string
}

// GetToken reads the first non-empty variable.
func (e EnvProvider) GetToken() (string, error) {
	vars := e.Vars
	if len(vars) == 0 {
		vars = []string{"ROADMAP_GITHUB_TOKEN", "GITHUB_TOKEN"}
	}
	for _, name := range vars {
		if token := strings.TrimSpace(os.Getenv(name)); token != "" {
			return token, nil
		}
	}
	return "", fmt.Errorf("%w: %s not set or empty", ErrNoToken, strings.Join(vars, "/"))
}

// GhCliProvider obtains tokens by shelling out to the GitHub CLI (`gh auth token`).
type GhCliProvider struct{}

// GetToken shells out to `gh auth token` to retrieve the current token.
// Returns an error if gh CLI is not installed, not authenticated, or the command fails.
func (g GhCliProvider) GetToken() (string, error) {
	cmd := exec.Command("gh", "auth", "token", "--hostname", "github.com")
	output, err := cmd.Output()
	if err != nil {
		// Check if it's an exec error (gh not found)
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: gh CLI not found in PATH", ErrNoToken)
		}
		return "", fmt.Errorf("%w: gh auth token failed: %v", ErrNoToken, err)
	}

	token := strings.TrimSpace(string(output))
	if token == "" {
		return "", fmt.Errorf("%w: gh auth token returned empty token", ErrNoToken)
	}

	return token, nil
}

// Chain tries each provider in order and returns the first token found.
type Chain []TokenProvider

// GetToken returns the first token any provider yields. When all providers
// fail it returns a *domain.ConfigurationError listing every attempt.
func (c Chain) GetToken() (string, error) {
	reasons := make([]string, 0, len(c))
	for _, p := range c {
		token, err := p.GetToken()
		if err == nil {
			return token, nil
		}
		reasons = append(reasons, err.Error())
	}

	reason := "no GitHub token configured"
	if len(reasons) > 0 {
		reason = fmt.Sprintf("no GitHub token configured (%s)", strings.Join(reasons, "; "))
	}
	return "", &domain.ConfigurationError{Reason: reason, Hint: domain.TokenHint}
}

// NewChain builds the provider chain used by the service:
// 1. the configured token value
// 2. ROADMAP_GITHUB_TOKEN / GITHUB_TOKEN
// 3. the gh CLI, when useGhCli is set
func NewChain(configured string, useGhCli bool) Chain {
	chain := Chain{StaticProvider{Token: configured}, EnvProvider{}}
	if useGhCli {
		chain = append(chain, GhCliProvider{})
	}
	return chain
}
