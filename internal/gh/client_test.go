package gh

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/h0rv/roadmap/internal/auth"
	"github.com/h0rv/roadmap/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// graphqlRequest is the body machinebox/graphql posts.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(auth.StaticProvider{Token: "ghp_test"}, WithEndpoint(srv.URL)), srv
}

func TestQuery_Success(t *testing.T) {
	var got graphqlRequest
	var authHeader string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "4990")
		w.Header().Set("X-RateLimit-Used", "10")
		w.Header().Set("X-RateLimit-Reset", "1730000000")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"organization":{"projectV2":{"id":"PVT_1"}}}}`))
	})

	resp, err := client.Query(context.Background(), "query { x }", map[string]any{"owner": "acme", "after": nil})

	require.NoError(t, err)
	assert.Equal(t, "Bearer ghp_test", authHeader)
	assert.Equal(t, "query { x }", got.Query)
	assert.Equal(t, "acme", got.Variables["owner"])
	assert.Contains(t, got.Variables, "after")
	assert.Nil(t, got.Variables["after"])
	assert.JSONEq(t, `{"organization":{"projectV2":{"id":"PVT_1"}}}`, string(resp.Data))
	assert.Equal(t, RateLimit{
		Limit:     5000,
		Remaining: 4990,
		Used:      10,
		ResetAt:   time.Unix(1730000000, 0).UTC(),
	}, resp.RateLimit)
}

func TestQuery_MissingToken(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	client := New(auth.Chain{auth.StaticProvider{}}, WithEndpoint(srv.URL))
	resp, err := client.Query(context.Background(), "query { x }", nil)

	assert.Nil(t, resp)
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Hint, "read:project")
	assert.Zero(t, atomic.LoadInt32(&calls), "no request should be sent without a token")
}

func TestQuery_Unauthorized(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials","documentation_url":"https://docs.github.com/graphql"}`))
	})

	_, err := client.Query(context.Background(), "query { x }", nil)

	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "Bad credentials")
}

func TestQuery_Non2xx(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	})

	_, err := client.Query(context.Background(), "query { x }", nil)

	var upErr *domain.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusBadGateway, upErr.StatusCode)
	assert.Contains(t, upErr.Message, "bad gateway")
}

func TestQuery_GraphQLErrors(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"type":"FORBIDDEN","message":"Resource not accessible by integration"}]}`))
	})

	_, err := client.Query(context.Background(), "query { x }", nil)

	var upErr *domain.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "Resource not accessible by integration", upErr.Message)
}

func TestQuery_NotFoundErrorsReturnPartialData(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"organization":{"projectV2":null}},"errors":[{"type":"NOT_FOUND","message":"Could not resolve to a ProjectV2 with the number 9."}]}`))
	})

	resp, err := client.Query(context.Background(), "query { x }", nil)

	require.NoError(t, err)
	project, err := decodeProject(resp.Data, OwnerTypeOrganization)
	require.NoError(t, err)
	assert.Nil(t, project)
}

func TestQuery_ContextCanceled(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Query(ctx, "query { x }", nil)

	var upErr *domain.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseOwnerType(t *testing.T) {
	tests := []struct {
		in      string
		want    OwnerType
		wantErr bool
	}{
		{"", OwnerTypeOrganization, false},
		{"organization", OwnerTypeOrganization, false},
		{"Org", OwnerTypeOrganization, false},
		{"user", OwnerTypeUser, false},
		{"team", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOwnerType(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestQueryDocuments(t *testing.T) {
	assert.Contains(t, ProjectQuery(OwnerTypeOrganization), "organization(login: $owner)")
	assert.Contains(t, ProjectQuery(OwnerTypeUser), "user(login: $owner)")
	assert.Contains(t, ProjectQuery(OwnerTypeOrganization), "fields(first: 50)")
	assert.NotContains(t, ItemsQuery(OwnerTypeOrganization), "fields(first: 50)")
	assert.Contains(t, ItemsQuery(OwnerTypeOrganization), "items(first: $first, after: $after)")
}
