package view

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/h0rv/roadmap/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleData() *domain.NormalizedProjectData {
	issue := domain.ProjectItem{
		ID:          "I_1",
		Title:       "Dark mode",
		ContentType: domain.ContentTypeIssue,
		Content: &domain.IssueContent{LinkedContent: domain.LinkedContent{
			Number:     12,
			URL:        "https://github.com/acme/app/issues/12",
			Repository: "acme/app",
			Author:     &domain.Author{Login: "octocat"},
			Labels:     []domain.Label{{Name: "ui"}},
			State:      "OPEN",
		}},
		Fields: map[string]any{"Status": "Todo"},
	}
	draft := domain.ProjectItem{ID: "D_1", Title: "Offline mode", ContentType: domain.ContentTypeDraftIssue, Fields: map[string]any{}}

	return &domain.NormalizedProjectData{
		Project: domain.Project{Title: "Roadmap", URL: "https://github.com/orgs/acme/projects/1", GroupByField: "Status"},
		Items:   []domain.ProjectItem{issue, draft},
		Columns: domain.Columns{
			{Name: "Todo", Items: []domain.ProjectItem{issue}},
			{Name: "Done", Items: []domain.ProjectItem{}},
			{Name: domain.NoStatusColumn, Items: []domain.ProjectItem{draft}},
		},
		LastUpdated: now.Add(-3 * time.Hour),
	}
}

func TestFromData_Populated(t *testing.T) {
	b := FromData(sampleData())

	assert.Equal(t, StatePopulated, b.State)
	assert.Equal(t, "Roadmap", b.Title)
	assert.Equal(t, 2, b.TotalItems)
	require.Len(t, b.Columns, 3)

	names := []string{b.Columns[0].Name, b.Columns[1].Name, b.Columns[2].Name}
	assert.Equal(t, []string{"Todo", "Done", "No Status"}, names, "column order is board order")

	assert.Equal(t, "Todo (1)", b.Columns[0].Badge())
	assert.Equal(t, "", b.Columns[0].Placeholder())
	assert.Equal(t, "Done (0)", b.Columns[1].Badge())
	assert.Equal(t, EmptyPlaceholder, b.Columns[1].Placeholder())

	card := b.Columns[0].Cards[0]
	assert.Equal(t, "acme/app#12", card.Reference)
	assert.Equal(t, "octocat", card.Author)
	assert.Equal(t, []string{"ui"}, card.Labels)
	assert.Equal(t, "https://github.com/acme/app/issues/12", card.URL)

	draft := b.Columns[2].Cards[0]
	assert.Empty(t, draft.Reference)
	assert.Empty(t, draft.URL)
}

func TestFromData_EmptyAndLoading(t *testing.T) {
	data := sampleData()
	data.Items = nil
	data.Columns = domain.Columns{{Name: domain.AllItemsColumn}}

	assert.Equal(t, StateEmpty, FromData(data).State)
	assert.Equal(t, StateLoading, FromData(nil).State)
	assert.Equal(t, StateLoading, Loading().State)
}

func TestFromError_ConfigurationGuidance(t *testing.T) {
	err := fmt.Errorf("failed to load: %w", &domain.ConfigurationError{Reason: "no GitHub token found", Hint: domain.TokenHint})

	b := FromError(err)

	assert.Equal(t, StateError, b.State)
	assert.Equal(t, err.Error(), b.Error, "error text is shown verbatim")
	assert.Contains(t, b.Guidance, "GITHUB_TOKEN")
	assert.Contains(t, b.Guidance, "read:project")
}

func TestGuidance(t *testing.T) {
	assert.Contains(t, Guidance(&domain.NotFoundError{Owner: "acme", Number: 2}), "github.project_number")
	assert.Equal(t, domain.TokenHint, Guidance(&domain.ConfigurationError{Reason: "x"}))
	assert.Empty(t, Guidance(errors.New("boom")))
	assert.Empty(t, Guidance(&domain.UpstreamError{Message: "bad gateway"}))
}

func TestBoard_Filter(t *testing.T) {
	b := FromData(sampleData())

	filtered := b.Filter("UI")

	assert.Equal(t, 1, filtered.Columns[0].Count)
	assert.Equal(t, 0, filtered.Columns[2].Count)
	assert.Len(t, filtered.Columns, 3, "columns survive filtering")
	assert.Equal(t, 1, b.Columns[2].Count, "original board is untouched")

	assert.Equal(t, b, b.Filter("  "))
	assert.Equal(t, 1, b.Filter("offline").Columns[2].Count)
	assert.Equal(t, 1, b.Filter("acme/app#12").Columns[0].Count)
}

func TestBoard_Freshness(t *testing.T) {
	b := FromData(sampleData())
	assert.Equal(t, "Updated 3h ago", b.Freshness(now))

	b.Stale = true
	assert.Contains(t, b.Freshness(now), "showing cached board")

	assert.Empty(t, Loading().Freshness(now))
}

func TestHumanizeSince(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{2 * time.Hour, "2h ago"},
		{49 * time.Hour, "2d ago"},
		{15 * 24 * time.Hour, "2w ago"},
		{65 * 24 * time.Hour, "2mo ago"},
		{400 * 24 * time.Hour, now.Add(-400 * 24 * time.Hour).Format("2006-01-02")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HumanizeSince(now.Add(-tt.ago), now), tt.ago.String())
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "populated", StatePopulated.String())
}
