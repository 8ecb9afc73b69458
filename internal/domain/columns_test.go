package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumns_MarshalPreservesOrder(t *testing.T) {
	cols := Columns{
		{Name: "v10.0.0", Items: []ProjectItem{{ID: "a", Fields: map[string]any{}}}},
		{Name: "v2.1.0"},
		{Name: NoStatusColumn, Items: []ProjectItem{}},
	}

	b, err := json.Marshal(cols)
	require.NoError(t, err)

	s := string(b)
	assert.Less(t, strings.Index(s, `"v10.0.0"`), strings.Index(s, `"v2.1.0"`))
	assert.Less(t, strings.Index(s, `"v2.1.0"`), strings.Index(s, `"No Status"`))
	assert.Contains(t, s, `"v2.1.0":[]`, "nil items encode as an empty array")
}

func TestColumns_RoundTripKeepsOrder(t *testing.T) {
	in := `{"Zeta":[{"id":"z","title":"Z","contentType":"DraftIssue","fields":{},"createdAt":"0001-01-01T00:00:00Z","updatedAt":"0001-01-01T00:00:00Z"}],"Alpha":[],"No Status":[]}`

	var cols Columns
	require.NoError(t, json.Unmarshal([]byte(in), &cols))

	assert.Equal(t, []string{"Zeta", "Alpha", NoStatusColumn}, cols.Names())
	assert.Equal(t, 1, cols.Len())
	items, ok := cols.Get("Zeta")
	require.True(t, ok)
	assert.Equal(t, "z", items[0].ID)

	_, ok = cols.Get("Missing")
	assert.False(t, ok)
}

func TestColumns_UnmarshalRejectsArrays(t *testing.T) {
	var cols Columns
	assert.Error(t, json.Unmarshal([]byte(`[]`), &cols))
}

func TestProjectItem_ContentDecodesByType(t *testing.T) {
	item := ProjectItem{
		ID:          "I_1",
		Title:       "Fix login",
		ContentType: ContentTypePullRequest,
		Content: &PullRequestContent{LinkedContent: LinkedContent{
			Number:     7,
			URL:        "https://github.com/acme/app/pull/7",
			Repository: "acme/app",
			Author:     &Author{Login: "octocat"},
			Labels:     []Label{{Name: "auth"}},
			State:      "MERGED",
		}},
		Fields:    map[string]any{"Status": "Done", "Estimate": 2.0},
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	b, err := json.Marshal(item)
	require.NoError(t, err)

	var got ProjectItem
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, item, got)
}

func TestProjectItem_DraftHasNoContent(t *testing.T) {
	var got ProjectItem
	require.NoError(t, json.Unmarshal([]byte(`{"id":"D_1","title":"Idea","contentType":"DraftIssue","fields":{}}`), &got))

	assert.Nil(t, got.Content)
	assert.Equal(t, ContentTypeDraftIssue, got.ContentType)
}

func TestProjectItem_FieldString(t *testing.T) {
	item := ProjectItem{Fields: map[string]any{"Status": "Todo", "Estimate": 3.0, "Empty": ""}}

	v, ok := item.FieldString("Status")
	assert.True(t, ok)
	assert.Equal(t, "Todo", v)

	_, ok = item.FieldString("Estimate")
	assert.False(t, ok)
	_, ok = item.FieldString("Empty")
	assert.False(t, ok)
	_, ok = item.FieldString("Missing")
	assert.False(t, ok)
}

func TestErrors(t *testing.T) {
	cfg := &ConfigurationError{Reason: "no token", Hint: TokenHint}
	assert.True(t, IsConfigurationError(cfg))
	assert.Contains(t, cfg.Error(), "no token")

	nf := &NotFoundError{Owner: "acme", Number: 3}
	assert.True(t, IsNotFound(nf))
	assert.Contains(t, nf.Error(), "#3")

	up := &UpstreamError{StatusCode: 502, Message: "bad gateway"}
	assert.True(t, IsUpstream(up))
	assert.Equal(t, "upstream error (HTTP 502): bad gateway", up.Error())
	assert.False(t, IsUpstream(cfg))
}
