package domain

import (
	"encoding/json"
	"fmt"
)

// ContentType identifies what a project item points at.
type ContentType string

// ContentType constants for card types.
const (
	ContentTypeIssue       ContentType = "Issue"
	ContentTypePullRequest ContentType = "PullRequest"
	ContentTypeDraftIssue  ContentType = "DraftIssue"
	ContentTypeRedacted    ContentType = "Redacted" // content not visible to the credential
)

// Content is the linked content of an issue or pull request item.
// Only IssueContent and PullRequestContent implement it; drafts have none.
type Content interface {
	Kind() ContentType
	Details() LinkedContent
}

// LinkedContent holds the attributes shared by issues and pull requests.
type LinkedContent struct {
	Number     int     `json:"number"`
	URL        string  `json:"url"`
	Repository string  `json:"repository"` // nameWithOwner, e.g. "owner/repo"
	Author     *Author `json:"author,omitempty"`
	Labels     []Label `json:"labels"`
	State      string  `json:"state"` // OPEN, CLOSED, MERGED
}

// IssueContent is the content of an Issue item.
type IssueContent struct {
	LinkedContent
}

// Kind implements Content.
func (*IssueContent) Kind() ContentType { return ContentTypeIssue }

// Details implements Content.
func (c *IssueContent) Details() LinkedContent { return c.LinkedContent }

// PullRequestContent is the content of a PullRequest item.
type PullRequestContent struct {
	LinkedContent
}

// Kind implements Content.
func (*PullRequestContent) Kind() ContentType { return ContentTypePullRequest }

// Details implements Content.
func (c *PullRequestContent) Details() LinkedContent { return c.LinkedContent }

// UnmarshalJSON decodes the content union using contentType as the tag.
func (i *ProjectItem) UnmarshalJSON(data []byte) error {
	type plain ProjectItem
	var aux struct {
		plain
		Content json.RawMessage `json:"content,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*i = ProjectItem(aux.plain)
	i.Content = nil

	if len(aux.Content) == 0 || string(aux.Content) == "null" {
		return nil
	}

	var linked LinkedContent
	if err := json.Unmarshal(aux.Content, &linked); err != nil {
		return fmt.Errorf("failed to decode content of item %s: %w", i.ID, err)
	}
	switch i.ContentType {
	case ContentTypeIssue:
		i.Content = &IssueContent{LinkedContent: linked}
	case ContentTypePullRequest:
		i.Content = &PullRequestContent{LinkedContent: linked}
	}
	return nil
}
