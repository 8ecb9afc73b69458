// Package normalize turns the raw Projects v2 graph into the typed board
// model and wires the fetch, normalize and group steps into one pipeline.
package normalize

import (
	"time"

	"github.com/h0rv/roadmap/internal/domain"
	"github.com/h0rv/roadmap/internal/gh"
	"github.com/h0rv/roadmap/internal/store"
)

const (
	privateItemTitle = "(private item)"
	unknownItemTitle = "(unknown item type)"
)

// Normalize converts an accumulated payload into NormalizedProjectData.
// It is pure: the same payload and now always produce the same board.
func Normalize(raw *gh.RawPayload, now time.Time) (*domain.NormalizedProjectData, error) {
	if raw == nil {
		return nil, &domain.NotFoundError{}
	}
	if raw.Project == nil {
		return nil, &domain.NotFoundError{Owner: raw.Owner, Number: raw.Number}
	}
	rp := raw.Project

	project := domain.Project{
		ID:          rp.ID,
		Title:       rp.Title,
		Description: rp.ShortDescription,
		URL:         rp.URL,
		Fields:      normalizeFields(rp.Fields.Nodes),
	}
	if f, ok := store.SelectGroupField(project.Fields); ok {
		project.GroupByField = f.Name
	}

	items := make([]domain.ProjectItem, 0, len(rp.Items.Nodes))
	for _, node := range rp.Items.Nodes {
		items = append(items, normalizeItem(node))
	}

	return &domain.NormalizedProjectData{
		Project:     project,
		Items:       items,
		Columns:     store.GroupAndSort(project.Fields, project.GroupByField, items),
		LastUpdated: now,
		Truncated:   raw.Truncated,
	}, nil
}

func normalizeFields(nodes []gh.RawField) []domain.Field {
	fields := make([]domain.Field, 0, len(nodes))
	for _, node := range nodes {
		// Field types outside the selected fragments decode as empty nodes
		if node.Name == "" {
			continue
		}
		field := domain.Field{
			ID:       node.ID,
			Name:     node.Name,
			DataType: node.DataType,
		}

		switch node.DataType {
		case domain.FieldTypeSingleSelect:
			for _, opt := range node.Options {
				field.Options = append(field.Options, domain.Option{Name: opt.Name, Color: opt.Color})
			}
		case domain.FieldTypeIteration:
			if node.Configuration != nil {
				for _, it := range node.Configuration.Iterations {
					field.Options = append(field.Options, domain.Option{Name: it.Title})
				}
				for _, it := range node.Configuration.CompletedIterations {
					field.Options = append(field.Options, domain.Option{Name: it.Title})
				}
			}
		}

		fields = append(fields, field)
	}
	return fields
}

func normalizeItem(node gh.RawItem) domain.ProjectItem {
	item := domain.ProjectItem{
		ID:        node.ID,
		Fields:    flattenFieldValues(node.FieldValues.Nodes),
		CreatedAt: node.CreatedAt,
		UpdatedAt: node.UpdatedAt,
	}

	// Handle content union (Issue/PR/Draft/null)
	c := node.Content
	if c == nil {
		item.ContentType = domain.ContentTypeRedacted
		item.Title = privateItemTitle
		return item
	}

	switch c.Typename {
	case "Issue":
		item.ContentType = domain.ContentTypeIssue
		item.Title = c.Title
		item.Content = &domain.IssueContent{LinkedContent: linkedContent(c)}
	case "PullRequest":
		item.ContentType = domain.ContentTypePullRequest
		item.Title = c.Title
		item.Content = &domain.PullRequestContent{LinkedContent: linkedContent(c)}
	case "DraftIssue":
		item.ContentType = domain.ContentTypeDraftIssue
		item.Title = c.Title
	default:
		item.ContentType = domain.ContentTypeRedacted
		item.Title = unknownItemTitle
	}
	return item
}

func linkedContent(c *gh.RawContent) domain.LinkedContent {
	linked := domain.LinkedContent{
		Number: c.Number,
		URL:    c.URL,
		State:  c.State,
		Labels: []domain.Label{},
	}
	if c.Repository != nil {
		linked.Repository = c.Repository.NameWithOwner
	}
	if c.Author != nil {
		linked.Author = &domain.Author{Login: c.Author.Login, AvatarURL: c.Author.AvatarURL}
	}
	if c.Labels != nil {
		for _, l := range c.Labels.Nodes {
			linked.Labels = append(linked.Labels, domain.Label{Name: l.Name, Color: l.Color})
		}
	}
	return linked
}

// flattenFieldValues keys each value node by its field name. A node yields
// the first set value of text, number, date, option name or iteration title;
// when a field name repeats, the first node wins.
func flattenFieldValues(nodes []gh.RawFieldValue) map[string]any {
	values := make(map[string]any, len(nodes))
	for _, node := range nodes {
		if node.Field == nil || node.Field.Name == "" {
			continue
		}
		if _, seen := values[node.Field.Name]; seen {
			continue
		}

		var v any
		switch {
		case node.Text != nil:
			v = *node.Text
		case node.Number != nil:
			v = *node.Number
		case node.Date != nil:
			v = *node.Date
		case node.Name != nil:
			v = *node.Name
		case node.Title != nil:
			v = *node.Title
		default:
			continue
		}
		values[node.Field.Name] = v
	}
	return values
}
