// Package domain defines the normalized board types for a GitHub Projects v2 roadmap.
// These types represent the core concepts independent of the GitHub GraphQL API structure.
package domain

import "time"

// Option represents a single option value for a SINGLE_SELECT or ITERATION field.
type Option struct {
	Name  string `json:"name"`            // Option name displayed to users (e.g., "In Progress", "v1.2.0")
	Color string `json:"color,omitempty"` // Option color (e.g., "GREEN"), empty for iterations
}

// Field represents a project field definition. Fields are snapshots taken on
// every normalization pass and are never mutated afterwards.
type Field struct {
	ID       string   `json:"id"`                // GitHub field node ID
	Name     string   `json:"name"`              // Field name (e.g., "Status")
	DataType string   `json:"dataType"`          // Field type (e.g., "SINGLE_SELECT", "TEXT", etc.)
	Options  []Option `json:"options,omitempty"` // Declared options in configured order
}

// Project represents the board-level metadata of a GitHub Project v2.
type Project struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	URL          string  `json:"url"`
	Fields       []Field `json:"fields"`
	GroupByField string  `json:"groupByField,omitempty"` // Name of the field items are bucketed by, empty if none
}

// Field returns the field with the given name.
func (p *Project) Field(name string) (Field, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Author is the creator of an issue or pull request.
type Author struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Label is a repository label attached to an issue or pull request.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// ProjectItem is one card on the board.
type ProjectItem struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	ContentType ContentType    `json:"contentType"`
	Content     Content        `json:"content,omitempty"` // nil for drafts and redacted items
	Fields      map[string]any `json:"fields"`            // Field name -> string or float64 value
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// FieldString returns the item's value for a field when it is a non-empty string.
func (i *ProjectItem) FieldString(name string) (string, bool) {
	v, ok := i.Fields[name].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// NormalizedProjectData is the unit of caching. It is built atomically by one
// normalization pass and replaced wholesale on refresh.
type NormalizedProjectData struct {
	Project     Project       `json:"project"`
	Items       []ProjectItem `json:"items"`
	Columns     Columns       `json:"columns"`
	LastUpdated time.Time     `json:"lastUpdated"`
	Truncated   bool          `json:"truncated,omitempty"` // Item list was cut at the pagination safety cap
}

// FieldType constants for the supported field types.
const (
	FieldTypeSingleSelect = "SINGLE_SELECT"
	FieldTypeText         = "TEXT"
	FieldTypeNumber       = "NUMBER"
	FieldTypeDate         = "DATE"
	FieldTypeIteration    = "ITERATION"
)

// Reserved column names.
const (
	NoStatusColumn = "No Status"
	AllItemsColumn = "All Items"
)
