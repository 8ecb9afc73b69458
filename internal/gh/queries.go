package gh

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OwnerType represents whether an owner is an organization or user.
type OwnerType string

const (
	OwnerTypeOrganization OwnerType = "Organization"
	OwnerTypeUser         OwnerType = "User"
)

// ParseOwnerType maps a config value ("organization", "org", "user") to an OwnerType.
func ParseOwnerType(s string) (OwnerType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "organization", "org":
		return OwnerTypeOrganization, nil
	case "user":
		return OwnerTypeUser, nil
	}
	return "", fmt.Errorf("unknown owner type '%s' (expected organization or user)", s)
}

// rootField is the GraphQL field that resolves the owner.
func (t OwnerType) rootField() string {
	if t == OwnerTypeUser {
		return "user"
	}
	return "organization"
}

// projectFieldsFragment selects field definitions, including options for
// SINGLE_SELECT fields and iterations for ITERATION fields.
// Options are returned in their configured order (the order shown in the project UI).
const projectFieldsFragment = `
				fields(first: 50) {
					nodes {
						... on ProjectV2Field {
							id
							name
							dataType
						}
						... on ProjectV2SingleSelectField {
							id
							name
							dataType
							options {
								name
								color
							}
						}
						... on ProjectV2IterationField {
							id
							name
							dataType
							configuration {
								iterations {
									title
									startDate
								}
								completedIterations {
									title
									startDate
								}
							}
						}
					}
				}`

const fieldNameFragment = `field { ... on ProjectV2FieldCommon { name } }`

// projectItemsFragment selects one page of items with their field values and
// polymorphic content.
const projectItemsFragment = `
				items(first: $first, after: $after) {
					pageInfo {
						hasNextPage
						endCursor
					}
					nodes {
						id
						type
						createdAt
						updatedAt
						fieldValues(first: 30) {
							nodes {
								... on ProjectV2ItemFieldTextValue {
									text
									` + fieldNameFragment + `
								}
								... on ProjectV2ItemFieldNumberValue {
									number
									` + fieldNameFragment + `
								}
								... on ProjectV2ItemFieldDateValue {
									date
									` + fieldNameFragment + `
								}
								... on ProjectV2ItemFieldSingleSelectValue {
									name
									` + fieldNameFragment + `
								}
								... on ProjectV2ItemFieldIterationValue {
									title
									` + fieldNameFragment + `
								}
							}
						}
						content {
							__typename
							... on Issue {
								title
								number
								url
								state
								repository {
									nameWithOwner
								}
								author {
									login
									avatarUrl
								}
								labels(first: 20) {
									nodes {
										name
										color
									}
								}
							}
							... on PullRequest {
								title
								number
								url
								state
								repository {
									nameWithOwner
								}
								author {
									login
									avatarUrl
								}
								labels(first: 20) {
									nodes {
										name
										color
									}
								}
							}
							... on DraftIssue {
								title
							}
						}
					}
				}`

// ProjectQuery returns the first-page document: project metadata, field
// definitions and the first page of items.
func ProjectQuery(ownerType OwnerType) string {
	return fmt.Sprintf(`
		query($owner: String!, $number: Int!, $first: Int!, $after: String) {
			%s(login: $owner) {
				projectV2(number: $number) {
					id
					title
					shortDescription
					url
					%s
					%s
				}
			}
		}
	`, ownerType.rootField(), projectFieldsFragment, projectItemsFragment)
}

// ItemsQuery returns the follow-up page document, which only selects items.
func ItemsQuery(ownerType OwnerType) string {
	return fmt.Sprintf(`
		query($owner: String!, $number: Int!, $first: Int!, $after: String) {
			%s(login: $owner) {
				projectV2(number: $number) {
					id
					%s
				}
			}
		}
	`, ownerType.rootField(), projectItemsFragment)
}

// RawPayload is the accumulated upstream response for one board: the
// first page's project envelope with every fetched item node appended.
type RawPayload struct {
	Owner     string
	Number    int
	Project   *RawProject // nil when the board was not found
	Truncated bool        // pagination stopped at the item cap
}

// RawProject mirrors the ProjectV2 object selected by ProjectQuery.
type RawProject struct {
	ID               string             `json:"id"`
	Title            string             `json:"title"`
	ShortDescription string             `json:"shortDescription"`
	URL              string             `json:"url"`
	Fields           RawFieldConnection `json:"fields"`
	Items            RawItemConnection  `json:"items"`
}

// RawFieldConnection is the fields connection of a project.
type RawFieldConnection struct {
	Nodes []RawField `json:"nodes"`
}

// RawField is one field definition node. Options is set for SINGLE_SELECT
// fields, Configuration for ITERATION fields.
type RawField struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	DataType      string              `json:"dataType"`
	Options       []RawOption         `json:"options"`
	Configuration *RawIterationConfig `json:"configuration"`
}

// RawOption is a single-select option.
type RawOption struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// RawIterationConfig lists the iterations of an ITERATION field.
type RawIterationConfig struct {
	Iterations          []RawIteration `json:"iterations"`
	CompletedIterations []RawIteration `json:"completedIterations"`
}

// RawIteration is one iteration of an ITERATION field.
type RawIteration struct {
	Title     string `json:"title"`
	StartDate string `json:"startDate"`
}

// RawItemConnection is one page of items.
type RawItemConnection struct {
	PageInfo PageInfo  `json:"pageInfo"`
	Nodes    []RawItem `json:"nodes"`
}

// PageInfo is the cursor state of a connection.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// RawItem is one ProjectV2Item node.
type RawItem struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"` // ISSUE, PULL_REQUEST, DRAFT_ISSUE, REDACTED
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	FieldValues RawValueNodes `json:"fieldValues"`
	Content     *RawContent   `json:"content"`
}

// RawValueNodes is the fieldValues connection of an item.
type RawValueNodes struct {
	Nodes []RawFieldValue `json:"nodes"`
}

// RawFieldValue is one field value of an item. At most one of the value
// pointers is set by GitHub; unsupported value types decode as an empty node.
type RawFieldValue struct {
	Text   *string  `json:"text"`
	Number *float64 `json:"number"`
	Date   *string  `json:"date"`
	Name   *string  `json:"name"`
	Title  *string  `json:"title"`
	Field  *struct {
		Name string `json:"name"`
	} `json:"field"`
}

// RawContent is the polymorphic content of an item (Issue, PullRequest, DraftIssue).
type RawContent struct {
	Typename   string `json:"__typename"`
	Title      string `json:"title"`
	Number     int    `json:"number"`
	URL        string `json:"url"`
	State      string `json:"state"`
	Repository *struct {
		NameWithOwner string `json:"nameWithOwner"`
	} `json:"repository"`
	Author *struct {
		Login     string `json:"login"`
		AvatarURL string `json:"avatarUrl"`
	} `json:"author"`
	Labels *struct {
		Nodes []RawLabel `json:"nodes"`
	} `json:"labels"`
}

// RawLabel is a label node.
type RawLabel struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// decodeProject extracts the projectV2 object from a query's data, or nil
// when the owner or project could not be resolved.
func decodeProject(data json.RawMessage, ownerType OwnerType) (*RawProject, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var resp map[string]*struct {
		ProjectV2 *RawProject `json:"projectV2"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode project response: %w", err)
	}

	owner := resp[ownerType.rootField()]
	if owner == nil {
		return nil, nil
	}
	return owner.ProjectV2, nil
}
