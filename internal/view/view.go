// Package view defines how a board is presented to readers: one column per
// grouping value in board order, a count badge per column, an "(empty)"
// placeholder, a human-readable freshness line and, for failures, the error
// text with setup guidance. The HTTP endpoint and the terminal board both
// render from these types.
package view

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/h0rv/roadmap/internal/domain"
)

// State is what a consumer should show.
type State int

const (
	StateLoading State = iota
	StateEmpty
	StateError
	StatePopulated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateEmpty:
		return "empty"
	case StateError:
		return "error"
	case StatePopulated:
		return "populated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// EmptyPlaceholder is shown in place of cards for an empty column.
const EmptyPlaceholder = "(empty)"

// Card is the display form of one item.
type Card struct {
	ID          string
	Title       string
	ContentType domain.ContentType
	Reference   string // "owner/repo#12" for issues and pull requests
	URL         string
	State       string
	Author      string
	Labels      []string
	UpdatedAt   time.Time
	Fields      map[string]any
}

// Column is one rendered column.
type Column struct {
	Name  string
	Count int
	Cards []Card
}

// Badge is the column header count, e.g. "Done (3)".
func (c Column) Badge() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.Count)
}

// Placeholder returns EmptyPlaceholder for a column without cards.
func (c Column) Placeholder() string {
	if c.Count == 0 {
		return EmptyPlaceholder
	}
	return ""
}

// Board is a presentation-ready board.
type Board struct {
	State       State
	Title       string
	Description string
	URL         string
	GroupBy     string
	Columns     []Column
	TotalItems  int
	LastUpdated time.Time
	Truncated   bool
	Stale       bool

	Error    string // verbatim error text
	Guidance string // how to fix the setup, when the error is user-fixable
}

// Loading is the board shown before the first response.
func Loading() Board {
	return Board{State: StateLoading}
}

// FromData converts normalized data into a Board.
func FromData(data *domain.NormalizedProjectData) Board {
	if data == nil {
		return Loading()
	}

	b := Board{
		State:       StatePopulated,
		Title:       data.Project.Title,
		Description: data.Project.Description,
		URL:         data.Project.URL,
		GroupBy:     data.Project.GroupByField,
		Columns:     make([]Column, 0, len(data.Columns)),
		TotalItems:  len(data.Items),
		LastUpdated: data.LastUpdated,
		Truncated:   data.Truncated,
	}
	for _, col := range data.Columns {
		cards := make([]Card, 0, len(col.Items))
		for _, item := range col.Items {
			cards = append(cards, CardFromItem(item))
		}
		b.Columns = append(b.Columns, Column{Name: col.Name, Count: len(cards), Cards: cards})
	}
	if b.TotalItems == 0 {
		b.State = StateEmpty
	}
	return b
}

// FromError converts a failed board load into a Board.
func FromError(err error) Board {
	return Board{
		State:    StateError,
		Error:    err.Error(),
		Guidance: Guidance(err),
	}
}

// Guidance returns setup instructions for user-fixable errors, or "".
func Guidance(err error) string {
	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		if cfgErr.Hint != "" {
			return cfgErr.Hint
		}
		return domain.TokenHint
	}
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return "Check github.owner, github.owner_type and github.project_number, and that the token can see the project."
	}
	return ""
}

// CardFromItem converts one item into its display form.
func CardFromItem(item domain.ProjectItem) Card {
	c := Card{
		ID:          item.ID,
		Title:       item.Title,
		ContentType: item.ContentType,
		UpdatedAt:   item.UpdatedAt,
		Fields:      item.Fields,
	}
	if item.Content == nil {
		return c
	}

	d := item.Content.Details()
	c.URL = d.URL
	c.State = d.State
	if d.Repository != "" {
		c.Reference = fmt.Sprintf("%s#%d", d.Repository, d.Number)
	}
	if d.Author != nil {
		c.Author = d.Author.Login
	}
	for _, l := range d.Labels {
		c.Labels = append(c.Labels, l.Name)
	}
	return c
}

// Matches reports whether the card matches a case-insensitive filter query
// against its title, reference, author and labels.
func (c Card) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(c.Title), q) ||
		strings.Contains(strings.ToLower(c.Reference), q) ||
		strings.Contains(strings.ToLower(c.Author), q) {
		return true
	}
	for _, l := range c.Labels {
		if strings.Contains(strings.ToLower(l), q) {
			return true
		}
	}
	return false
}

// Filter returns a copy of the board keeping only cards that match query.
// Columns are kept, with counts reflecting the filtered cards.
func (b Board) Filter(query string) Board {
	if strings.TrimSpace(query) == "" {
		return b
	}
	out := b
	out.Columns = make([]Column, len(b.Columns))
	for i, col := range b.Columns {
		var cards []Card
		for _, c := range col.Cards {
			if c.Matches(query) {
				cards = append(cards, c)
			}
		}
		out.Columns[i] = Column{Name: col.Name, Count: len(cards), Cards: cards}
	}
	return out
}

// Freshness renders the "Updated ..." line shown under the board title.
func (b Board) Freshness(now time.Time) string {
	if b.LastUpdated.IsZero() {
		return ""
	}
	s := "Updated " + HumanizeSince(b.LastUpdated, now)
	if b.Stale {
		s += " (refresh failed, showing cached board)"
	}
	return s
}

// HumanizeSince formats t relative to now, e.g. "5m ago" or "3d ago".
func HumanizeSince(t, now time.Time) string {
	duration := now.Sub(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return ago(int(duration.Minutes()), "m")
	case duration < 24*time.Hour:
		return ago(int(duration.Hours()), "h")
	case duration < 7*24*time.Hour:
		return ago(int(duration.Hours()/24), "d")
	case duration < 30*24*time.Hour:
		return ago(int(duration.Hours()/24/7), "w")
	case duration < 365*24*time.Hour:
		return ago(int(duration.Hours()/24/30), "mo")
	default:
		return t.Format("2006-01-02")
	}
}

func ago(n int, unit string) string {
	return fmt.Sprintf("%d%s ago", n, unit)
}
