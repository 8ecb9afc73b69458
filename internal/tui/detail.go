package tui

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/roadmap/internal/domain"
	"github.com/h0rv/roadmap/internal/view"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/pkg/browser"
)

// Layout constants
const (
	leftPanelRatio = 0.4
	minLeftWidth   = 30
	maxLeftWidth   = 60
	headerHeight   = 1
	footerHeight   = 1
	borderSize     = 2 // Top + bottom border
)

// Detail view styles
var (
	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	detailLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))

	detailValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	fieldNameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	panelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))

	focusedPanelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("205"))

	scrollIndicatorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205"))
)

// DetailModel shows one card: metadata on the left, field values on the right.
type DetailModel struct {
	card     view.Card
	groupBy  string
	viewport viewport.Model
	now      func() time.Time

	width  int
	height int
}

// NewDetailModel creates a detail view for card. groupBy is the board's
// grouping field, listed first among the field values.
func NewDetailModel(card view.Card, groupBy string) DetailModel {
	vp := viewport.New(40, 10) // resized on WindowSizeMsg
	vp.MouseWheelEnabled = true
	vp.MouseWheelDelta = 3

	m := DetailModel{
		card:     card,
		groupBy:  groupBy,
		viewport: vp,
		now:      time.Now,
	}
	m.updateViewportContent()
	return m
}

// Init initializes the detail model
func (m DetailModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update handles messages
func (m DetailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeComponents()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *DetailModel) panelWidths(width int) (int, int) {
	leftWidth := int(float64(width) * leftPanelRatio)
	leftWidth = max(leftWidth, minLeftWidth)
	leftWidth = min(leftWidth, maxLeftWidth)
	rightWidth := max(width-leftWidth-1, 30) // 1 char gap
	return leftWidth, rightWidth
}

// resizeComponents calculates and sets component dimensions
func (m *DetailModel) resizeComponents() {
	_, rightWidth := m.panelWidths(m.width)

	contentHeight := max(m.height-headerHeight-footerHeight, 10)

	m.viewport.Width = rightWidth - borderSize - 2
	m.viewport.Height = contentHeight - borderSize - 1 // panel title
	m.updateViewportContent()
}

// handleKeyPress processes keyboard input
func (m DetailModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q", "esc":
		return m, func() tea.Msg { return closeDetailMsg{} }
	case "o":
		if m.card.URL != "" {
			_ = browser.OpenURL(m.card.URL)
		}
	case "j", "down":
		m.viewport.LineDown(1)
	case "k", "up":
		m.viewport.LineUp(1)
	case "ctrl+d":
		m.viewport.HalfViewDown()
	case "ctrl+u":
		m.viewport.HalfViewUp()
	case "g":
		m.viewport.GotoTop()
	case "G":
		m.viewport.GotoBottom()
	}

	return m, nil
}

// View renders the split-screen detail view
func (m DetailModel) View() string {
	width := m.width
	height := m.height
	if width == 0 {
		width = 100
	}
	if height == 0 {
		height = 30
	}

	leftWidth, rightWidth := m.panelWidths(width)
	contentHeight := max(height-headerHeight-footerHeight, 10)

	header := m.renderHeader()

	leftPanel := panelBorderStyle.
		Width(leftWidth - borderSize).
		Height(contentHeight - borderSize).
		Render(m.renderLeftPanel(leftWidth - borderSize - 2))

	rightPanel := focusedPanelBorderStyle.
		Width(rightWidth - borderSize).
		Height(contentHeight - borderSize).
		Render(m.renderRightPanel())

	panels := lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, " ", rightPanel)

	return lipgloss.JoinVertical(lipgloss.Left, header, panels, m.renderFooter(width))
}

// renderHeader renders the top help bar
func (m DetailModel) renderHeader() string {
	parts := []string{"[q]back", "[j/k]scroll", "[g/G]top/bottom"}
	if m.card.URL != "" {
		parts = append(parts, "[o]open")
	}
	return dimStyle.Render(strings.Join(parts, " "))
}

// renderFooter renders the bottom status bar
func (m DetailModel) renderFooter(width int) string {
	left := ""
	if m.card.URL != "" {
		left = m.card.URL
	}

	right := ""
	if m.viewport.TotalLineCount() > m.viewport.Height {
		switch {
		case m.viewport.AtTop():
			right = "TOP"
		case m.viewport.AtBottom():
			right = "END"
		default:
			right = fmt.Sprintf("%d%%", int(m.viewport.ScrollPercent()*100))
		}
	}

	padding := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return dimStyle.Render(left) + strings.Repeat(" ", padding) + dimStyle.Render(right)
}

// renderLeftPanel renders the card metadata
func (m DetailModel) renderLeftPanel(width int) string {
	var b strings.Builder

	typeStr := contentTypeLabel(m.card.ContentType)
	if m.card.Reference != "" {
		typeStr += " " + m.card.Reference
	}
	b.WriteString(detailLabelStyle.Render(typeStr))
	b.WriteString("\n\n")

	b.WriteString(detailTitleStyle.Render(wordwrap.String(m.card.Title, width)))
	b.WriteString("\n\n")

	if m.card.State != "" {
		stateStyle := detailValueStyle
		switch m.card.State {
		case "OPEN":
			stateStyle = stateStyle.Foreground(lipgloss.Color("34"))
		case "CLOSED":
			stateStyle = stateStyle.Foreground(lipgloss.Color("196"))
		case "MERGED":
			stateStyle = stateStyle.Foreground(lipgloss.Color("141"))
		}
		writeDetail(&b, "State: ", stateStyle.Render(m.card.State))
	}

	if m.card.Author != "" {
		writeDetail(&b, "Author: ", detailValueStyle.Render(m.card.Author))
	}

	if len(m.card.Labels) > 0 {
		labels := truncate.StringWithTail(strings.Join(m.card.Labels, ", "), uint(max(width-8, 10)), "...")
		writeDetail(&b, "Labels: ", detailValueStyle.Render(labels))
	}

	if !m.card.UpdatedAt.IsZero() {
		writeDetail(&b, "Updated: ", detailValueStyle.Render(view.HumanizeSince(m.card.UpdatedAt, m.now())))
	}

	if m.card.ContentType == domain.ContentTypeRedacted {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(wordwrap.String("This item is not visible to the configured token.", width)))
	}

	return b.String()
}

func writeDetail(b *strings.Builder, label, value string) {
	b.WriteString(detailLabelStyle.Render(label))
	b.WriteString(value)
	b.WriteString("\n")
}

func contentTypeLabel(t domain.ContentType) string {
	switch t {
	case domain.ContentTypeIssue:
		return "Issue"
	case domain.ContentTypePullRequest:
		return "Pull request"
	case domain.ContentTypeDraftIssue:
		return "Draft"
	case domain.ContentTypeRedacted:
		return "Private item"
	}
	return string(t)
}

// renderRightPanel renders the field values viewport
func (m DetailModel) renderRightPanel() string {
	var b strings.Builder

	scrollHint := ""
	if m.viewport.TotalLineCount() > m.viewport.Height {
		switch {
		case m.viewport.AtTop():
			scrollHint = " ↓"
		case m.viewport.AtBottom():
			scrollHint = " ↑"
		default:
			scrollHint = " ↕"
		}
	}

	b.WriteString(detailLabelStyle.Render(fmt.Sprintf("Fields (%d)", len(m.card.Fields))))
	b.WriteString(scrollIndicatorStyle.Render(scrollHint))
	b.WriteString("\n")

	if len(m.card.Fields) == 0 {
		b.WriteString(dimStyle.Render("No field values"))
		return b.String()
	}

	b.WriteString(m.viewport.View())
	return b.String()
}

// updateViewportContent lists field values, the grouping field first and
// the rest by name.
func (m *DetailModel) updateViewportContent() {
	wrapWidth := max(m.viewport.Width-2, 20)

	names := slices.Sorted(maps.Keys(m.card.Fields))
	if i := slices.Index(names, m.groupBy); i > 0 {
		names = append([]string{m.groupBy}, slices.Delete(names, i, i+1)...)
	}

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(fieldNameStyle.Render(name))
		b.WriteString("\n")
		b.WriteString(detailValueStyle.Render(wordwrap.String(formatFieldValue(m.card.Fields[name]), wrapWidth)))
	}

	m.viewport.SetContent(b.String())
}

// formatFieldValue renders a flattened field value.
func formatFieldValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
