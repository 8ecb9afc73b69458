package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/roadmap/internal/domain"
	"github.com/h0rv/roadmap/internal/store"
	"github.com/h0rv/roadmap/internal/view"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/pkg/browser"
)

// Layout constants
const (
	minColumnWidth = 20
	maxColumnWidth = 35
	headerLines    = 2  // title line + status line
	pageJumpSize   = 10 // Number of items to jump with Ctrl+D/U
)

// Styles for the board view - base styles without width/height (set dynamically)
var (
	columnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	cardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedCardStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Bold(true)
)

// statusReporter is implemented by sources that know whether they served a
// board left over from a failed refresh.
type statusReporter interface {
	Status() store.Status
}

// BoardModel is the kanban view of the roadmap.
type BoardModel struct {
	// Dependencies
	source BoardSource
	ctx    context.Context
	now    func() time.Time

	// UI components
	keymap      KeyMap
	help        HelpModel
	spinner     spinner.Model
	filterInput textinput.Model

	// Board state
	board          view.Board     // last loaded board
	filtered       view.Board     // board after the filter is applied
	selectedColumn int            // Currently selected column
	columnOffset   int            // Horizontal scroll offset (first visible column index)
	selectedCard   map[string]int // Column name -> selected card index
	scrollOffset   map[string]int // Column name -> scroll offset

	// View state
	width      int
	height     int
	showHelp   bool
	filterMode bool
	filterText string
	loading    bool
	errorToast string
}

// NewBoardModel creates a board that reads from source.
func NewBoardModel(source BoardSource, ctx context.Context) BoardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "Filter..."
	ti.Prompt = "/ "

	return BoardModel{
		source:       source,
		ctx:          ctx,
		now:          time.Now,
		keymap:       DefaultKeyMap(),
		help:         NewHelpModel(DefaultKeyMap()),
		spinner:      sp,
		filterInput:  ti,
		board:        view.Loading(),
		filtered:     view.Loading(),
		selectedCard: make(map[string]int),
		scrollOffset: make(map[string]int),
		loading:      true,
	}
}

// Init starts the first load.
func (m BoardModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tea.WindowSize(),
		m.load(false),
	)
}

// Update handles messages
func (m BoardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		(&m).adjustColumnScroll()
		return m, nil

	case boardLoadedMsg:
		(&m).applyLoad(msg)
		return m, nil

	case ColumnSelectedMsg:
		(&m).jumpToColumn(msg.Index)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	return m, nil
}

// applyLoad installs a load result. A failed refresh keeps the board the
// user is already looking at and marks it stale.
func (m *BoardModel) applyLoad(msg boardLoadedMsg) {
	m.loading = false
	if msg.err != nil {
		if m.hasBoard() {
			m.board.Stale = true
			m.errorToast = fmt.Sprintf("Refresh failed: %v", msg.err)
		} else {
			m.board = view.FromError(msg.err)
		}
		m.applyFilter()
		return
	}

	m.board = view.FromData(msg.data)
	if sr, ok := m.source.(statusReporter); ok && sr.Status().LastError != "" {
		m.board.Stale = true
	}
	m.errorToast = ""
	m.applyFilter()
}

func (m BoardModel) hasBoard() bool {
	return m.board.State == view.StatePopulated || m.board.State == view.StateEmpty
}

// handleKeyPress processes keyboard input
func (m BoardModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keymap.ForceQuit) {
		return m, tea.Quit
	}

	// Help overlay
	if m.showHelp {
		if key.Matches(msg, m.keymap.Help, m.keymap.Quit, m.keymap.CancelFilter) {
			m.showHelp = false
		}
		return m, nil
	}

	// Filter mode
	if m.filterMode {
		switch {
		case key.Matches(msg, m.keymap.ApplyFilter):
			m.filterMode = false
			m.filterInput.Blur()
			m.filterText = m.filterInput.Value()
			(&m).applyFilter()
			return m, nil
		case key.Matches(msg, m.keymap.CancelFilter):
			m.filterMode = false
			m.filterInput.Blur()
			m.filterInput.SetValue(m.filterText)
			return m, nil
		default:
			var cmd tea.Cmd
			m.filterInput, cmd = m.filterInput.Update(msg)
			return m, cmd
		}
	}

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = true
	case key.Matches(msg, m.keymap.Refresh):
		if m.loading {
			return m, nil
		}
		m.loading = true
		m.errorToast = ""
		return m, tea.Batch(m.spinner.Tick, m.load(true))
	}

	if !m.hasBoard() {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keymap.Filter):
		m.filterMode = true
		cmd := m.filterInput.Focus()
		return m, cmd
	case key.Matches(msg, m.keymap.Left):
		if m.selectedColumn > 0 {
			m.selectedColumn--
			(&m).adjustColumnScroll()
		}
	case key.Matches(msg, m.keymap.Right):
		if m.selectedColumn < len(m.filtered.Columns)-1 {
			m.selectedColumn++
			(&m).adjustColumnScroll()
		}
	case key.Matches(msg, m.keymap.Down):
		(&m).moveCardSelection(1)
	case key.Matches(msg, m.keymap.Up):
		(&m).moveCardSelection(-1)
	case key.Matches(msg, m.keymap.Top):
		(&m).jumpToCard(0)
	case key.Matches(msg, m.keymap.Bottom):
		(&m).jumpToCard(-1)
	case key.Matches(msg, m.keymap.PageDown):
		(&m).moveCardSelection(pageJumpSize)
	case key.Matches(msg, m.keymap.PageUp):
		(&m).moveCardSelection(-pageJumpSize)
	case key.Matches(msg, m.keymap.JumpColumn):
		return m, func() tea.Msg { return openColumnPickerMsg{} }
	case key.Matches(msg, m.keymap.Open):
		if card, ok := m.getSelectedCard(); ok && card.URL != "" {
			_ = browser.OpenURL(card.URL)
		}
	case key.Matches(msg, m.keymap.OpenBoard):
		if m.board.URL != "" {
			_ = browser.OpenURL(m.board.URL)
		}
	case key.Matches(msg, m.keymap.Detail):
		if card, ok := m.getSelectedCard(); ok {
			return m, func() tea.Msg { return openDetailMsg{card: card} }
		}
	}

	return m, nil
}

// View renders the board - fills entire terminal exactly
func (m BoardModel) View() string {
	width := m.width
	height := m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	var sections []string
	sections = append(sections, m.renderHeader(width))
	sections = append(sections, m.renderSecondHeader(width))

	if m.filterMode {
		sections = append(sections, m.filterInput.View())
	}

	boardHeight := height - headerLines
	if m.filterMode {
		boardHeight--
	}
	if boardHeight < 5 {
		boardHeight = 5
	}

	var mainContent string
	switch {
	case m.showHelp:
		helpLines := strings.Split(m.help.View(width), "\n")
		if len(helpLines) > boardHeight {
			helpLines = helpLines[:boardHeight]
		}
		mainContent = strings.Join(helpLines, "\n")
	case m.board.State == view.StateLoading:
		mainContent = lipgloss.Place(width, boardHeight, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" Loading roadmap...")
	case m.board.State == view.StateError:
		mainContent = lipgloss.Place(width, boardHeight, lipgloss.Center, lipgloss.Center,
			renderError(m.board, width-4))
	case m.board.State == view.StateEmpty:
		mainContent = lipgloss.Place(width, boardHeight, lipgloss.Center, lipgloss.Center,
			"This project has no items yet. Press 'r' to refresh.")
	default:
		mainContent = m.renderBoard(width, boardHeight)
	}
	sections = append(sections, mainContent)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderError shows the error text verbatim followed by setup guidance.
func renderError(b view.Board, width int) string {
	if width < 20 {
		width = 20
	}
	lines := []string{errorStyle.Render(wordwrap.String("Error: "+b.Error, width))}
	if b.Guidance != "" {
		lines = append(lines, "", GuidanceStyle.Render(wordwrap.String(b.Guidance, width)))
	}
	lines = append(lines, "", dimStyle.Render("Press 'r' to retry or 'q' to quit."))
	return strings.Join(lines, "\n")
}

// renderHeader renders the title on the left and counts on the right.
func (m BoardModel) renderHeader(width int) string {
	title := m.board.Title
	if title == "" {
		title = "Roadmap"
	}
	if m.board.GroupBy != "" {
		title = fmt.Sprintf("%s (by %s)", title, m.board.GroupBy)
	}

	var statusParts []string
	if m.loading {
		statusParts = append(statusParts, m.spinner.View()+"loading")
	}
	if m.hasBoard() {
		shown := 0
		for _, col := range m.filtered.Columns {
			shown += col.Count
		}
		if m.filterText != "" {
			statusParts = append(statusParts, fmt.Sprintf("%d/%d items", shown, m.board.TotalItems))
			statusParts = append(statusParts, "/"+m.filterText)
		} else {
			statusParts = append(statusParts, fmt.Sprintf("%d items", m.board.TotalItems))
		}
	}
	statusParts = append(statusParts, m.help.ShortView())
	status := strings.Join(statusParts, " | ")

	padding := width - lipgloss.Width(title) - lipgloss.Width(status) - 2
	if padding < 1 {
		padding = 1
	}

	return titleStyle.Render(title) + strings.Repeat(" ", padding) + dimStyle.Render(status)
}

// renderSecondHeader renders freshness on the left and position or an error toast on the right.
func (m BoardModel) renderSecondHeader(width int) string {
	left := dimStyle.Render(m.board.Freshness(m.now()))
	if m.board.Stale {
		left = WarningStyle.Render(m.board.Freshness(m.now()))
	}
	if m.board.Truncated {
		left += " " + WarningStyle.Render("(showing the first items only)")
	}

	right := ""
	if m.errorToast != "" {
		right = errorStyle.Render(m.errorToast)
	} else if m.hasBoard() && len(m.filtered.Columns) > 0 {
		col := m.filtered.Columns[m.selectedColumn]
		colPos := fmt.Sprintf("col %d/%d", m.selectedColumn+1, len(m.filtered.Columns))
		if col.Count > 0 {
			right = fmt.Sprintf("%s | card %d/%d", colPos, m.selectedCard[col.Name]+1, col.Count)
		} else {
			right = colPos
		}
		right = dimStyle.Render(right)
	}

	padding := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return left + strings.Repeat(" ", padding) + right
}

// renderBoard renders the kanban columns within the given dimensions.
// Columns that do not fit scroll horizontally as a carousel.
func (m BoardModel) renderBoard(totalWidth, totalHeight int) string {
	numCols := len(m.filtered.Columns)
	if numCols == 0 {
		return ""
	}

	// Border adds 2 lines to the content height
	colContentHeight := totalHeight - 2
	if colContentHeight < 3 {
		colContentHeight = 3
	}

	visibleCols := totalWidth / minColumnWidth
	if visibleCols < 1 {
		visibleCols = 1
	}
	if visibleCols > numCols {
		visibleCols = numCols
	}

	colWidth := totalWidth / visibleCols
	if colWidth > maxColumnWidth {
		colWidth = maxColumnWidth
	}
	if colWidth < minColumnWidth {
		colWidth = minColumnWidth
	}

	// 2 border + 2 padding
	innerWidth := colWidth - 4
	if innerWidth < 10 {
		innerWidth = 10
	}

	maxCardLines := colContentHeight - 1
	if maxCardLines < 1 {
		maxCardLines = 1
	}

	startCol := m.columnOffset
	endCol := startCol + visibleCols
	if endCol > numCols {
		endCol = numCols
		startCol = endCol - visibleCols
		if startCol < 0 {
			startCol = 0
		}
	}

	columnViews := make([]string, 0, visibleCols+2)

	if startCol > 0 {
		columnViews = append(columnViews, scrollIndicator("◀", colContentHeight+2))
	}
	for i := startCol; i < endCol; i++ {
		columnViews = append(columnViews, m.renderColumn(i, colWidth, colContentHeight, innerWidth, maxCardLines))
	}
	if endCol < numCols {
		columnViews = append(columnViews, scrollIndicator("▶", colContentHeight+2))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, columnViews...)
}

func scrollIndicator(arrow string, height int) string {
	return lipgloss.NewStyle().
		Width(2).
		Height(height).
		Foreground(lipgloss.Color("205")).
		Align(lipgloss.Center, lipgloss.Center).
		Render(arrow)
}

// renderColumn renders one column. innerHeight excludes the border and
// maxCardLines excludes the header line.
func (m BoardModel) renderColumn(idx, width, innerHeight, innerWidth, maxCardLines int) string {
	col := m.filtered.Columns[idx]
	selected := idx == m.selectedColumn

	headerText := truncate.StringWithTail(fmt.Sprintf("[%d] %s", idx+1, col.Badge()), uint(innerWidth), "…")

	scrollOffset := m.scrollOffset[col.Name]
	selectedIdx := m.selectedCard[col.Name]

	cardSlots := maxCardLines - 1
	if cardSlots < 1 {
		cardSlots = 1
	}

	needUpIndicator := scrollOffset > 0
	availableSlots := cardSlots
	if needUpIndicator {
		availableSlots--
	}

	endIdx := min(scrollOffset+availableSlots, len(col.Cards))
	needDownIndicator := false
	if endIdx < len(col.Cards) {
		needDownIndicator = true
		availableSlots--
		endIdx = min(scrollOffset+availableSlots, len(col.Cards))
	}

	var lines []string
	lines = append(lines, columnHeaderStyle.Render(headerText))

	if needUpIndicator {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("↑ %d more", scrollOffset)))
	}

	for i := scrollOffset; i < endIdx; i++ {
		cardText := formatCardText(col.Cards[i], innerWidth-3) // "> " prefix
		if selected && i == selectedIdx {
			lines = append(lines, selectedCardStyle.Render("> "+cardText))
		} else {
			lines = append(lines, cardStyle.Render("  "+cardText))
		}
	}

	if remaining := len(col.Cards) - endIdx; needDownIndicator && remaining > 0 {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("↓ %d more", remaining)))
	}

	if p := col.Placeholder(); p != "" {
		lines = append(lines, dimStyle.Render(p))
	}

	borderColor := lipgloss.Color("240")
	if selected {
		borderColor = lipgloss.Color("205")
	}

	// Height sets the content area; the border adds 2 more lines.
	// MaxHeight would cut the border off.
	colStyle := lipgloss.NewStyle().
		Width(width - 2).
		Height(innerHeight).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor)

	return colStyle.Render(strings.Join(lines, "\n"))
}

// cardSuffix is the short marker shown right-aligned on a card.
func cardSuffix(card view.Card) string {
	switch card.ContentType {
	case domain.ContentTypeIssue, domain.ContentTypePullRequest:
		if i := strings.LastIndex(card.Reference, "#"); i >= 0 {
			return card.Reference[i:]
		}
	case domain.ContentTypeDraftIssue:
		return "(draft)"
	case domain.ContentTypeRedacted:
		return "(pvt)"
	}
	return ""
}

// formatCardText fits a card into maxWidth cells with its suffix right-aligned.
func formatCardText(card view.Card, maxWidth int) string {
	suffix := cardSuffix(card)
	if suffix == "" {
		return truncate.StringWithTail(card.Title, uint(maxWidth), "…")
	}

	availableForTitle := maxWidth - lipgloss.Width(suffix) - 1
	if availableForTitle < 5 {
		availableForTitle = 5
	}
	title := truncate.StringWithTail(card.Title, uint(availableForTitle), "…")

	padding := maxWidth - lipgloss.Width(title) - lipgloss.Width(suffix)
	if padding < 1 {
		padding = 1
	}

	return title + strings.Repeat(" ", padding) + dimStyle.Render(suffix)
}

// applyFilter recomputes the filtered board and keeps selections in range.
func (m *BoardModel) applyFilter() {
	m.filtered = m.board.Filter(m.filterText)

	if m.selectedColumn >= len(m.filtered.Columns) {
		m.selectedColumn = max(len(m.filtered.Columns)-1, 0)
	}

	// Reset scroll so a shorter result does not show "↑ N more"
	for _, col := range m.filtered.Columns {
		m.scrollOffset[col.Name] = 0
		if m.selectedCard[col.Name] >= col.Count {
			m.selectedCard[col.Name] = max(col.Count-1, 0)
		}
		m.adjustScroll(col.Name)
	}
	m.adjustColumnScroll()
}

// moveCardSelection moves the card selection up or down by delta
func (m *BoardModel) moveCardSelection(delta int) {
	if len(m.filtered.Columns) == 0 {
		return
	}

	col := m.filtered.Columns[m.selectedColumn]
	if col.Count == 0 {
		return
	}

	newIdx := m.selectedCard[col.Name] + delta
	if newIdx < 0 {
		newIdx = 0
	}
	if newIdx >= col.Count {
		newIdx = col.Count - 1
	}

	m.selectedCard[col.Name] = newIdx
	m.adjustScroll(col.Name)
}

// jumpToCard jumps to a specific card index. Use -1 to jump to last card.
func (m *BoardModel) jumpToCard(idx int) {
	if len(m.filtered.Columns) == 0 {
		return
	}

	col := m.filtered.Columns[m.selectedColumn]
	if col.Count == 0 {
		return
	}

	if idx < 0 || idx >= col.Count {
		idx = col.Count - 1
	}

	m.selectedCard[col.Name] = idx
	m.adjustScroll(col.Name)
}

// jumpToColumn selects the column at idx.
func (m *BoardModel) jumpToColumn(idx int) {
	if idx < 0 || idx >= len(m.filtered.Columns) {
		return
	}
	m.selectedColumn = idx
	m.adjustColumnScroll()
}

// adjustScroll ensures the selected card is visible
func (m *BoardModel) adjustScroll(colName string) {
	selectedIdx := m.selectedCard[colName]
	scrollOffset := m.scrollOffset[colName]

	contentHeight := m.height - headerLines - 2 // column borders
	if m.filterMode {
		contentHeight--
	}
	visibleCards := contentHeight - 3 // header + potential scroll indicators
	if visibleCards < 3 {
		visibleCards = 3
	}

	if selectedIdx < scrollOffset {
		m.scrollOffset[colName] = selectedIdx
	}
	if selectedIdx >= scrollOffset+visibleCards {
		m.scrollOffset[colName] = selectedIdx - visibleCards + 1
	}
}

// adjustColumnScroll ensures the selected column is visible (horizontal carousel)
func (m *BoardModel) adjustColumnScroll() {
	if len(m.filtered.Columns) == 0 || m.width == 0 {
		return
	}

	visibleCols := m.width / minColumnWidth
	if visibleCols < 1 {
		visibleCols = 1
	}
	if visibleCols > len(m.filtered.Columns) {
		visibleCols = len(m.filtered.Columns)
	}

	if m.selectedColumn < m.columnOffset {
		m.columnOffset = m.selectedColumn
	}
	if m.selectedColumn >= m.columnOffset+visibleCols {
		m.columnOffset = m.selectedColumn - visibleCols + 1
	}
}

// getSelectedCard returns the currently selected card
func (m BoardModel) getSelectedCard() (view.Card, bool) {
	if len(m.filtered.Columns) == 0 {
		return view.Card{}, false
	}

	col := m.filtered.Columns[m.selectedColumn]
	if col.Count == 0 {
		return view.Card{}, false
	}

	idx := m.selectedCard[col.Name]
	if idx >= col.Count {
		idx = 0
	}
	return col.Cards[idx], true
}

// Columns returns the filtered columns in board order.
func (m BoardModel) Columns() []view.Column {
	return m.filtered.Columns
}

// load reads the board from the source. forceRefresh bypasses the cache.
func (m BoardModel) load(forceRefresh bool) tea.Cmd {
	source, ctx := m.source, m.ctx
	return func() tea.Msg {
		data, err := source.GetBoard(ctx, forceRefresh)
		return boardLoadedMsg{data: data, err: err}
	}
}
