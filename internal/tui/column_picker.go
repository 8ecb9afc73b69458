package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/roadmap/internal/view"
)

// columnItem wraps a board column for use in bubbles/list.
type columnItem struct {
	index  int
	column view.Column
}

func (i columnItem) FilterValue() string {
	return i.column.Name
}

func (i columnItem) Title() string {
	return i.column.Name
}

func (i columnItem) Description() string {
	if i.column.Count == 1 {
		return "1 item"
	}
	return fmt.Sprintf("%d items", i.column.Count)
}

// columnDelegate renders one column entry per line pair.
type columnDelegate struct{}

func (d columnDelegate) Height() int                             { return 2 }
func (d columnDelegate) Spacing() int                            { return 1 }
func (d columnDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d columnDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(columnItem)
	if !ok {
		return
	}

	str := fmt.Sprintf("%d. %s", i.index+1, i.Title())
	desc := i.Description()

	if index == m.Index() {
		fmt.Fprint(w, SelectedItemStyle.Render("> "+str))
		fmt.Fprint(w, "\n  "+NormalItemStyle.Render(desc))
	} else {
		fmt.Fprint(w, NormalItemStyle.Render("  "+str))
		fmt.Fprint(w, "\n  "+lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(desc))
	}
}

// ColumnPickerModel lists the board's columns so the user can jump to one
// without paging through the carousel.
type ColumnPickerModel struct {
	list list.Model
}

// NewColumnPickerModel creates a picker over columns in board order.
func NewColumnPickerModel(columns []view.Column, selected int) ColumnPickerModel {
	items := make([]list.Item, len(columns))
	for i, c := range columns {
		items[i] = columnItem{index: i, column: c}
	}

	l := list.New(items, columnDelegate{}, 80, 20)
	l.Title = "Jump to Column"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = TitleStyle
	if selected >= 0 && selected < len(items) {
		l.Select(selected)
	}

	return ColumnPickerModel{list: l}
}

// Init initializes the model.
func (m ColumnPickerModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update handles messages and updates the model state.
func (m ColumnPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		m.list.SetHeight(msg.Height - 2)
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q", "esc":
			return m, func() tea.Msg { return closePickerMsg{} }
		case "enter":
			if item, ok := m.list.SelectedItem().(columnItem); ok {
				return m, func() tea.Msg { return ColumnSelectedMsg{Index: item.index} }
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the model.
func (m ColumnPickerModel) View() string {
	return m.list.View()
}
