package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// AppScreen represents the different screens in the application flow.
type AppScreen int

const (
	ScreenBoard AppScreen = iota
	ScreenColumnPicker
	ScreenDetail
)

// AppModel is the root Bubble Tea model. The board is always alive; the
// column picker and detail view are shown on top of it and return to it.
type AppModel struct {
	board BoardModel

	currentScreen AppScreen
	overlay       tea.Model // picker or detail, nil on the board screen
	err           error
}

// NewAppModel creates the app for a board read from source.
func NewAppModel(source BoardSource, ctx context.Context) AppModel {
	return AppModel{
		board:         NewBoardModel(source, ctx),
		currentScreen: ScreenBoard,
	}
}

// Init initializes the app model.
func (m AppModel) Init() tea.Cmd {
	return m.board.Init()
}

// Update handles messages and transitions between screens.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		cmds := []tea.Cmd{m.updateBoard(msg)}
		if m.overlay != nil {
			var cmd tea.Cmd
			m.overlay, cmd = m.overlay.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case ErrorMsg:
		m.err = msg.Err
		return m, nil

	case QuitMsg:
		return m, tea.Quit

	// Loads and spinner ticks belong to the board whatever is on screen.
	case boardLoadedMsg, spinner.TickMsg:
		return m, m.updateBoard(msg)

	case openColumnPickerMsg:
		m.currentScreen = ScreenColumnPicker
		picker := NewColumnPickerModel(m.board.Columns(), m.board.selectedColumn)
		m.overlay = picker
		return m, picker.Init()

	case ColumnSelectedMsg:
		m.closeOverlay()
		return m, tea.Batch(m.updateBoard(msg), tea.WindowSize())

	case closePickerMsg, closeDetailMsg:
		m.closeOverlay()
		return m, tea.WindowSize()

	case openDetailMsg:
		m.currentScreen = ScreenDetail
		detail := NewDetailModel(msg.card, m.board.board.GroupBy)
		m.overlay = detail
		return m, detail.Init()
	}

	if m.overlay != nil {
		var cmd tea.Cmd
		m.overlay, cmd = m.overlay.Update(msg)
		return m, cmd
	}
	return m, m.updateBoard(msg)
}

func (m *AppModel) updateBoard(msg tea.Msg) tea.Cmd {
	model, cmd := m.board.Update(msg)
	if bm, ok := model.(BoardModel); ok {
		m.board = bm
	}
	return cmd
}

func (m *AppModel) closeOverlay() {
	m.currentScreen = ScreenBoard
	m.overlay = nil
}

// View renders the current screen.
func (m AppModel) View() string {
	if m.err != nil {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v\n\nPress Ctrl+C to quit", m.err))
	}
	if m.overlay != nil {
		return m.overlay.View()
	}
	return m.board.View()
}
