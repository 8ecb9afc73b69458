// Package tui provides Bubble Tea models for the interactive roadmap board.
package tui

import (
	"context"

	"github.com/h0rv/roadmap/internal/domain"
	"github.com/h0rv/roadmap/internal/view"
)

// BoardSource supplies the board. store.Cache reads GitHub through the
// local cache, server.RemoteSource reads a running roadmap server.
type BoardSource interface {
	GetBoard(ctx context.Context, forceRefresh bool) (*domain.NormalizedProjectData, error)
}

// ColumnSelectedMsg is emitted when the user picks a column to jump to.
type ColumnSelectedMsg struct {
	Index int
}

// ErrorMsg is emitted when an error occurs.
type ErrorMsg struct {
	Err error
}

// QuitMsg is emitted when the user requests to quit.
type QuitMsg struct{}

type (
	boardLoadedMsg struct {
		data *domain.NormalizedProjectData
		err  error
	}
	openDetailMsg       struct{ card view.Card }
	closeDetailMsg      struct{}
	openColumnPickerMsg struct{}
	closePickerMsg      struct{}
)
