package ui

import (
	"github.com/fd1az/swap-quoter/business/quoting/app"
	"github.com/fd1az/swap-quoter/business/quoting/domain"
)

// Message types for board updates

// ViewMsg carries a controller state change.
type ViewMsg struct {
	View app.View
}

// BlockMsg is sent when the quoted chain produces a new head.
type BlockMsg struct {
	Number uint64
}

// ExecutionMsg carries built swap calldata.
type ExecutionMsg struct {
	Protocol string
	Params   domain.SwapExecutionParams
}

// ErrorMsg is sent when a user action fails.
type ErrorMsg struct {
	Error error
}
