package wsapi

import (
	"encoding/json"
	"errors"

	"github.com/fd1az/swap-quoter/business/quoting/app"
	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/internal/apperror"
)

// Client message types.
const (
	TypeIntent         = "intent"
	TypeSelect         = "select"
	TypeClearSelection = "clear_selection"
	TypeBuild          = "build"
	TypeRefresh        = "refresh"
)

// Server message types.
const (
	TypeState     = "state"
	TypeExecution = "execution"
	TypeError     = "error"
)

// ClientMessage is any message a client sends. Fields not used by Type are
// ignored.
type ClientMessage struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`

	// intent
	ChainID   uint64 `json:"chainId,omitempty"`
	TokenIn   string `json:"tokenIn,omitempty"`
	TokenOut  string `json:"tokenOut,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Slippage  string `json:"slippage,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Deadline  int64  `json:"deadline,omitempty"` // unix seconds

	// select, build
	Protocol string `json:"protocol,omitempty"`
}

// ServerMessage wraps every push to the client. ID echoes the client
// message it answers.
type ServerMessage struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// StatePayload is a rendered controller view.
type StatePayload struct {
	Version   uint64                      `json:"version"`
	State     string                      `json:"state"`
	Snapshot  *domain.AggregationSnapshot `json:"snapshot,omitempty"`
	Best      *domain.QuoteResult         `json:"best,omitempty"`
	Selected  *domain.QuoteResult         `json:"selected,omitempty"`
	UserPick  bool                        `json:"userPick"`
	AmountOut string                      `json:"amountOut,omitempty"`
	Display   *domain.QuoteDisplay        `json:"display,omitempty"`
	Error     *ErrorPayload               `json:"error,omitempty"`
}

// ExecutionPayload answers a build message.
type ExecutionPayload struct {
	Protocol string                     `json:"protocol"`
	Params   domain.SwapExecutionParams `json:"params"`
}

// ErrorPayload is the wire form of an error.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

func stateMessage(v app.View) ServerMessage {
	p := StatePayload{
		Version:   v.Version,
		State:     v.State.String(),
		Snapshot:  v.Snapshot,
		Best:      v.Best,
		Selected:  v.Selected,
		UserPick:  v.UserPick,
		AmountOut: v.AmountOut,
		Display:   v.Display,
	}
	if v.Err != nil {
		e := errorPayload(v.Err)
		p.Error = &e
	}
	return ServerMessage{Type: TypeState, Payload: p}
}

func errorMessage(id string, err error) ServerMessage {
	return ServerMessage{ID: id, Type: TypeError, Payload: errorPayload(err)}
}

func errorPayload(err error) ErrorPayload {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return ErrorPayload{
			Code:    string(appErr.Code),
			Message: appErr.Message,
			Context: appErr.Context,
		}
	}
	return ErrorPayload{
		Code:    string(apperror.CodeInternalError),
		Message: err.Error(),
	}
}

func decodeClientMessage(raw []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientMessage{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithCause(err),
			apperror.WithContext("malformed message"))
	}
	if msg.Type == "" {
		return msg, apperror.Validation(apperror.CodeRequiredField, "type")
	}
	return msg, nil
}
