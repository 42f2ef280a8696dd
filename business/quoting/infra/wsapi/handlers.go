package wsapi

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/swap-quoter/business/quoting/app"
	"github.com/fd1az/swap-quoter/internal/apperror"
)

func (s *session) handle(ctx context.Context, msg ClientMessage) {
	var err error
	switch msg.Type {
	case TypeIntent:
		err = s.handleIntent(ctx, msg)
	case TypeSelect:
		err = s.ctrl.Select(msg.Protocol)
	case TypeClearSelection:
		s.ctrl.ClearSelection()
	case TypeRefresh:
		s.ctrl.Refresh()
	case TypeBuild:
		err = s.handleBuild(ctx, msg)
	default:
		err = apperror.Validation(apperror.CodeInvalidInput, "unknown message type "+msg.Type)
	}
	if err != nil {
		s.reply(ctx, errorMessage(msg.ID, err))
	}
}

// handleIntent resolves the raw intent. An empty amount is a valid partial
// intent and clears the session.
func (s *session) handleIntent(ctx context.Context, msg ClientMessage) error {
	intent, err := s.parseIntent(ctx, msg)
	if err != nil {
		return err
	}
	s.ctrl.SetIntent(intent)
	return nil
}

func (s *session) parseIntent(ctx context.Context, msg ClientMessage) (app.Intent, error) {
	svc := s.server.service
	intent := app.Intent{Slippage: svc.DefaultSlippage()}

	if msg.ChainID == 0 {
		return intent, apperror.Validation(apperror.CodeRequiredField, "chainId")
	}
	if msg.TokenIn != "" {
		in, err := svc.ResolveToken(ctx, msg.ChainID, msg.TokenIn)
		if err != nil {
			return intent, err
		}
		intent.TokenIn = in
	}
	if msg.TokenOut != "" {
		out, err := svc.ResolveToken(ctx, msg.ChainID, msg.TokenOut)
		if err != nil {
			return intent, err
		}
		intent.TokenOut = out
	}
	if msg.Amount != "" && intent.TokenIn != nil {
		amt, err := svc.ParseAmount(intent.TokenIn, msg.Amount)
		if err != nil {
			return intent, err
		}
		intent.AmountIn = amt
	}
	if msg.Slippage != "" {
		slip, err := decimal.NewFromString(msg.Slippage)
		if err != nil {
			return intent, apperror.Validation(apperror.CodeInvalidSlippage, msg.Slippage)
		}
		intent.Slippage = slip
	}
	if msg.Recipient != "" {
		if !common.IsHexAddress(msg.Recipient) {
			return intent, apperror.Validation(apperror.CodeInvalidInput, "recipient "+msg.Recipient)
		}
		addr := common.HexToAddress(msg.Recipient)
		intent.Recipient = &addr
	}
	if msg.Deadline > 0 {
		d := time.Unix(msg.Deadline, 0).UTC()
		intent.Deadline = &d
	}
	return intent, nil
}

// handleBuild builds for the named protocol, or the effective selection.
func (s *session) handleBuild(ctx context.Context, msg ClientMessage) error {
	protocol := msg.Protocol
	if protocol == "" {
		v := s.ctrl.View()
		if v.Selected == nil {
			return apperror.New(apperror.CodeStaleQuote,
				apperror.WithContext("no quote selected"))
		}
		protocol = v.Selected.Protocol
	}

	params, err := s.ctrl.BuildExecution(ctx, protocol)
	if err != nil {
		return err
	}
	s.reply(ctx, ServerMessage{
		ID:      msg.ID,
		Type:    TypeExecution,
		Payload: ExecutionPayload{Protocol: protocol, Params: params},
	})
	return nil
}
