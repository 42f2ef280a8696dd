package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	chainDI "github.com/fd1az/swap-quoter/business/chain/di"
	"github.com/fd1az/swap-quoter/business/quoting/app"
	quotingDI "github.com/fd1az/swap-quoter/business/quoting/di"
	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/pkg/ui"
)

func newWatchCmd(root *rootFlags) *cobra.Command {
	var trade tradeFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Interactive quote board that re-quotes as you type",
		Long: `Watch opens a live board for one token pair. Editing the amount re-quotes
after a short pause, new blocks refresh the quotes and any quote can be pinned
and turned into calldata.

Examples:
  quoter watch --in WETH --out USDC --amount 1
  quoter watch --chain 8453 --in ETH --out USDC --recipient 0x...`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// In TUI mode, suppress logs (discard output)
			mono, err := bootstrap(ctx, root, io.Discard)
			if err != nil {
				return err
			}
			defer mono.Close()

			sr := mono.Services()
			svc := quotingDI.GetQuoteService(sr)

			amount := trade.amount
			trade.amount = ""
			base, err := trade.intent(ctx, svc)
			if err != nil {
				return err
			}

			var p *tea.Program
			ctrl := svc.NewController(app.WithListener(func(v app.View) {
				p.Send(ui.ViewMsg{View: v})
			}))
			defer ctrl.Close()

			title := fmt.Sprintf("%s → %s · %s", base.TokenIn.Symbol(), base.TokenOut.Symbol(), strings.Join(svc.Protocols(), " · "))
			controls := &boardControls{ctrl: ctrl, svc: svc, base: base}
			p = tea.NewProgram(ui.New(controls, title, amount), tea.WithAltScreen(), tea.WithContext(ctx))

			untrack := quotingDI.GetBlockRefresher(sr).Track(ctrl)
			defer untrack()

			heads, err := chainDI.GetChainService(sr).WatchHeads(ctx, trade.chainID)
			if err != nil {
				mono.Logger().Warn(ctx, "head watch unavailable", "chain_id", trade.chainID, "error", err)
			} else {
				go func() {
					for {
						select {
						case <-ctx.Done():
							return
						case b, ok := <-heads:
							if !ok {
								return
							}
							p.Send(ui.BlockMsg{Number: b.Number})
						}
					}
				}()
			}

			if _, err := p.Run(); err != nil && ctx.Err() == nil {
				return fmt.Errorf("TUI error: %w", err)
			}
			return nil
		},
	}

	trade.register(cmd)
	return cmd
}

// boardControls binds the board to one controller over a fixed pair.
type boardControls struct {
	ctrl *app.Controller
	svc  *app.QuoteService
	base app.Intent
}

func (b *boardControls) SetAmount(human string) error {
	in := b.base
	if human = strings.TrimSpace(human); human != "" {
		amt, err := b.svc.ParseAmount(in.TokenIn, human)
		if err != nil {
			// a half-typed amount still clears the old quotes
			b.ctrl.SetIntent(in)
			return err
		}
		in.AmountIn = amt
	}
	b.ctrl.SetIntent(in)
	return nil
}

func (b *boardControls) Select(protocol string) error { return b.ctrl.Select(protocol) }

func (b *boardControls) ClearSelection() { b.ctrl.ClearSelection() }

func (b *boardControls) Refresh() { b.ctrl.Refresh() }

func (b *boardControls) Build(ctx context.Context, protocol string) (domain.SwapExecutionParams, error) {
	return b.ctrl.BuildExecution(ctx, protocol)
}
