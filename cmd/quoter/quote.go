package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	chainApp "github.com/fd1az/swap-quoter/business/chain/app"
	chainDI "github.com/fd1az/swap-quoter/business/chain/di"
	"github.com/fd1az/swap-quoter/business/quoting/app"
	quotingDI "github.com/fd1az/swap-quoter/business/quoting/di"
	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/asset"
)

type tradeFlags struct {
	chainID   uint64
	tokenIn   string
	tokenOut  string
	amount    string
	slippage  string
	recipient string
}

func (f *tradeFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&f.chainID, "chain", asset.ChainIDEthereum, "Chain id")
	cmd.Flags().StringVar(&f.tokenIn, "in", "", "Input token: symbol, address or \"native\" (required)")
	cmd.Flags().StringVar(&f.tokenOut, "out", "", "Output token: symbol, address or \"native\" (required)")
	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount of the input token, e.g. 1.5")
	cmd.Flags().StringVar(&f.slippage, "slippage", "", "Slippage tolerance as a fraction, e.g. 0.005 (default from config)")
	cmd.Flags().StringVar(&f.recipient, "recipient", "", "Address receiving the output")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
}

// intent resolves the flags against the quote service. An empty amount
// leaves AmountIn unset.
func (f *tradeFlags) intent(ctx context.Context, svc *app.QuoteService) (app.Intent, error) {
	in := app.Intent{Slippage: svc.DefaultSlippage()}

	var err error
	if in.TokenIn, err = svc.ResolveToken(ctx, f.chainID, f.tokenIn); err != nil {
		return in, err
	}
	if in.TokenOut, err = svc.ResolveToken(ctx, f.chainID, f.tokenOut); err != nil {
		return in, err
	}
	if f.amount != "" {
		if in.AmountIn, err = svc.ParseAmount(in.TokenIn, f.amount); err != nil {
			return in, err
		}
	}
	if f.slippage != "" {
		s, err := decimal.NewFromString(f.slippage)
		if err != nil {
			return in, apperror.Validation(apperror.CodeInvalidSlippage, f.slippage)
		}
		in.Slippage = s
	}
	if f.recipient != "" {
		if !common.IsHexAddress(f.recipient) {
			return in, apperror.Validation(apperror.CodeInvalidInput, "recipient "+f.recipient)
		}
		addr := common.HexToAddress(f.recipient)
		in.Recipient = &addr
	}
	return in, nil
}

func newQuoteCmd(root *rootFlags) *cobra.Command {
	var (
		trade    tradeFlags
		build    bool
		protocol string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Run one aggregation round and print every source's answer",
		Long: `Quote asks every configured source for the same trade and prints the
outcomes in registration order. With --build the calldata for the best quote
(or the --protocol one) is printed as well.

Examples:
  quoter quote --in USDC --out WETH --amount 1000
  quoter quote --in ETH --out USDC --amount 1 --build --recipient 0x...
  quoter quote --chain 42161 --in WETH --out USDC --amount 2 --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if trade.amount == "" {
				return apperror.Validation(apperror.CodeRequiredField, "amount")
			}
			ctx := cmd.Context()

			mono, err := bootstrap(ctx, root, os.Stderr)
			if err != nil {
				return err
			}
			defer mono.Close()

			svc := quotingDI.GetQuoteService(mono.Services())
			intent, err := trade.intent(ctx, svc)
			if err != nil {
				return err
			}
			req := intent.Request()

			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			if !asJSON {
				s.Suffix = fmt.Sprintf(" Fetching quotes from %s...", strings.Join(svc.Protocols(), ", "))
				s.Start()
			}
			snap, aggErr := svc.Aggregate(ctx, req)
			s.Stop()

			if snap == nil {
				return aggErr
			}

			var exec *domain.SwapExecutionParams
			if build && aggErr == nil {
				p := protocol
				if p == "" {
					p = snap.Best.Protocol
				}
				params, err := svc.Build(ctx, p, req, snap)
				if err != nil {
					return err
				}
				exec = &params
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(quoteOutput{Snapshot: snap, Execution: exec})
			}

			chains := chainDI.GetChainService(mono.Services())
			printSnapshot(ctx, out, req, snap, chains)
			if exec != nil {
				printExecution(out, *exec)
			}
			return aggErr
		},
	}

	trade.register(cmd)
	cmd.Flags().BoolVar(&build, "build", false, "Build the transaction for the chosen quote")
	cmd.Flags().StringVar(&protocol, "protocol", "", "Protocol to build instead of the best quote")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output in JSON format")
	return cmd
}

type quoteOutput struct {
	Snapshot  *domain.AggregationSnapshot `json:"snapshot"`
	Execution *domain.SwapExecutionParams `json:"execution,omitempty"`
}

func printSnapshot(ctx context.Context, w io.Writer, req domain.QuoteRequest, snap *domain.AggregationSnapshot, chains *chainApp.ChainService) {
	header := color.New(color.FgMagenta, color.Bold)
	best := color.New(color.FgGreen, color.Bold)
	failed := color.New(color.FgRed)
	muted := color.New(color.FgHiBlack)

	fmt.Fprintln(w)
	header.Fprintf(w, "%s %s → %s on chain %d\n",
		asset.FromRaw(req.TokenIn, req.AmountIn).ToDecimal().String(),
		req.TokenIn.Symbol(), req.TokenOut.Symbol(), req.ChainID())
	muted.Fprintf(w, "round %d · %s · slippage %s%%\n\n",
		snap.Round, snap.Timestamp.Format(time.TimeOnly), req.Slippage.Mul(decimal.NewFromInt(100)).String())

	header.Fprintf(w, "%-18s %20s %10s %16s %8s %9s\n", "SOURCE", "AMOUNT OUT", "GAS", "NETWORK FEE", "FEE", "IMPACT")
	for _, o := range snap.Outcomes {
		r, ok := o.Result()
		if !ok {
			failed.Fprintf(w, "%-18s %s: %s\n", o.Adapter, o.Code(), o.Message())
			continue
		}

		fee := "-"
		if r.FeeTier != 0 {
			fee = r.FeeTier.String()
		}
		impact := "-"
		if r.PriceImpact.Valid {
			impact = r.PriceImpact.Decimal.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
		}
		network := "-"
		if cost, err := chains.NetworkFee(ctx, req.ChainID(), r.GasEstimate); err == nil {
			network = cost.StringFixed(6)
		}

		line := fmt.Sprintf("%-18s %20s %10d %16s %8s %9s",
			o.Adapter, asset.FromRaw(req.TokenOut, r.AmountOut).ToDecimal().StringFixed(6),
			r.GasEstimate, network, fee, impact)
		if snap.Best != nil && snap.Best.Protocol == r.Protocol {
			best.Fprintln(w, line+"  ★ best")
			continue
		}
		fmt.Fprintln(w, line)
	}

	if snap.Best == nil {
		return
	}
	d := domain.FormatQuote(req, *snap.Best)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s %s\n", muted.Sprint("min out:"), d.MinAmountOutFmt, req.TokenOut.Symbol())
	if d.EffectivePrice != "" {
		fmt.Fprintf(w, "%s 1 %s = %s %s\n", muted.Sprint("price:  "), req.TokenIn.Symbol(), d.EffectivePrice, req.TokenOut.Symbol())
		fmt.Fprintf(w, "%s 1 %s = %s %s\n", muted.Sprint("        "), req.TokenOut.Symbol(), d.InversePrice, req.TokenIn.Symbol())
	}
}

func printExecution(w io.Writer, p domain.SwapExecutionParams) {
	fmt.Fprintln(w)
	color.New(color.FgCyan, color.Bold).Fprintln(w, "Transaction")
	fmt.Fprintf(w, "  to:    %s\n", p.To.Hex())
	fmt.Fprintf(w, "  value: %s\n", p.ValueInt().String())
	fmt.Fprintf(w, "  gas:   %d\n", p.GasLimit)
	fmt.Fprintf(w, "  data:  %s\n", p.Data.String())
}
