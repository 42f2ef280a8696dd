package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fd1az/swap-quoter/business/chain"
	"github.com/fd1az/swap-quoter/business/quoting"
	"github.com/fd1az/swap-quoter/internal/config"
	"github.com/fd1az/swap-quoter/internal/logger"
	"github.com/fd1az/swap-quoter/internal/monolith"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "quoter",
		Short: "Multi-source swap quote aggregator for EVM chains",
		Long: `quoter asks every configured liquidity source for a price on the same trade,
keeps the best one and builds the calldata to execute it.

Examples:
  quoter quote --in USDC --out WETH --amount 1000
  quoter quote --chain 8453 --in ETH --out USDC --amount 0.5 --build --recipient 0x...
  quoter watch --in WETH --out USDC --amount 1
  quoter serve`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override app.log_level (debug, info, warn, error)")

	cmd.AddCommand(
		newQuoteCmd(&flags),
		newWatchCmd(&flags),
		newServeCmd(&flags),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quoter %s (commit: %s, built: %s)\n", version, commit, buildDate)
		},
	}
}

// bootstrap loads configuration and starts every module. Logs go to logOut.
func bootstrap(ctx context.Context, flags *rootFlags, logOut io.Writer) (*monolith.App, error) {
	cfg, log, err := loadConfig(flags, logOut)
	if err != nil {
		return nil, err
	}
	return start(ctx, cfg, log)
}

func loadConfig(flags *rootFlags, logOut io.Writer) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.App.LogLevel
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	return cfg, logger.New(logOut, logger.ParseLevel(level), cfg.App.Name, nil), nil
}

func start(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (*monolith.App, error) {
	mono := monolith.New(cfg, log)

	// chain provides the clients and heads quoting depends on
	if err := mono.Start(ctx, &chain.Module{}, &quoting.Module{}); err != nil {
		return nil, err
	}
	return mono, nil
}
