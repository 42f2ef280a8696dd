// Package di contains dependency injection tokens for the quoting context.
package di

import (
	"github.com/fd1az/swap-quoter/business/quoting/app"
	"github.com/fd1az/swap-quoter/business/quoting/infra/evm"
	"github.com/fd1az/swap-quoter/internal/di"
)

// Public service tokens - exposed to other modules
var (
	QuoteService   = di.NewToken[*app.QuoteService]("quoting.QuoteService")
	BlockRefresher = di.NewToken[*app.BlockRefresher]("quoting.BlockRefresher")
	SnapshotStore  = di.NewToken[app.SnapshotStore]("quoting.SnapshotStore")
)

// Private dependency tokens - internal to quoting module
var (
	Adapters         = di.NewToken[[]app.Adapter]("quoting:adapters")
	Coordinator      = di.NewToken[*app.Coordinator]("quoting:coordinator")
	ExecutionBuilder = di.NewToken[*app.ExecutionBuilder]("quoting:executionBuilder")
	TokenReader      = di.NewToken[*evm.TokenReader]("quoting:tokenReader")
)

func GetQuoteService(c di.ServiceRegistry) *app.QuoteService {
	return di.GetToken(c, QuoteService)
}

func GetBlockRefresher(c di.ServiceRegistry) *app.BlockRefresher {
	return di.GetToken(c, BlockRefresher)
}

func GetSnapshotStore(c di.ServiceRegistry) app.SnapshotStore {
	return di.GetToken(c, SnapshotStore)
}

func GetAdapters(c di.ServiceRegistry) []app.Adapter {
	return di.GetToken(c, Adapters)
}

func GetCoordinator(c di.ServiceRegistry) *app.Coordinator {
	return di.GetToken(c, Coordinator)
}

func GetExecutionBuilder(c di.ServiceRegistry) *app.ExecutionBuilder {
	return di.GetToken(c, ExecutionBuilder)
}

func GetTokenReader(c di.ServiceRegistry) *evm.TokenReader {
	return di.GetToken(c, TokenReader)
}
