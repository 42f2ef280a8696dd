// Package di contains dependency injection tokens for the chain context.
package di

import (
	"github.com/fd1az/swap-quoter/business/chain/app"
	"github.com/fd1az/swap-quoter/business/chain/infra/ethereum"
	"github.com/fd1az/swap-quoter/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ChainService = di.NewToken[*app.ChainService]("chain.ChainService")
	Clients      = di.NewToken[*ethereum.Clients]("chain.Clients")
)

// Private dependency tokens - internal to chain module
var (
	GasOracle   = di.NewToken[*ethereum.GasOracle]("chain:gasOracle")
	HeadWatcher = di.NewToken[*ethereum.HeadWatcher]("chain:headWatcher")
)

func GetChainService(c di.ServiceRegistry) *app.ChainService {
	return di.GetToken(c, ChainService)
}

func GetClients(c di.ServiceRegistry) *ethereum.Clients {
	return di.GetToken(c, Clients)
}

func GetGasOracle(c di.ServiceRegistry) *ethereum.GasOracle {
	return di.GetToken(c, GasOracle)
}

func GetHeadWatcher(c di.ServiceRegistry) *ethereum.HeadWatcher {
	return di.GetToken(c, HeadWatcher)
}
