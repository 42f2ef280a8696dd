// Package domain contains the core domain types for the chain context.
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Block is a chain head as seen by the head watcher.
type Block struct {
	ChainID   uint64
	Number    uint64
	Hash      common.Hash
	Timestamp time.Time
	BaseFee   *big.Int
}

// HeadMode tells how heads are being observed.
type HeadMode string

const (
	HeadModeSubscription HeadMode = "subscription"
	HeadModePolling      HeadMode = "polling"
)
