package app

import (
	"context"
	"sync"

	"github.com/fd1az/swap-quoter/internal/logger"
)

// BlockRefresher re-quotes tracked controllers whenever their chain produces
// a new block.
type BlockRefresher struct {
	logger logger.LoggerInterface

	mu          sync.Mutex
	controllers map[*Controller]struct{}
}

// NewBlockRefresher creates an empty refresher.
func NewBlockRefresher(log logger.LoggerInterface) *BlockRefresher {
	return &BlockRefresher{
		logger:      log,
		controllers: make(map[*Controller]struct{}),
	}
}

// Track registers c and returns the function that unregisters it.
func (r *BlockRefresher) Track(c *Controller) func() {
	r.mu.Lock()
	r.controllers[c] = struct{}{}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.controllers, c)
		r.mu.Unlock()
	}
}

// Len reports the number of tracked controllers.
func (r *BlockRefresher) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

// OnHead refreshes every controller quoting on chainID and returns how many
// were refreshed.
func (r *BlockRefresher) OnHead(chainID uint64) int {
	r.mu.Lock()
	targets := make([]*Controller, 0, len(r.controllers))
	for c := range r.controllers {
		targets = append(targets, c)
	}
	r.mu.Unlock()

	n := 0
	for _, c := range targets {
		if c.ChainID() != chainID {
			continue
		}
		c.Refresh()
		n++
	}
	if n > 0 && r.logger != nil {
		r.logger.Debug(context.Background(), "refreshed quotes on new head", "chain_id", chainID, "sessions", n)
	}
	return n
}
