package app

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/asset"
	"github.com/fd1az/swap-quoter/internal/logger"
)

// DefaultDebounce is the quiet period after the last input change.
const DefaultDebounce = 500 * time.Millisecond

// State is the controller's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateFetching
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDebouncing:
		return "debouncing"
	case StateFetching:
		return "fetching"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Intent is what the user currently wants to swap. Fields may be partial
// while the user is still typing.
type Intent struct {
	TokenIn   *asset.Asset
	TokenOut  *asset.Asset
	AmountIn  *big.Int
	Slippage  decimal.Decimal
	Recipient *common.Address
	Deadline  *time.Time
}

// Complete reports whether the intent can be quoted.
func (i Intent) Complete() bool {
	return i.TokenIn != nil && i.TokenOut != nil && i.AmountIn != nil && i.AmountIn.Sign() > 0
}

// Request converts the intent into an immutable quote request.
func (i Intent) Request() domain.QuoteRequest {
	req := domain.QuoteRequest{
		TokenIn:   i.TokenIn,
		TokenOut:  i.TokenOut,
		Slippage:  i.Slippage,
		Recipient: i.Recipient,
		Deadline:  i.Deadline,
	}
	if i.AmountIn != nil {
		req.AmountIn = new(big.Int).Set(i.AmountIn)
	}
	return req
}

// View is an immutable copy of the controller state for rendering.
type View struct {
	Version   uint64
	State     State
	Intent    Intent
	Snapshot  *domain.AggregationSnapshot
	Best      *domain.QuoteResult
	Selected  *domain.QuoteResult
	UserPick  bool
	AmountOut string // effective quote, 6 decimal places
	Display   *domain.QuoteDisplay
	Err       error
}

// Option configures a Controller.
type Option func(*Controller)

// WithDebounce overrides the debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithListener registers a callback invoked after every state change.
func WithListener(fn func(View)) Option {
	return func(c *Controller) {
		c.listeners = append(c.listeners, fn)
	}
}

// WithLogger sets the controller logger.
func WithLogger(log logger.LoggerInterface) Option {
	return func(c *Controller) {
		c.logger = log
	}
}

// Controller debounces intent changes into aggregation rounds and keeps the
// latest applicable snapshot plus the user's selection. One round is in
// flight at most; rounds are never cancelled, late ones are discarded.
type Controller struct {
	aggregator Aggregator
	builder    *ExecutionBuilder
	debounce   time.Duration
	logger     logger.LoggerInterface
	listeners  []func(View)

	mu          sync.Mutex
	state       State
	intent      Intent
	key         string
	timer       *time.Timer
	timerGen    uint64
	seq         uint64
	lastApplied uint64
	inFlight    bool
	pending     bool
	refresh     bool // the pending round bypasses the snapshot cache
	snapshot    *domain.AggregationSnapshot
	snapReq     domain.QuoteRequest
	selection   domain.SelectionState
	err         error
	version     uint64
}

// NewController creates an idle controller. builder may be nil when the host
// never builds executions.
func NewController(aggregator Aggregator, builder *ExecutionBuilder, opts ...Option) *Controller {
	c := &Controller{
		aggregator: aggregator,
		builder:    builder,
		debounce:   DefaultDebounce,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetIntent records new input. Incomplete input clears everything right away;
// complete input re-arms the debounce timer.
func (c *Controller) SetIntent(in Intent) {
	c.mu.Lock()
	c.stopTimerLocked()
	c.intent = in

	if !in.Complete() {
		c.state = StateIdle
		c.key = ""
		c.pending = false
		c.refresh = false
		c.snapshot = nil
		c.snapReq = domain.QuoteRequest{}
		c.selection = domain.SelectionState{}
		c.err = nil
		v := c.publishLocked()
		c.mu.Unlock()
		c.notify(v)
		return
	}

	c.key = in.Request().Key()
	c.pending = false
	c.refresh = false
	c.state = StateDebouncing
	c.timerGen++
	gen := c.timerGen
	c.timer = time.AfterFunc(c.debounce, func() { c.fire(gen) })
	v := c.publishLocked()
	c.mu.Unlock()
	c.notify(v)
}

// Refresh re-quotes the current intent without waiting for the debounce.
func (c *Controller) Refresh() {
	c.mu.Lock()
	if !c.intent.Complete() || c.state == StateDebouncing {
		c.mu.Unlock()
		return
	}
	if c.inFlight {
		c.pending = true
		c.refresh = true
		c.mu.Unlock()
		return
	}
	c.startRoundLocked(true)
	v := c.publishLocked()
	c.mu.Unlock()
	c.notify(v)
}

// Select pins the quote of protocol until the user clears it or the protocol
// stops producing a quote.
func (c *Controller) Select(protocol string) error {
	c.mu.Lock()
	live, ok := c.snapshot.SuccessFor(protocol)
	if !ok {
		c.mu.Unlock()
		return apperror.NotFound(apperror.CodeNotFound, "no live quote from "+protocol)
	}
	c.selection.UserSelected = &live
	v := c.publishLocked()
	c.mu.Unlock()
	c.notify(v)
	return nil
}

// ClearSelection drops the user's pick and falls back to the best quote.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	c.selection.UserSelected = nil
	v := c.publishLocked()
	c.mu.Unlock()
	c.notify(v)
}

// BuildExecution encodes the swap for protocol against the latest snapshot
// and the current intent.
func (c *Controller) BuildExecution(ctx context.Context, protocol string) (domain.SwapExecutionParams, error) {
	c.mu.Lock()
	if c.builder == nil {
		c.mu.Unlock()
		return domain.SwapExecutionParams{}, apperror.New(apperror.CodeInvalidState,
			apperror.WithContext("controller has no execution builder"))
	}
	if !c.intent.Complete() || c.snapshot == nil {
		c.mu.Unlock()
		return domain.SwapExecutionParams{}, apperror.New(apperror.CodeStaleQuote,
			apperror.WithContext("no quote for the current input"))
	}
	req := c.intent.Request()
	snap := c.snapshot
	snapReq := c.snapReq
	c.mu.Unlock()

	// slippage, recipient and deadline may change; the priced trade may not
	if !sameTrade(req, snapReq) {
		return domain.SwapExecutionParams{}, apperror.New(apperror.CodeStaleQuote,
			apperror.WithContext("input changed since the last quote"))
	}
	return c.builder.Build(ctx, protocol, req, snap)
}

// View returns the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Close stops the debounce timer. An in-flight round finishes and is ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopTimerLocked()
	c.state = StateIdle
	c.key = ""
	c.pending = false
	c.refresh = false
	c.mu.Unlock()
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	// a stopped timer may already be waiting on the lock
	if gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if c.state != StateDebouncing {
		c.mu.Unlock()
		return
	}
	if c.inFlight {
		c.pending = true
		c.state = StateFetching
		v := c.publishLocked()
		c.mu.Unlock()
		c.notify(v)
		return
	}
	c.startRoundLocked(false)
	v := c.publishLocked()
	c.mu.Unlock()
	c.notify(v)
}

// startRoundLocked launches a round. Refresh rounds skip the snapshot cache.
func (c *Controller) startRoundLocked(fresh bool) {
	c.seq++
	c.inFlight = true
	c.pending = false
	c.refresh = false
	c.state = StateFetching
	go c.runRound(c.seq, c.intent.Request(), fresh)
}

func (c *Controller) runRound(seq uint64, req domain.QuoteRequest, fresh bool) {
	ctx := context.Background()
	if fresh {
		ctx = WithFreshQuotes(ctx)
	}
	snap, err := c.aggregator.Aggregate(ctx, req)
	c.complete(seq, req, snap, err)
}

// complete applies a finished round unless it is stale.
func (c *Controller) complete(seq uint64, req domain.QuoteRequest, snap *domain.AggregationSnapshot, err error) {
	c.mu.Lock()
	c.inFlight = false

	stale := seq < c.lastApplied || req.Key() != c.key || c.state == StateIdle
	changed := false
	if stale {
		if c.logger != nil {
			c.logger.Debug(context.Background(), "discarding stale round", "seq", seq, "last_applied", c.lastApplied)
		}
	} else {
		c.lastApplied = seq
		changed = true
		if snap != nil {
			c.snapshot = snap
			c.snapReq = req
			c.selection = c.selection.Reconcile(snap)
		} else {
			c.snapshot = nil
			c.snapReq = domain.QuoteRequest{}
			c.selection = domain.SelectionState{}
		}
		c.err = err
		if err != nil {
			c.state = StateFailed
		} else {
			c.state = StateReady
		}
		// a newer debounce is still running; let it decide
		if c.timer != nil {
			c.state = StateDebouncing
		}
	}

	if c.pending && c.state != StateDebouncing && c.state != StateIdle {
		c.startRoundLocked(c.refresh)
		changed = true
	}

	if !changed {
		c.mu.Unlock()
		return
	}
	v := c.publishLocked()
	c.mu.Unlock()
	c.notify(v)
}

func (c *Controller) stopTimerLocked() {
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// publishLocked bumps the version for a state change.
func (c *Controller) publishLocked() View {
	c.version++
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	v := View{
		Version:  c.version,
		State:    c.state,
		Intent:   c.intent,
		Snapshot: c.snapshot,
		UserPick: c.selection.IsUserOverride(),
		Err:      c.err,
	}
	if c.selection.AutoSelected != nil {
		b := c.selection.AutoSelected.Clone()
		v.Best = &b
	}
	if eff := c.selection.Effective(); eff != nil && c.snapReq.TokenOut != nil {
		sel := eff.Clone()
		v.Selected = &sel
		d := domain.FormatQuote(c.snapReq, sel)
		v.Display = &d
		v.AmountOut = d.AmountOut
	}
	return v
}

func (c *Controller) notify(v View) {
	for _, fn := range c.listeners {
		fn(v)
	}
}

func sameTrade(a, b domain.QuoteRequest) bool {
	if a.TokenIn == nil || b.TokenIn == nil || a.TokenOut == nil || b.TokenOut == nil {
		return false
	}
	if !a.TokenIn.Equals(b.TokenIn) || !a.TokenOut.Equals(b.TokenOut) {
		return false
	}
	return a.AmountIn != nil && b.AmountIn != nil && a.AmountIn.Cmp(b.AmountIn) == 0
}

// ChainID returns the chain of the current input, zero when unset.
func (c *Controller) ChainID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.intent.TokenIn == nil {
		return 0
	}
	return c.intent.TokenIn.ChainID()
}
