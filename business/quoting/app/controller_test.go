package app

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/asset"
)

const waitFor = 2 * time.Second

// gatedAggregator blocks every round until the test releases it.
type gatedAggregator struct {
	gate chan struct{}
	next Aggregator

	mu   sync.Mutex
	reqs []domain.QuoteRequest
}

func (g *gatedAggregator) Aggregate(ctx context.Context, req domain.QuoteRequest) (*domain.AggregationSnapshot, error) {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()
	if g.gate != nil {
		<-g.gate
	}
	return g.next.Aggregate(ctx, req)
}

func (g *gatedAggregator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.reqs)
}

func intentFor(amount int64) Intent {
	return Intent{
		TokenIn:  asset.USDC,
		TokenOut: asset.WETH,
		AmountIn: big.NewInt(amount),
		Slippage: decimal.RequireFromString("0.005"),
	}
}

func snapshotOf(req domain.QuoteRequest, outcomes ...domain.SourceOutcome) *domain.AggregationSnapshot {
	return domain.NewSnapshot(1, req.Key(), outcomes, time.Now())
}

func success(protocol string, out int64) domain.SourceOutcome {
	return domain.Success(protocol, domain.QuoteResult{AmountOut: big.NewInt(out), Protocol: protocol})
}

func TestController_DebounceCoalescesInput(t *testing.T) {
	adapter := &fakeAdapter{name: "uniswap-v3", outFor: func(req domain.QuoteRequest) int64 {
		return req.AmountIn.Int64() * 2
	}}
	coord := newTestCoordinator(t, DefaultCoordinatorConfig(), adapter)
	agg := &gatedAggregator{next: coord}

	c := NewController(agg, nil, WithDebounce(30*time.Millisecond), WithLogger(testLogger()))
	defer c.Close()

	c.SetIntent(intentFor(1))
	c.SetIntent(intentFor(12))
	c.SetIntent(intentFor(123))
	assert.Equal(t, StateDebouncing, c.View().State)

	require.Eventually(t, func() bool { return c.View().State == StateReady }, waitFor, 5*time.Millisecond)

	assert.Equal(t, 1, agg.calls())
	v := c.View()
	require.NotNil(t, v.Best)
	assert.Equal(t, int64(246), v.Best.AmountOut.Int64())
	assert.Equal(t, "uniswap-v3", v.Selected.Protocol)
	assert.False(t, v.UserPick)
}

func TestController_IncompleteIntentClearsSynchronously(t *testing.T) {
	coord := newTestCoordinator(t, DefaultCoordinatorConfig(), &fakeAdapter{name: "a", out: 5})
	c := NewController(coord, nil, WithDebounce(10*time.Millisecond))
	defer c.Close()

	c.SetIntent(intentFor(100))
	require.Eventually(t, func() bool { return c.View().State == StateReady }, waitFor, 5*time.Millisecond)
	require.NoError(t, c.Select("a"))

	c.SetIntent(intentFor(0))

	v := c.View()
	assert.Equal(t, StateIdle, v.State)
	assert.Nil(t, v.Snapshot)
	assert.Nil(t, v.Best)
	assert.Nil(t, v.Selected)
	assert.NoError(t, v.Err)
	assert.Empty(t, v.AmountOut)

	missingToken := intentFor(100)
	missingToken.TokenOut = nil
	c.SetIntent(missingToken)
	assert.Equal(t, StateIdle, c.View().State)
}

func TestController_DiscardsStaleRounds(t *testing.T) {
	c := NewController(&gatedAggregator{}, nil, WithDebounce(time.Hour))
	defer c.Close()

	oldReq := intentFor(100).Request()
	newReq := intentFor(200).Request()

	c.SetIntent(intentFor(200))

	// round for input the user already replaced
	c.complete(1, oldReq, snapshotOf(oldReq, success("a", 1)), nil)
	assert.Nil(t, c.View().Snapshot)

	c.complete(3, newReq, snapshotOf(newReq, success("a", 2)), nil)
	require.NotNil(t, c.View().Snapshot)
	assert.Equal(t, int64(2), c.View().Best.AmountOut.Int64())

	// older sequence arriving late
	c.complete(2, newReq, snapshotOf(newReq, success("a", 999)), nil)
	assert.Equal(t, int64(2), c.View().Best.AmountOut.Int64())

	// nothing applies while idle
	c.SetIntent(Intent{})
	c.complete(4, newReq, snapshotOf(newReq, success("a", 5)), nil)
	assert.Nil(t, c.View().Snapshot)
}

func TestController_SupersededRoundIsDiscardedNotCancelled(t *testing.T) {
	adapter := &fakeAdapter{name: "a", outFor: func(req domain.QuoteRequest) int64 { return req.AmountIn.Int64() }}
	coord := newTestCoordinator(t, DefaultCoordinatorConfig(), adapter)
	agg := &gatedAggregator{gate: make(chan struct{}), next: coord}

	c := NewController(agg, nil, WithDebounce(10*time.Millisecond))
	defer c.Close()

	c.SetIntent(intentFor(100))
	require.Eventually(t, func() bool { return agg.calls() == 1 }, waitFor, 5*time.Millisecond)

	c.SetIntent(intentFor(200))
	require.Eventually(t, func() bool { return c.View().State == StateFetching }, waitFor, 5*time.Millisecond)
	assert.Equal(t, 1, agg.calls(), "second round waits for the first")

	agg.gate <- struct{}{}
	require.Eventually(t, func() bool { return agg.calls() == 2 }, waitFor, 5*time.Millisecond)
	assert.Nil(t, c.View().Snapshot, "result for 100 must not be shown for 200")

	agg.gate <- struct{}{}
	require.Eventually(t, func() bool { return c.View().State == StateReady }, waitFor, 5*time.Millisecond)
	assert.Equal(t, int64(200), c.View().Best.AmountOut.Int64())
	assert.Equal(t, intentFor(200).Request().Key(), c.View().Snapshot.RequestKey)
}

func TestController_RefreshWhileFetchingRunsOnceMore(t *testing.T) {
	coord := newTestCoordinator(t, DefaultCoordinatorConfig(), &fakeAdapter{name: "a", out: 5})
	agg := &gatedAggregator{gate: make(chan struct{}), next: coord}

	c := NewController(agg, nil, WithDebounce(10*time.Millisecond))
	defer c.Close()

	c.SetIntent(intentFor(100))
	require.Eventually(t, func() bool { return agg.calls() == 1 }, waitFor, 5*time.Millisecond)

	c.Refresh()
	c.Refresh()

	agg.gate <- struct{}{}
	require.Eventually(t, func() bool { return agg.calls() == 2 }, waitFor, 5*time.Millisecond)
	agg.gate <- struct{}{}
	require.Eventually(t, func() bool { return c.View().State == StateReady }, waitFor, 5*time.Millisecond)
	assert.Equal(t, 2, agg.calls())
}

func TestController_RefreshBypassesSnapshotCache(t *testing.T) {
	adapter := &fakeAdapter{name: "a", out: 5}
	coord := newTestCoordinator(t, DefaultCoordinatorConfig(), adapter)
	agg := NewCachedAggregator(coord, &mapStore{}, time.Minute, testLogger())

	c := NewController(agg, nil, WithDebounce(10*time.Millisecond))
	defer c.Close()

	roundIs := func(n uint64) func() bool {
		return func() bool {
			v := c.View()
			return v.State == StateReady && v.Snapshot != nil && v.Snapshot.Round == n
		}
	}

	c.SetIntent(intentFor(100))
	require.Eventually(t, roundIs(1), waitFor, 5*time.Millisecond)
	assert.Equal(t, int32(1), adapter.calls.Load())

	c.Refresh()
	require.Eventually(t, roundIs(2), waitFor, 5*time.Millisecond)
	assert.Equal(t, int32(2), adapter.calls.Load())

	// debounced input for the same request is still served from the cache
	c.SetIntent(intentFor(100))
	require.Eventually(t, roundIs(3), waitFor, 5*time.Millisecond)
	assert.Equal(t, int32(2), adapter.calls.Load())
}

func TestController_SelectionFallsBackWhenSourceDisappears(t *testing.T) {
	c := NewController(&gatedAggregator{}, nil, WithDebounce(time.Hour))
	defer c.Close()

	req := intentFor(100).Request()
	c.SetIntent(intentFor(100))
	c.complete(1, req, snapshotOf(req, success("a", 100), success("b", 90)), nil)

	require.NoError(t, c.Select("b"))
	v := c.View()
	assert.True(t, v.UserPick)
	assert.Equal(t, "b", v.Selected.Protocol)
	assert.Equal(t, "a", v.Best.Protocol)

	// pick follows the fresh result
	c.complete(2, req, snapshotOf(req, success("a", 100), success("b", 95)), nil)
	assert.Equal(t, int64(95), c.View().Selected.AmountOut.Int64())

	c.complete(3, req, snapshotOf(req,
		success("a", 100),
		domain.Failure("b", apperror.New(apperror.CodeNoPoolFound)),
	), nil)
	v = c.View()
	assert.False(t, v.UserPick)
	assert.Equal(t, "a", v.Selected.Protocol)

	err := c.Select("b")
	assert.Equal(t, apperror.CodeNotFound, apperror.GetCode(err))

	require.NoError(t, c.Select("a"))
	c.ClearSelection()
	assert.False(t, c.View().UserPick)
}

func TestController_FailedRoundKeepsDiagnostics(t *testing.T) {
	coord := newTestCoordinator(t, DefaultCoordinatorConfig(),
		&fakeAdapter{name: "a", err: apperror.New(apperror.CodeNoPoolFound)})
	c := NewController(coord, nil, WithDebounce(10*time.Millisecond))
	defer c.Close()

	c.SetIntent(intentFor(100))
	require.Eventually(t, func() bool { return c.View().State == StateFailed }, waitFor, 5*time.Millisecond)

	v := c.View()
	assert.Equal(t, apperror.CodeNoQuoteAvailable, apperror.GetCode(v.Err))
	require.NotNil(t, v.Snapshot)
	assert.Len(t, v.Snapshot.Failures(), 1)
	assert.Nil(t, v.Selected)
}

func TestController_ViewFormatsAmountOut(t *testing.T) {
	var seen atomic.Int32
	c := NewController(&gatedAggregator{}, nil,
		WithDebounce(time.Hour),
		WithListener(func(View) { seen.Add(1) }),
	)
	defer c.Close()

	in := intentFor(1_000_000) // 1 USDC
	c.SetIntent(in)
	req := in.Request()
	c.complete(1, req, snapshotOf(req, success("a", 300_000_000_000_000)), nil)

	v := c.View()
	assert.Equal(t, "0.000300", v.AmountOut)
	require.NotNil(t, v.Display)
	assert.Equal(t, "3333.333333", v.Display.InversePrice)
	assert.Equal(t, int32(2), seen.Load())

	before := c.View().Version
	_ = c.View()
	assert.Equal(t, before, c.View().Version, "reading does not bump the version")
}

func TestController_BuildExecution(t *testing.T) {
	adapter := &fakeAdapter{name: "a", out: 1_000_000}
	builder := NewExecutionBuilder([]Adapter{adapter}, testLogger())
	c := NewController(&gatedAggregator{}, builder, WithDebounce(time.Hour))
	defer c.Close()

	in := intentFor(100)
	c.SetIntent(in)
	req := in.Request()
	c.complete(1, req, snapshotOf(req, success("a", 1_000_000)), nil)

	params, err := c.BuildExecution(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(995_000).Bytes(), []byte(params.Data))

	// slippage is re-applied at build time
	looser := in
	looser.Slippage = decimal.RequireFromString("0.01")
	c.SetIntent(looser)
	params, err = c.BuildExecution(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(990_000).Bytes(), []byte(params.Data))

	// a different amount was never priced
	c.SetIntent(intentFor(101))
	_, err = c.BuildExecution(context.Background(), "a")
	assert.Equal(t, apperror.CodeStaleQuote, apperror.GetCode(err))
}
