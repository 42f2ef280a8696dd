package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/asset"
)

func newTestCoordinator(t *testing.T, cfg CoordinatorConfig, adapters ...Adapter) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(adapters, cfg, testLogger())
	require.NoError(t, err)
	return c
}

func TestNewCoordinator_RejectsBadAdapterSets(t *testing.T) {
	_, err := NewCoordinator(nil, DefaultCoordinatorConfig(), testLogger())
	assert.Equal(t, apperror.CodeConfigurationError, apperror.GetCode(err))

	a := &fakeAdapter{name: "uniswap-v3"}
	b := &fakeAdapter{name: "uniswap-v3"}
	_, err = NewCoordinator([]Adapter{a, b}, DefaultCoordinatorConfig(), testLogger())
	assert.Equal(t, apperror.CodeConfigurationError, apperror.GetCode(err))
}

func TestAggregate_OutcomesFollowRegistrationOrder(t *testing.T) {
	// completion order is the reverse of registration order
	slow := &fakeAdapter{name: "slow", out: 10, delay: 60 * time.Millisecond}
	mid := &fakeAdapter{name: "mid", err: errors.New("boom"), delay: 30 * time.Millisecond}
	fast := &fakeAdapter{name: "fast", out: 20}

	c := newTestCoordinator(t, DefaultCoordinatorConfig(), slow, mid, fast)
	snap, err := c.Aggregate(context.Background(), usdcToWeth(1_000_000))
	require.NoError(t, err)

	require.Len(t, snap.Outcomes, 3)
	assert.Equal(t, "slow", snap.Outcomes[0].Adapter)
	assert.Equal(t, "mid", snap.Outcomes[1].Adapter)
	assert.Equal(t, "fast", snap.Outcomes[2].Adapter)
	assert.True(t, snap.Outcomes[0].IsSuccess())
	assert.False(t, snap.Outcomes[1].IsSuccess())
	assert.True(t, snap.Outcomes[2].IsSuccess())
	assert.Equal(t, "fast", snap.Best.Protocol)
}

func TestAggregate_BestTieBreaks(t *testing.T) {
	tests := []struct {
		name     string
		adapters []Adapter
		want     string
	}{
		{
			name: "greatest output",
			adapters: []Adapter{
				&fakeAdapter{name: "a", out: 100, gas: 10},
				&fakeAdapter{name: "b", out: 200, gas: 900},
			},
			want: "b",
		},
		{
			name: "equal output lower gas",
			adapters: []Adapter{
				&fakeAdapter{name: "a", out: 100, gas: 300},
				&fakeAdapter{name: "b", out: 100, gas: 200},
			},
			want: "b",
		},
		{
			name: "full tie keeps registration order",
			adapters: []Adapter{
				&fakeAdapter{name: "a", out: 100, gas: 200},
				&fakeAdapter{name: "b", out: 100, gas: 200},
			},
			want: "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCoordinator(t, DefaultCoordinatorConfig(), tt.adapters...)
			snap, err := c.Aggregate(context.Background(), usdcToWeth(1_000_000))
			require.NoError(t, err)
			assert.Equal(t, tt.want, snap.Best.Protocol)
		})
	}
}

func TestAggregate_NoQuoteAvailableKeepsFailures(t *testing.T) {
	c := newTestCoordinator(t, DefaultCoordinatorConfig(),
		&fakeAdapter{name: "v3", err: apperror.New(apperror.CodeNoPoolFound)},
		&fakeAdapter{name: "v2", err: apperror.New(apperror.CodeNoRoute)},
	)

	snap, err := c.Aggregate(context.Background(), usdcToWeth(1_000_000))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeNoQuoteAvailable, apperror.GetCode(err))

	require.NotNil(t, snap)
	assert.Nil(t, snap.Best)
	require.Len(t, snap.Failures(), 2)
	assert.Equal(t, apperror.CodeNoPoolFound, snap.Outcomes[0].Code())
	assert.Equal(t, apperror.CodeNoRoute, snap.Outcomes[1].Code())
}

func TestAggregate_SourceTimeout(t *testing.T) {
	cfg := CoordinatorConfig{
		RoundTimeout:   time.Second,
		DefaultTimeout: time.Second,
		Timeouts:       map[string]time.Duration{"slow": 20 * time.Millisecond},
	}
	c := newTestCoordinator(t, cfg,
		&fakeAdapter{name: "slow", out: 999, delay: 500 * time.Millisecond},
		&fakeAdapter{name: "ok", out: 5},
	)

	snap, err := c.Aggregate(context.Background(), usdcToWeth(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, apperror.CodeSourceTimeout, snap.Outcomes[0].Code())
	assert.Equal(t, "ok", snap.Best.Protocol)
}

func TestAggregate_WrappedClientTimeoutIsSourceTimeout(t *testing.T) {
	clientTimeout := apperror.External(apperror.CodeExternalServiceError, "1inch quote",
		fmt.Errorf("Get \"https://api.1inch.dev\": %w", context.DeadlineExceeded))
	c := newTestCoordinator(t, DefaultCoordinatorConfig(),
		&fakeAdapter{name: "oneinch", err: clientTimeout},
		&fakeAdapter{name: "broken", err: apperror.Upstream(502, "bad gateway")},
	)

	snap, err := c.Aggregate(context.Background(), usdcToWeth(1_000_000))
	require.ErrorIs(t, err, apperror.New(apperror.CodeNoQuoteAvailable))
	require.NotNil(t, snap)
	assert.Equal(t, apperror.CodeSourceTimeout, snap.Outcomes[0].Code())
	assert.Equal(t, apperror.CodeUpstreamError, snap.Outcomes[1].Code())
}

func TestAggregate_RoundTimeoutSettlesHungSources(t *testing.T) {
	cfg := CoordinatorConfig{
		RoundTimeout:   40 * time.Millisecond,
		DefaultTimeout: time.Second,
	}
	c := newTestCoordinator(t, cfg,
		&fakeAdapter{name: "ok", out: 5},
		&fakeAdapter{name: "hung", out: 999, delay: 300 * time.Millisecond, ignoreCtx: true},
	)

	start := time.Now()
	snap, err := c.Aggregate(context.Background(), usdcToWeth(1_000_000))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
	assert.True(t, snap.Outcomes[0].IsSuccess())
	assert.Equal(t, apperror.CodeSourceTimeout, snap.Outcomes[1].Code())
}

func TestAggregate_PanicBecomesFailure(t *testing.T) {
	c := newTestCoordinator(t, DefaultCoordinatorConfig(),
		&fakeAdapter{name: "bad", panics: true},
		&fakeAdapter{name: "good", out: 7},
	)

	snap, err := c.Aggregate(context.Background(), usdcToWeth(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, apperror.CodeSourcePanic, snap.Outcomes[0].Code())
	assert.Equal(t, "good", snap.Best.Protocol)
}

func TestAggregate_ValidationFailureStaysLocal(t *testing.T) {
	c := newTestCoordinator(t, DefaultCoordinatorConfig(),
		&fakeAdapter{name: "bsc-only", out: 50, chains: []uint64{asset.ChainIDBSC}},
		&fakeAdapter{name: "eth", out: 5},
	)

	snap, err := c.Aggregate(context.Background(), usdcToWeth(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, apperror.CodeUnsupportedChain, snap.Outcomes[0].Code())
	assert.Equal(t, "eth", snap.Best.Protocol)
}

func TestAggregate_ZeroOutputIsNoRoute(t *testing.T) {
	c := newTestCoordinator(t, DefaultCoordinatorConfig(),
		&fakeAdapter{name: "empty", out: 0},
		&fakeAdapter{name: "ok", out: 1},
	)

	snap, err := c.Aggregate(context.Background(), usdcToWeth(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, apperror.CodeNoRoute, snap.Outcomes[0].Code())
}

func TestAggregate_ProtocolFollowsAdapterName(t *testing.T) {
	a := &fakeAdapter{name: "uniswap-v2", out: 9}
	c := newTestCoordinator(t, DefaultCoordinatorConfig(), a)

	snap, err := c.Aggregate(context.Background(), usdcToWeth(1_000_000))
	require.NoError(t, err)
	r, ok := snap.SuccessFor("uniswap-v2")
	require.True(t, ok)
	assert.Equal(t, "uniswap-v2", r.Protocol)
}

func TestAggregate_Idempotent(t *testing.T) {
	c := newTestCoordinator(t, DefaultCoordinatorConfig(),
		&fakeAdapter{name: "a", out: 100, gas: 1},
		&fakeAdapter{name: "b", err: apperror.New(apperror.CodeNoPoolFound)},
		&fakeAdapter{name: "c", out: 100, gas: 1},
	)
	req := usdcToWeth(1_000_000)

	first, err := c.Aggregate(context.Background(), req)
	require.NoError(t, err)
	second, err := c.Aggregate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.RequestKey, second.RequestKey)
	assert.Equal(t, first.Best, second.Best)
	require.Len(t, second.Outcomes, len(first.Outcomes))
	for i := range first.Outcomes {
		assert.Equal(t, first.Outcomes[i].Adapter, second.Outcomes[i].Adapter)
		assert.Equal(t, first.Outcomes[i].Kind(), second.Outcomes[i].Kind())
		assert.Equal(t, first.Outcomes[i].Code(), second.Outcomes[i].Code())
	}
	assert.Greater(t, second.Round, first.Round)
}

func TestAllQuotes_ReturnsEveryOutcome(t *testing.T) {
	c := newTestCoordinator(t, DefaultCoordinatorConfig(),
		&fakeAdapter{name: "a", err: errors.New("down")},
		&fakeAdapter{name: "b", err: errors.New("down")},
	)

	outcomes := c.AllQuotes(context.Background(), usdcToWeth(1_000_000))
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, domain.OutcomeFailure, o.Kind())
	}
}
