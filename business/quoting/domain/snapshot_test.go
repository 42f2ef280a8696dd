package domain

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/swap-quoter/internal/apperror"
)

func quote(protocol string, out int64, gas uint64) QuoteResult {
	return QuoteResult{AmountOut: big.NewInt(out), GasEstimate: gas, Protocol: protocol}
}

func TestPickBest_TieBreaks(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []SourceOutcome
		want     string
	}{
		{
			name: "greatest output wins",
			outcomes: []SourceOutcome{
				Success("a", quote("a", 100, 1)),
				Success("b", quote("b", 101, 900)),
			},
			want: "b",
		},
		{
			name: "equal output prefers lower gas",
			outcomes: []SourceOutcome{
				Success("a", quote("a", 100, 200)),
				Success("b", quote("b", 100, 150)),
			},
			want: "b",
		},
		{
			name: "full tie keeps registration order",
			outcomes: []SourceOutcome{
				Success("a", quote("a", 100, 150)),
				Success("b", quote("b", 100, 150)),
				Success("c", quote("c", 100, 150)),
			},
			want: "a",
		},
		{
			name: "failures are skipped",
			outcomes: []SourceOutcome{
				Failure("a", errors.New("boom")),
				Success("b", quote("b", 5, 1)),
			},
			want: "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best, ok := PickBest(tt.outcomes)
			require.True(t, ok)
			assert.Equal(t, tt.want, best.Protocol)
		})
	}
}

func TestNewSnapshot_NoSuccess(t *testing.T) {
	snap := NewSnapshot(1, "k", []SourceOutcome{
		Failure("a", apperror.New(apperror.CodeNoRoute)),
		Failure("b", apperror.Upstream(500, "oops")),
	}, time.Now())

	assert.False(t, snap.HasSuccess())
	assert.Nil(t, snap.Best)
	require.Len(t, snap.Failures(), 2)
	assert.Equal(t, apperror.CodeNoRoute, snap.Failures()[0].Code())
	assert.Equal(t, apperror.CodeUpstreamError, snap.Failures()[1].Code())
	assert.Contains(t, snap.Failures()[1].Message(), "oops")
}

func TestSnapshot_OutcomesAreIsolatedFromCaller(t *testing.T) {
	outcomes := []SourceOutcome{Success("a", quote("a", 10, 1))}
	snap := NewSnapshot(1, "k", outcomes, time.Now())

	outcomes[0] = Failure("a", errors.New("changed"))
	assert.True(t, snap.Outcomes[0].IsSuccess())

	r, _ := snap.SuccessFor("a")
	r.AmountOut.SetInt64(0)
	again, _ := snap.SuccessFor("a")
	assert.Equal(t, int64(10), again.AmountOut.Int64())
}

func TestSnapshot_WithRoundIsANewAnswer(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	snap := NewSnapshot(3, "k", []SourceOutcome{Success("a", quote("a", 10, 1))}, at)

	again := snap.WithRound(7)
	assert.Equal(t, uint64(7), again.Round)
	assert.NotEqual(t, snap.RequestID, again.RequestID)
	assert.Equal(t, "k", again.RequestKey)
	assert.Equal(t, at, again.Timestamp)
	require.NotNil(t, again.Best)

	again.Best.AmountOut.SetInt64(0)
	assert.Equal(t, uint64(3), snap.Round)
	assert.Equal(t, int64(10), snap.Best.AmountOut.Int64())
}

func TestSelection_FallsBackWhenUserPickDisappears(t *testing.T) {
	first := NewSnapshot(1, "k", []SourceOutcome{
		Success("v3", quote("v3", 300, 1)),
		Success("v2", quote("v2", 295, 1)),
	}, time.Now())

	sel := SelectionState{}.Reconcile(first)
	require.NotNil(t, sel.Effective())
	assert.Equal(t, "v3", sel.Effective().Protocol)

	v2, ok := first.SuccessFor("v2")
	require.True(t, ok)
	sel.UserSelected = &v2
	assert.Equal(t, "v2", sel.Effective().Protocol)

	// v2 still live: the pick follows the fresh result
	second := NewSnapshot(2, "k", []SourceOutcome{
		Success("v3", quote("v3", 310, 1)),
		Success("v2", quote("v2", 296, 1)),
	}, time.Now())
	sel = sel.Reconcile(second)
	require.True(t, sel.IsUserOverride())
	assert.Equal(t, int64(296), sel.Effective().AmountOut.Int64())

	// v2 gone: fall back to the new best
	third := NewSnapshot(3, "k", []SourceOutcome{
		Success("v3", quote("v3", 305, 1)),
		Failure("v2", apperror.New(apperror.CodeNoRoute)),
	}, time.Now())
	sel = sel.Reconcile(third)
	assert.False(t, sel.IsUserOverride())
	assert.Equal(t, "v3", sel.Effective().Protocol)
	assert.Equal(t, int64(305), sel.Effective().AmountOut.Int64())
}

func TestSnapshot_JSONKeepsOutcomes(t *testing.T) {
	impact := decimal.NewNullDecimal(decimal.RequireFromString("0.0012"))
	snap := NewSnapshot(7, "key", []SourceOutcome{
		Success("v3", QuoteResult{AmountOut: big.NewInt(42), GasEstimate: 9, Protocol: "v3", FeeTier: FeeTierMedium, PriceImpact: impact, Route: []string{"USDC", "WETH"}}),
		Failure("1inch", apperror.Upstream(429, "slow down")),
	}, time.Unix(1_700_000_000, 0).UTC())

	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded AggregationSnapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, snap.RequestID, decoded.RequestID)
	require.Len(t, decoded.Outcomes, 2)

	r, ok := decoded.SuccessFor("v3")
	require.True(t, ok)
	assert.Equal(t, int64(42), r.AmountOut.Int64())
	assert.Equal(t, FeeTierMedium, r.FeeTier)
	assert.True(t, r.PriceImpact.Valid)
	assert.True(t, r.PriceImpact.Decimal.Equal(impact.Decimal))

	assert.Equal(t, apperror.CodeUpstreamError, decoded.Outcomes[1].Code())
	require.NotNil(t, decoded.Best)
	assert.Equal(t, "v3", decoded.Best.Protocol)
}

func TestFeeTier_Display(t *testing.T) {
	assert.Equal(t, "0.05%", FeeTierLow.String())
	assert.Equal(t, "0.3%", FeeTierMedium.String())
	assert.Equal(t, "1%", FeeTierHigh.String())
	assert.Equal(t, "-", FeeTierNone.String())
	assert.True(t, FeeTierMedium.Fraction().Equal(decimal.RequireFromString("0.003")))
}
