package domain

import (
	"time"

	"github.com/google/uuid"
)

// AggregationSnapshot is the complete result of one aggregation round.
// It is built once and never mutated; a newer round produces a new snapshot.
type AggregationSnapshot struct {
	RequestID  uuid.UUID       `json:"requestId"`
	Round      uint64          `json:"round"`
	RequestKey string          `json:"requestKey"`
	Outcomes   []SourceOutcome `json:"outcomes"`
	Best       *QuoteResult    `json:"best,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewSnapshot ranks outcomes, which must be in adapter registration order,
// and picks the best success.
func NewSnapshot(round uint64, requestKey string, outcomes []SourceOutcome, now time.Time) *AggregationSnapshot {
	snap := &AggregationSnapshot{
		RequestID:  uuid.New(),
		Round:      round,
		RequestKey: requestKey,
		Outcomes:   append([]SourceOutcome(nil), outcomes...),
		Timestamp:  now,
	}
	if best, ok := PickBest(outcomes); ok {
		snap.Best = &best
	}
	return snap
}

// PickBest returns the greatest AmountOut among successes. Ties go to the
// lower gas estimate, then to the earlier outcome.
func PickBest(outcomes []SourceOutcome) (QuoteResult, bool) {
	var (
		best  QuoteResult
		found bool
	)
	for _, o := range outcomes {
		r, ok := o.Result()
		if !ok {
			continue
		}
		if !found || r.Better(best) {
			best, found = r, true
		}
	}
	return best, found
}

// HasSuccess reports whether at least one source produced a quote.
func (s *AggregationSnapshot) HasSuccess() bool {
	return s.Best != nil
}

// SuccessFor returns the live quote produced by a protocol, if any.
func (s *AggregationSnapshot) SuccessFor(protocol string) (QuoteResult, bool) {
	if s == nil {
		return QuoteResult{}, false
	}
	for _, o := range s.Outcomes {
		if o.Adapter != protocol {
			continue
		}
		if r, ok := o.Result(); ok {
			return r, true
		}
	}
	return QuoteResult{}, false
}

// Failures returns the failed outcomes in registration order.
func (s *AggregationSnapshot) Failures() []SourceOutcome {
	var out []SourceOutcome
	for _, o := range s.Outcomes {
		if !o.IsSuccess() {
			out = append(out, o)
		}
	}
	return out
}

// WithRound returns a copy answering another round, with its own request
// id. Outcomes and Timestamp are kept so a reused answer still shows its
// age.
func (s *AggregationSnapshot) WithRound(round uint64) *AggregationSnapshot {
	c := *s
	c.RequestID = uuid.New()
	c.Round = round
	c.Outcomes = append([]SourceOutcome(nil), s.Outcomes...)
	if s.Best != nil {
		b := s.Best.Clone()
		c.Best = &b
	}
	return &c
}
