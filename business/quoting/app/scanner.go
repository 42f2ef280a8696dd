package app

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/logger"
)

const tracerName = "github.com/fd1az/swap-quoter/business/quoting/app"

// ScanPolicy selects how fee tiers are tried.
type ScanPolicy int

const (
	// ScanFirstSuccess walks tiers in order and stops at the first quote.
	ScanFirstSuccess ScanPolicy = iota
	// ScanBestOfAll quotes every tier and keeps the greatest output.
	ScanBestOfAll
)

func (p ScanPolicy) String() string {
	if p == ScanBestOfAll {
		return "best-of-all"
	}
	return "first-success"
}

// TierQuoteFunc quotes one fee tier.
type TierQuoteFunc func(ctx context.Context, tier domain.FeeTier) (domain.QuoteResult, error)

// FeeTierScanner finds a pool among fee tiers.
type FeeTierScanner struct {
	policy ScanPolicy
	tiers  []domain.FeeTier
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewFeeTierScanner creates a scanner over tiers in the given order.
func NewFeeTierScanner(policy ScanPolicy, tiers []domain.FeeTier, log logger.LoggerInterface) *FeeTierScanner {
	if len(tiers) == 0 {
		tiers = domain.DefaultFeeTiers
	}
	return &FeeTierScanner{
		policy: policy,
		tiers:  append([]domain.FeeTier(nil), tiers...),
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
}

// Policy returns the scanning policy.
func (p *FeeTierScanner) Policy() ScanPolicy { return p.policy }

// Tiers returns the tiers in scanning order.
func (p *FeeTierScanner) Tiers() []domain.FeeTier {
	return append([]domain.FeeTier(nil), p.tiers...)
}

type tierAttempt struct {
	tier   domain.FeeTier
	result domain.QuoteResult
	err    error
}

// Scan runs quote over the tiers. The returned result carries the winning
// tier. NO_POOL_FOUND is returned when every tier failed.
func (p *FeeTierScanner) Scan(ctx context.Context, quote TierQuoteFunc) (domain.QuoteResult, error) {
	ctx, span := p.tracer.Start(ctx, "quoting.scan_fee_tiers",
		trace.WithAttributes(attribute.String("policy", p.policy.String())),
	)
	defer span.End()

	var attempts []tierAttempt
	if p.policy == ScanBestOfAll {
		attempts = p.all(ctx, quote)
	} else {
		attempts = p.firstSuccess(ctx, quote)
	}

	var (
		best  domain.QuoteResult
		found bool
	)
	for _, a := range attempts {
		if a.err != nil {
			span.AddEvent("tier_failed", trace.WithAttributes(
				attribute.Int("tier", int(a.tier)),
				attribute.String("error", a.err.Error()),
			))
			p.logger.Debug(ctx, "fee tier quote failed", "tier", uint32(a.tier), "error", a.err)
			continue
		}
		span.AddEvent("tier_quoted", trace.WithAttributes(
			attribute.Int("tier", int(a.tier)),
			attribute.String("amount_out", a.result.AmountOut.String()),
		))
		// strictly greater only, so an equal later tier never displaces an earlier one
		if !found || a.result.AmountOut.Cmp(best.AmountOut) > 0 {
			best, found = a.result, true
		}
	}

	if !found {
		return domain.QuoteResult{}, apperror.New(apperror.CodeNoPoolFound,
			apperror.WithContext(describeFailures(attempts)))
	}

	span.SetAttributes(attribute.Int("winning_tier", int(best.FeeTier)))
	return best, nil
}

func (p *FeeTierScanner) firstSuccess(ctx context.Context, quote TierQuoteFunc) []tierAttempt {
	attempts := make([]tierAttempt, 0, len(p.tiers))
	for _, tier := range p.tiers {
		a := runTier(ctx, quote, tier)
		attempts = append(attempts, a)
		if a.err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return attempts
}

func (p *FeeTierScanner) all(ctx context.Context, quote TierQuoteFunc) []tierAttempt {
	attempts := make([]tierAttempt, len(p.tiers))

	// Tier failures are data here, so no goroutine returns an error and
	// none cancels its siblings.
	var g errgroup.Group
	for i, tier := range p.tiers {
		g.Go(func() error {
			attempts[i] = runTier(ctx, quote, tier)
			return nil
		})
	}
	_ = g.Wait()

	return attempts
}

func runTier(ctx context.Context, quote TierQuoteFunc, tier domain.FeeTier) (a tierAttempt) {
	a.tier = tier
	defer func() {
		if r := recover(); r != nil {
			a.err = fmt.Errorf("tier %d panicked: %v", tier, r)
		}
	}()

	res, err := quote(ctx, tier)
	if err != nil {
		a.err = err
		return a
	}
	if res.AmountOut == nil || res.AmountOut.Sign() <= 0 {
		a.err = fmt.Errorf("tier %d returned no output", tier)
		return a
	}
	res.FeeTier = tier
	a.result = res
	return a
}

func describeFailures(attempts []tierAttempt) string {
	if len(attempts) == 0 {
		return "no fee tiers attempted"
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		parts = append(parts, fmt.Sprintf("%d: %v", a.tier, a.err))
	}
	return strings.Join(parts, "; ")
}
