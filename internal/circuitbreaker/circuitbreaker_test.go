package circuitbreaker_test

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/circuitbreaker"
)

var errRPC = errors.New("connection refused")

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("quoter-test")
	cfg.ConsecutiveFailures = 2

	var transitions []gobreaker.State
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}

	cb := circuitbreaker.New[[]byte](cfg)
	for i := 0; i < 2; i++ {
		if _, err := cb.Execute(func() ([]byte, error) { return nil, errRPC }); !errors.Is(err, errRPC) {
			t.Fatalf("call %d: expected rpc error, got %v", i, err)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", cb.State())
	}
	if len(transitions) != 1 || transitions[0] != gobreaker.StateOpen {
		t.Errorf("expected a single transition to open, got %v", transitions)
	}

	called := false
	_, err := cb.Execute(func() ([]byte, error) {
		called = true
		return nil, nil
	})
	if called {
		t.Error("fn must not run while open")
	}
	if apperror.GetCode(err) != apperror.CodeCircuitOpen {
		t.Errorf("expected CIRCUIT_OPEN, got %v", err)
	}
}

func TestCircuitBreaker_IsSuccessfulKeepsClosed(t *testing.T) {
	errRevert := errors.New("execution reverted")

	cfg := circuitbreaker.DefaultConfig("quoter-test")
	cfg.ConsecutiveFailures = 1
	cfg.IsSuccessful = func(err error) bool { return errors.Is(err, errRevert) }

	cb := circuitbreaker.New[[]byte](cfg)
	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() ([]byte, error) { return nil, errRevert }); !errors.Is(err, errRevert) {
			t.Fatalf("expected revert to pass through, got %v", err)
		}
	}

	if cb.State() != gobreaker.StateClosed {
		t.Errorf("reverts must not trip the breaker, state %s", cb.State())
	}
}
