package di_test

import (
	"testing"

	"github.com/fd1az/swap-quoter/internal/di"
)

type counter struct{ n int }

func TestContainer_LazySingleton(t *testing.T) {
	c := di.NewContainer()
	tok := di.NewToken[*counter]("test:counter")

	builds := 0
	di.RegisterToken(c, tok, func(di.ServiceRegistry) *counter {
		builds++
		return &counter{n: builds}
	})

	if builds != 0 {
		t.Fatalf("factory must not run before Get, ran %d times", builds)
	}

	a := di.GetToken(c, tok)
	b := di.GetToken(c, tok)
	if a != b {
		t.Error("expected the same instance on every Get")
	}
	if builds != 1 {
		t.Errorf("expected one build, got %d", builds)
	}
}

func TestContainer_FactoryResolvesDependencies(t *testing.T) {
	c := di.NewContainer()
	c.Register("config", "mainnet")

	tok := di.NewToken[string]("test:derived")
	di.RegisterToken(c, tok, func(sr di.ServiceRegistry) string {
		return sr.Get("config").(string) + "-quoter"
	})

	if got := di.GetToken(c, tok); got != "mainnet-quoter" {
		t.Errorf("expected mainnet-quoter, got %s", got)
	}
}

func TestContainer_UnknownServicePanics(t *testing.T) {
	c := di.NewContainer()

	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown service")
		}
	}()
	c.Get("missing")
}
