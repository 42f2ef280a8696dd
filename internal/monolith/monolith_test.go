package monolith

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/swap-quoter/internal/asset"
	"github.com/fd1az/swap-quoter/internal/config"
	"github.com/fd1az/swap-quoter/internal/di"
	"github.com/fd1az/swap-quoter/internal/logger"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

type stubModule struct {
	name     string
	events   *[]string
	startErr error
}

func (m stubModule) RegisterServices(c di.Container) error {
	*m.events = append(*m.events, "register "+m.name)
	c.Register(m.name, m.name)
	return nil
}

func (m stubModule) Startup(_ context.Context, mono Monolith) error {
	*m.events = append(*m.events, "start "+m.name)
	mono.OnClose(closerFunc(func() error {
		*m.events = append(*m.events, "close "+m.name)
		return nil
	}))
	return m.startErr
}

func newApp() *App {
	return New(&config.Config{}, logger.New(io.Discard, logger.LevelError, "test", nil))
}

func TestApp_StartRegistersBeforeStarting(t *testing.T) {
	var events []string
	app := newApp()

	err := app.Start(context.Background(),
		stubModule{name: "chain", events: &events},
		stubModule{name: "quoting", events: &events},
	)
	require.NoError(t, err)
	require.NoError(t, app.Close())

	assert.Equal(t, []string{
		"register chain", "register quoting",
		"start chain", "start quoting",
		"close quoting", "close chain",
	}, events)
	assert.IsType(t, &asset.Registry{}, app.Services().Get(AssetRegistryKey))
}

func TestApp_StartFailureClosesOpened(t *testing.T) {
	var events []string
	boom := errors.New("rpc down")

	err := newApp().Start(context.Background(),
		stubModule{name: "chain", events: &events},
		stubModule{name: "quoting", events: &events, startErr: boom},
	)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"close quoting", "close chain"}, events[len(events)-2:])
}
