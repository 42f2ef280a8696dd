package wsapi

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/swap-quoter/business/quoting/app"
	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/internal/apperror"
	"github.com/fd1az/swap-quoter/internal/asset"
	"github.com/fd1az/swap-quoter/internal/logger"
)

// doubler quotes twice the input in raw units of the output token.
type doubler struct{}

func (doubler) ProtocolName() string      { return "doubler" }
func (doubler) SupportedChains() []uint64 { return []uint64{asset.ChainIDEthereum} }

func (doubler) SimulateQuote(_ context.Context, req domain.QuoteRequest) (domain.QuoteResult, error) {
	if err := req.Validate([]uint64{asset.ChainIDEthereum}); err != nil {
		return domain.QuoteResult{}, err
	}
	return domain.QuoteResult{
		AmountOut:   new(big.Int).Mul(req.AmountIn, big.NewInt(500_000_000_000)),
		GasEstimate: 100_000,
		Protocol:    "doubler",
		Route:       []string{req.TokenIn.Symbol(), req.TokenOut.Symbol()},
	}, nil
}

func (doubler) BuildExecution(_ context.Context, req domain.QuoteRequest, q domain.QuoteResult) (domain.SwapExecutionParams, error) {
	return domain.NewExecution(common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		domain.ApplySlippage(q.AmountOut, req.Slippage).Bytes(), nil, q.GasEstimate), nil
}

type wireMessage struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := logger.New(io.Discard, logger.LevelError, "test", nil)

	adapters := []app.Adapter{doubler{}}
	coord, err := app.NewCoordinator(adapters, app.DefaultCoordinatorConfig(), log)
	require.NoError(t, err)

	svc := app.NewQuoteService(app.QuoteServiceConfig{
		Coordinator:     coord,
		Builder:         app.NewExecutionBuilder(adapters, log),
		Registry:        asset.DefaultRegistry(),
		DefaultSlippage: decimal.RequireFromString("0.005"),
		Debounce:        5 * time.Millisecond,
	}, log)

	srv := httptest.NewServer(NewServer(svc, log, WithRefresher(app.NewBlockRefresher(log))))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, msg))
}

// next reads messages until match accepts one.
func next(t *testing.T, conn *websocket.Conn, match func(wireMessage) bool) wireMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		var msg wireMessage
		require.NoError(t, wsjson.Read(ctx, conn, &msg))
		if match(msg) {
			return msg
		}
	}
}

func stateIs(want string) func(wireMessage) bool {
	return func(m wireMessage) bool {
		if m.Type != TypeState {
			return false
		}
		var p StatePayload
		return json.Unmarshal(m.Payload, &p) == nil && p.State == want
	}
}

func byID(id string) func(wireMessage) bool {
	return func(m wireMessage) bool { return m.ID == id }
}

func TestSession_InitialStateIsIdle(t *testing.T) {
	conn := dial(t, newTestServer(t))

	msg := next(t, conn, func(wireMessage) bool { return true })
	assert.Equal(t, TypeState, msg.Type)

	var p StatePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	assert.Equal(t, "idle", p.State)
	assert.Nil(t, p.Best)
}

func TestSession_QuoteAndBuild(t *testing.T) {
	conn := dial(t, newTestServer(t))

	send(t, conn, ClientMessage{
		Type:      TypeIntent,
		ChainID:   asset.ChainIDEthereum,
		TokenIn:   "USDC",
		TokenOut:  "WETH",
		Amount:    "1",
		Recipient: "0x000000000000000000000000000000000000bEEF",
	})

	msg := next(t, conn, stateIs("ready"))
	var p StatePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	require.NotNil(t, p.Selected)
	assert.Equal(t, "doubler", p.Selected.Protocol)
	assert.Equal(t, "0.500000", p.AmountOut)
	require.NotNil(t, p.Display)
	assert.Equal(t, "0.497500", p.Display.MinAmountOutFmt)
	require.NotNil(t, p.Snapshot)
	assert.Len(t, p.Snapshot.Outcomes, 1)

	send(t, conn, ClientMessage{ID: "b1", Type: TypeBuild})
	reply := next(t, conn, byID("b1"))
	require.Equal(t, TypeExecution, reply.Type)

	var exec ExecutionPayload
	require.NoError(t, json.Unmarshal(reply.Payload, &exec))
	assert.Equal(t, "doubler", exec.Protocol)
	assert.Equal(t, uint64(100_000), exec.Params.GasLimit)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000aa"), exec.Params.To)
}

func TestSession_SelectUnknownProtocol(t *testing.T) {
	conn := dial(t, newTestServer(t))

	send(t, conn, ClientMessage{ID: "s1", Type: TypeSelect, Protocol: "nope"})
	reply := next(t, conn, byID("s1"))
	require.Equal(t, TypeError, reply.Type)

	var e ErrorPayload
	require.NoError(t, json.Unmarshal(reply.Payload, &e))
	assert.Equal(t, string(apperror.CodeNotFound), e.Code)
}

func TestSession_Errors(t *testing.T) {
	tests := []struct {
		name string
		msg  ClientMessage
		want apperror.Code
	}{
		{"unknown type", ClientMessage{ID: "e1", Type: "launch"}, apperror.CodeInvalidInput},
		{"missing chain", ClientMessage{ID: "e2", Type: TypeIntent, TokenIn: "USDC"}, apperror.CodeRequiredField},
		{"unknown token", ClientMessage{ID: "e3", Type: TypeIntent, ChainID: 1, TokenIn: "NOPE"}, apperror.CodeTokenNotFound},
		{"bad amount", ClientMessage{ID: "e4", Type: TypeIntent, ChainID: 1, TokenIn: "USDC", Amount: "abc"}, apperror.CodeInvalidAmount},
		{"bad recipient", ClientMessage{ID: "e5", Type: TypeIntent, ChainID: 1, Recipient: "0x12"}, apperror.CodeInvalidInput},
		{"build without quote", ClientMessage{ID: "e6", Type: TypeBuild}, apperror.CodeStaleQuote},
	}

	conn := dial(t, newTestServer(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, conn, tt.msg)
			reply := next(t, conn, byID(tt.msg.ID))
			require.Equal(t, TypeError, reply.Type)

			var e ErrorPayload
			require.NoError(t, json.Unmarshal(reply.Payload, &e))
			assert.Equal(t, string(tt.want), e.Code)
		})
	}
}

func TestSession_MalformedMessageKeepsConnection(t *testing.T) {
	conn := dial(t, newTestServer(t))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{nope")))

	reply := next(t, conn, func(m wireMessage) bool { return m.Type == TypeError })
	var e ErrorPayload
	require.NoError(t, json.Unmarshal(reply.Payload, &e))
	assert.Equal(t, string(apperror.CodeInvalidInput), e.Code)

	send(t, conn, ClientMessage{ID: "after", Type: TypeRefresh})
	send(t, conn, ClientMessage{ID: "s2", Type: TypeSelect, Protocol: "nope"})
	assert.Equal(t, TypeError, next(t, conn, byID("s2")).Type)
}
