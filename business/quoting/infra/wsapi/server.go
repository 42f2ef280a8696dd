// Package wsapi serves live quote sessions over websocket. Each connection
// owns one controller; every state change is pushed to the client.
package wsapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/swap-quoter/business/quoting/app"
	"github.com/fd1az/swap-quoter/internal/logger"
)

const (
	meterName = "github.com/fd1az/swap-quoter/business/quoting/infra/wsapi"

	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 16 << 10
	replyBuffer    = 16
)

// Option configures a Server.
type Option func(*Server)

// WithOriginPatterns allows cross-origin browser clients matching patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) {
		s.originPatterns = patterns
	}
}

// WithRefresher re-quotes every session on new blocks.
func WithRefresher(r *app.BlockRefresher) Option {
	return func(s *Server) {
		s.refresher = r
	}
}

// WithPingPeriod overrides the keepalive interval.
func WithPingPeriod(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pingPeriod = d
		}
	}
}

// Server is an http.Handler that upgrades to websocket.
type Server struct {
	service        *app.QuoteService
	refresher      *app.BlockRefresher
	logger         logger.LoggerInterface
	originPatterns []string
	pingPeriod     time.Duration

	sessions metric.Int64UpDownCounter
}

// NewServer creates a server on top of service.
func NewServer(service *app.QuoteService, log logger.LoggerInterface, opts ...Option) *Server {
	s := &Server{
		service:    service,
		logger:     log,
		pingPeriod: pingPeriod,
	}
	for _, opt := range opts {
		opt(s)
	}

	sessions, err := otel.Meter(meterName).Int64UpDownCounter("quoter.ws.sessions",
		metric.WithDescription("Open websocket quote sessions"),
	)
	if err != nil {
		log.Warn(context.Background(), "failed to create sessions gauge", "error", err)
	}
	s.sessions = sessions
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		s.logger.Warn(r.Context(), "websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	sess := newSession(s, conn)
	if s.sessions != nil {
		s.sessions.Add(r.Context(), 1)
		defer s.sessions.Add(context.Background(), -1)
	}
	sess.run(r.Context())
}

// session is one connected client.
type session struct {
	id      uuid.UUID
	server  *Server
	conn    *websocket.Conn
	ctrl    *app.Controller
	replies chan ServerMessage

	// latest view wins; intermediate views may be skipped
	mu     sync.Mutex
	latest *app.View
	wake   chan struct{}
}

func newSession(s *Server, conn *websocket.Conn) *session {
	sess := &session{
		id:      uuid.New(),
		server:  s,
		conn:    conn,
		replies: make(chan ServerMessage, replyBuffer),
		wake:    make(chan struct{}, 1),
	}
	sess.ctrl = s.service.NewController(app.WithListener(sess.onView))
	return sess
}

func (s *session) onView(v app.View) {
	s.mu.Lock()
	if s.latest == nil || v.Version > s.latest.Version {
		s.latest = &v
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *session) takeLatest() *app.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.latest
	s.latest = nil
	return v
}

func (s *session) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	log := s.server.logger
	log.Info(ctx, "quote session opened", "session", s.id)

	if s.server.refresher != nil {
		untrack := s.server.refresher.Track(s.ctrl)
		defer untrack()
	}
	defer s.ctrl.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		s.writeLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.pingLoop(ctx)
	}()

	// the initial view lets the client render before sending anything
	s.onView(s.ctrl.View())

	err := s.readLoop(ctx)
	cancel()
	wg.Wait()

	status := websocket.CloseStatus(err)
	switch {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		_ = s.conn.Close(websocket.StatusNormalClosure, "")
	case errors.Is(err, context.Canceled):
		_ = s.conn.Close(websocket.StatusGoingAway, "server shutting down")
	default:
		log.Debug(ctx, "quote session read ended", "session", s.id, "error", err)
		_ = s.conn.Close(websocket.StatusInternalError, "")
	}
	log.Info(context.Background(), "quote session closed", "session", s.id)
}

func (s *session) readLoop(ctx context.Context) error {
	for {
		_, raw, err := s.conn.Read(ctx)
		if err != nil {
			return err
		}
		msg, err := decodeClientMessage(raw)
		if err != nil {
			s.reply(ctx, errorMessage(msg.ID, err))
			continue
		}
		s.handle(ctx, msg)
	}
}

func (s *session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			v := s.takeLatest()
			if v == nil {
				continue
			}
			if err := s.write(ctx, stateMessage(*v)); err != nil {
				return
			}
		case msg := <-s.replies:
			if err := s.write(ctx, msg); err != nil {
				return
			}
		}
	}
}

func (s *session) write(ctx context.Context, msg ServerMessage) error {
	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	if err := wsjson.Write(ctx, s.conn, msg); err != nil {
		s.server.logger.Debug(ctx, "quote session write failed", "session", s.id, "error", err)
		return err
	}
	return nil
}

func (s *session) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.server.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := s.conn.Ping(pctx)
			cancel()
			if err != nil {
				s.server.logger.Debug(ctx, "quote session ping failed", "session", s.id, "error", err)
				return
			}
		}
	}
}

func (s *session) reply(ctx context.Context, msg ServerMessage) {
	select {
	case s.replies <- msg:
	case <-ctx.Done():
	}
}
