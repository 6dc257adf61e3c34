// Package ws implements the sender channel as a WebSocket server.
//
// Each connection is one sender. Text frames carry JSON records and binary
// frames carry msgpack records; replies use the frame type matching the
// requested format. The server can also serve a directory of static
// receiver assets on the same listener.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bft-labs/subcast/internal/domain"
	"github.com/bft-labs/subcast/internal/ports"
	"github.com/bft-labs/subcast/pkg/log"
)

const (
	// DefaultPath is the WebSocket endpoint.
	DefaultPath = "/ws"

	defaultWriteTimeout = 10 * time.Second
	maxMessageBytes     = 16 << 20
)

// Option configures a Server.
type Option func(*Server)

// WithPath sets the WebSocket endpoint path.
func WithPath(path string) Option {
	return func(s *Server) {
		if path != "" {
			s.path = path
		}
	}
}

// WithStaticDir serves dir at the root path.
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

// WithLogger sets the server logger.
func WithLogger(l log.Logger) Option {
	return func(s *Server) {
		s.logger = log.OrNoop(l)
	}
}

// WithWriteTimeout bounds each outbound write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex // gorilla/websocket connections allow one concurrent writer
}

// Server implements ports.Channel over WebSocket connections.
type Server struct {
	addr         string
	path         string
	staticDir    string
	writeTimeout time.Duration
	logger       log.Logger
	upgrader     websocket.Upgrader

	mu      sync.Mutex
	conns   map[string]*conn
	deliver ports.DeliverFunc
	httpSrv *http.Server
	ln      net.Listener
	closed  bool
}

// New creates a server listening on addr once started.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		addr:         addr,
		path:         DefaultPath,
		writeTimeout: defaultWriteTimeout,
		logger:       log.NoopLogger{},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler serving the WebSocket endpoint and the
// static directory.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleWebSocket)
	if s.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}
	return mux
}

// Start implements ports.Channel.
func (s *Server) Start(ctx context.Context, deliver ports.DeliverFunc) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return domain.ErrChannelClosed
	}
	s.deliver = deliver
	s.ln = ln
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpSrv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("websocket server stopped", log.Err(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	s.logger.Info("websocket channel listening",
		log.String("addr", ln.Addr().String()),
		log.String("path", s.path),
		log.String("static_dir", s.staticDir))
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Senders returns the ids of connected senders.
func (s *Server) Senders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.conns))
	for id := range s.conns {
		ids = append(ids, id)
	}
	return ids
}

// Send implements ports.Channel.
func (s *Server) Send(ctx context.Context, senderID string, data []byte, format ports.Format) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrChannelClosed
	}
	c, ok := s.conns[senderID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownSender, senderID)
	}

	deadline := time.Now().Add(s.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(messageType(format), data); err != nil {
		return fmt.Errorf("write to %s: %w", senderID, err)
	}
	return nil
}

// Close implements ports.Channel.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	srv := s.httpSrv
	conns := s.conns
	s.conns = make(map[string]*conn)
	s.mu.Unlock()

	for _, c := range conns {
		c.ws.Close()
	}
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	senderID := r.URL.Query().Get("sender")
	if senderID == "" {
		senderID = uuid.NewString()
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", log.Err(err))
		return
	}
	ws.SetReadLimit(maxMessageBytes)
	c := &conn{ws: ws}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ws.Close()
		return
	}
	if old, ok := s.conns[senderID]; ok {
		old.ws.Close()
	}
	s.conns[senderID] = c
	deliver := s.deliver
	s.mu.Unlock()

	s.logger.Info("sender connected", log.String("sender", senderID), log.String("remote", r.RemoteAddr))
	defer s.remove(senderID, c)

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", log.String("sender", senderID), log.Err(err))
			}
			return
		}
		format := ports.FormatJSON
		switch mt {
		case websocket.TextMessage:
		case websocket.BinaryMessage:
			format = ports.FormatMsgpack
		default:
			continue
		}
		if deliver != nil {
			deliver(ports.Inbound{SenderID: senderID, Format: format, Data: data})
		}
	}
}

func (s *Server) remove(senderID string, c *conn) {
	s.mu.Lock()
	if cur, ok := s.conns[senderID]; ok && cur == c {
		delete(s.conns, senderID)
	}
	s.mu.Unlock()
	c.ws.Close()
	s.logger.Info("sender disconnected", log.String("sender", senderID))
}

func messageType(f ports.Format) int {
	if f == ports.FormatMsgpack {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

var _ ports.Channel = (*Server)(nil)
