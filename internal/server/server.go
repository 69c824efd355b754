// Package server exposes a scheduler engine over JSON-RPC 2.0.
//
// Requests arrive either as HTTP POSTs on /jsonrpc or over a WebSocket on
// /jsonrpc/ws. WebSocket sessions also receive task.* push notifications.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/warpdl/warpsched/pkg/logger"
)

// Server is the HTTP front of an RPCServer.
type Server struct {
	rpc  *RPCServer
	http *http.Server
	log  logger.Logger

	// cancelBase cancels the parent of every request context. It ends
	// hijacked WebSocket sessions, which http.Server.Shutdown ignores.
	cancelBase context.CancelFunc
}

// NewServer creates a server. tr may be nil when tracing is off.
func NewServer(cfg *RPCConfig, s Scheduler, tr TraceSource, l logger.Logger) *Server {
	if l == nil {
		l = logger.NewNopLogger()
	}
	rpc := NewRPCServer(cfg, s, tr, l)
	base, cancel := context.WithCancel(context.Background())
	return &Server{
		rpc: rpc,
		http: &http.Server{
			Handler:           rpc.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return base },
			ErrorLog:          logger.ToStdLogger(l, logger.LevelWarning),
		},
		log:        l,
		cancelBase: cancel,
	}
}

// Notifier returns the push notification broadcaster. Hand its Publish
// method to the engine as OnEvent.
func (s *Server) Notifier() *RPCNotifier {
	return s.rpc.Notifier()
}

// Handler returns the routes, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Serve accepts connections on l and delivers notifications until Shutdown.
// It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.rpc.Notifier().Run(ctx)

	s.log.Info("rpc: listening on %s", l.Addr())
	err := s.http.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for active requests.
// WebSocket sessions are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelBase()
	err := s.http.Shutdown(ctx)
	if cerr := s.rpc.Close(); err == nil {
		err = cerr
	}
	return err
}
