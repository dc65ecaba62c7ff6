// Package server exposes the record-then-transcribe pipeline over loopback
// HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"voxbridge/internal/history"
	"voxbridge/internal/pipeline"
)

// Runner executes one record-then-transcribe request.
type Runner interface {
	Run(ctx context.Context, seconds int, onStage func(pipeline.Stage)) pipeline.Result
}

// HistoryLister is satisfied by *history.Store.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

type Deps struct {
	Pipeline Runner
	History  HistoryLister // nil when history is disabled
	Metrics  http.Handler  // nil when metrics are disabled
}

type Server struct {
	deps     Deps
	engine   *gin.Engine
	upgrader websocket.Upgrader
}

func New(deps Deps) *Server {
	s := &Server{
		deps:   deps,
		engine: gin.New(),
		upgrader: websocket.Upgrader{
			// loopback only; game engines rarely send an Origin header
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	// every path answers JSON; no HTML redirects for trailing slashes
	s.engine.RedirectTrailingSlash = false
	s.engine.Use(gin.Recovery(), RequestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/health", s.health)
	r.GET("/record/*duration", s.record)
	r.GET("/ws", s.ws)
	if s.deps.History != nil {
		r.GET("/history", s.history)
	}
	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}
	r.NoRoute(s.notFound)
}

func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
