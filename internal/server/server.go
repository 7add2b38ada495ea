// Package server exposes a blob directory, the pass log and metrics over
// HTTP for remote sessions.
//
// Routes:
//
//	GET /static/<name>   file from the static directory (trees and asset blobs)
//	GET /healthz         liveness
//	GET /metrics         Prometheus exposition
//	GET /v1/passes       recorded passes (?source=&after=&limit=&failed=)
//	GET /v1/passes/:id   one recorded pass
package server

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ryohey/warp/internal/ir"
	"github.com/ryohey/warp/internal/store"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 5 * time.Second

// PassLog is the read side of the pass log. *store.Store implements it.
type PassLog interface {
	ReadPasses(ctx context.Context, f store.PassFilter) ([]ir.PassRecord, error)
	ReadPass(ctx context.Context, id string) (ir.PassRecord, error)
}

// Server is the HTTP front end.
type Server struct {
	router    *gin.Engine
	staticDir string
	passes    PassLog
	metrics   bool
	debug     bool
}

// Option configures a Server.
type Option func(*Server)

// WithStatic serves dir under /static/.
func WithStatic(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// WithPassLog serves the pass log under /v1/passes.
func WithPassLog(p PassLog) Option {
	return func(s *Server) { s.passes = p }
}

// WithMetrics serves /metrics.
func WithMetrics() Option {
	return func(s *Server) { s.metrics = true }
}

// WithDebug logs every request at debug level.
func WithDebug() Option {
	return func(s *Server) { s.debug = true }
}

// New builds the router.
func New(opts ...Option) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	if s.debug {
		s.router.Use(requestLogger())
	}

	s.router.GET("/healthz", s.handleHealth)
	if s.staticDir != "" {
		s.router.StaticFS("/static", gin.Dir(s.staticDir, false))
	}
	if s.metrics {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	if s.passes != nil {
		v1 := s.router.Group("/v1")
		v1.GET("/passes", s.handleListPasses)
		v1.GET("/passes/:id", s.handleGetPass)
	}
	return s
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on l until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(l) }()
	slog.Info("server listening", "addr", l.Addr().String(), "static", s.staticDir)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped", "addr", l.Addr().String())
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "engine_version": ir.EngineVersion})
}

func (s *Server) handleListPasses(c *gin.Context) {
	var filter store.PassFilter
	filter.Source = c.Query("source")

	if v := c.Query("after"); v != "" {
		after, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "after: " + err.Error()})
			return
		}
		filter.AfterSeq = after
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		filter.Limit = limit
	}
	if v := c.Query("failed"); v != "" {
		failed, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed: " + err.Error()})
			return
		}
		filter.Failed = failed
	}

	passes, err := s.passes.ReadPasses(c.Request.Context(), filter)
	if err != nil {
		slog.Error("read passes", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read passes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"passes": passes})
}

func (s *Server) handleGetPass(c *gin.Context) {
	id := c.Param("id")
	rec, err := s.passes.ReadPass(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pass " + id})
		return
	}
	if err != nil {
		slog.Error("read pass", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read pass"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
