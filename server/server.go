// Package server - HTTP display of the latest frame summary, recent narrations and metrics.
package server

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nvr-ai/narrator/metrics"
	"github.com/nvr-ai/narrator/pipeline"
	"github.com/nvr-ai/narrator/tracker"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultNarrationKeep is how many narrations are retained when none is configured.
const DefaultNarrationKeep = 50

// Server implements pipeline.DisplaySink and serves what it was shown.
type Server struct {
	mu         sync.RWMutex
	latest     *pipeline.FrameResult
	narrations []tracker.NarrationEvent
	keep       int

	engine *gin.Engine
	logger *zap.Logger
}

// New creates the server and its routes. m may be nil to omit /metrics.
func New(m *metrics.Metrics, keep int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keep <= 0 {
		keep = DefaultNarrationKeep
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		keep:   keep,
		engine: gin.New(),
		logger: logger,
	}
	s.engine.Use(gin.Recovery())

	s.engine.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	s.engine.GET("/api/summary", s.handleSummary)
	s.engine.GET("/api/narrations", s.handleNarrations)
	if m != nil {
		s.engine.GET("/metrics", gin.WrapH(m.Handler()))
	}

	return s
}

// Display records a processed frame.
func (s *Server) Display(result pipeline.FrameResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = &result
	s.narrations = append(s.narrations, result.Narrations...)
	if over := len(s.narrations) - s.keep; over > 0 {
		s.narrations = append(s.narrations[:0:0], s.narrations[over:]...)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleSummary(c *gin.Context) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	if latest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No frame processed yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": latest})
}

func (s *Server) handleNarrations(c *gin.Context) {
	limit := s.keep
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	s.mu.RLock()
	from := max(0, len(s.narrations)-limit)
	out := append([]tracker.NarrationEvent{}, s.narrations[from:]...)
	s.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{"data": out})
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("display server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Wrap(err, "display server failed")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "display server shutdown failed")
	}
	return nil
}
