package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/engine"
	"github.com/poiesic/stratum/storage"
)

// MaxPathHops bounds shortest path searches.
const MaxPathHops = 10

// Asker answers natural-language questions.
type Asker interface {
	Ask(ctx context.Context, query string) (*engine.Result, error)
}

// Server serves the HTTP API.
type Server struct {
	asker   Asker
	store   storage.VoxelStore
	metrics http.Handler
	router  *gin.Engine
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) error {
		s.metrics = h
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New creates a server over asker and store.
func New(asker Asker, store storage.VoxelStore, opts ...Option) (*Server, error) {
	if asker == nil {
		return nil, ErrEngineRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	s := &Server{
		asker:  asker,
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "server")

	s.router = gin.New()
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}

	v1 := s.router.Group("/v1")
	v1.POST("/query", s.handleQuery)
	v1.GET("/voxels/:id", s.handleVoxel)
	v1.GET("/voxels/:id/neighbors", s.handleNeighbors)
	v1.GET("/path", s.handlePath)
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully,
// waiting at most shutdownTimeout for in-flight requests.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	n, err := s.store.Count(c.Request.Context())
	if err != nil {
		s.logger.Error("health check failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "STORE_UNAVAILABLE"})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Voxels: n})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	res, err := s.asker.Ask(c.Request.Context(), req.Query)
	if err != nil {
		status, code := http.StatusInternalServerError, "QUERY_FAILED"
		switch {
		case errors.Is(err, engine.ErrEmptyQuery):
			status, code = http.StatusBadRequest, "EMPTY_QUERY"
		case errors.Is(err, core.ErrDeadlineExceeded):
			status, code = http.StatusGatewayTimeout, "DEADLINE_EXCEEDED"
		case errors.Is(err, core.ErrGenerationFailure):
			status, code = http.StatusBadGateway, "GENERATION_FAILED"
		}
		s.logger.Warn("query failed", "code", code, "err", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	conditions := make([]string, len(res.Conditions))
	for i, cond := range res.Conditions {
		conditions[i] = cond.Error()
	}
	entries := make([]string, len(res.Context.Entries))
	for i, e := range res.Context.Entries {
		entries[i] = e.ID
	}
	c.JSON(http.StatusOK, QueryResponse{
		QueryID:    res.QueryID,
		Answer:     res.Answer,
		Conditions: conditions,
		Entries:    entries,
		Truncated:  res.Context.Truncated,
		Candidates: res.Context.Total,
	})
}

func (s *Server) handleVoxel(c *gin.Context) {
	v, err := s.store.GetVoxel(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, voxelResponse(v))
}

func (s *Server) handleNeighbors(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := s.store.GetVoxel(ctx, id); err != nil {
		s.storeError(c, err)
		return
	}

	edges, err := s.store.Neighbors(ctx, id, c.DefaultQuery("relation", core.RelationNeighbor))
	if err != nil {
		s.storeError(c, err)
		return
	}
	out := make([]NeighborResponse, len(edges))
	for i, e := range edges {
		out[i] = NeighborResponse{To: e.To, Direction: string(e.Direction), Distance: e.Distance}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handlePath(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "from and to are required", Code: "INVALID_REQUEST"})
		return
	}
	maxHops := MaxPathHops
	if raw := c.Query("max_hops"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxPathHops {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "max_hops must be between 1 and 10", Code: "INVALID_REQUEST"})
			return
		}
		maxHops = n
	}

	path, err := s.store.ShortestPath(c.Request.Context(), from, to, maxHops)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PathResponse{From: from, To: to, Path: path, Hops: len(path) - 1})
}

func (s *Server) storeError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NOT_FOUND"})
		return
	}
	s.logger.Error("store error", "err", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "STORE_ERROR"})
}
