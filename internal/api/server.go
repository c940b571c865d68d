package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/WCArena/pudscan/internal/config"
	"github.com/WCArena/pudscan/internal/monitor"
	"github.com/WCArena/pudscan/internal/scanner"
	"github.com/WCArena/pudscan/internal/storage"
	"github.com/WCArena/pudscan/pkg/core"
)

// APIKeyHeader carries the upload key.
const APIKeyHeader = "X-API-Key"

// multipart framing allowance on top of the file size limit
const formOverhead = 64 << 10

// Response statuses.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Acceptor is the part of scanner.Scanner the API needs.
type Acceptor interface {
	Accept(ctx context.Context, data []byte, filename string) scanner.Result
}

// StatusSource reports service status for GET /api/v1/status.
type StatusSource interface {
	GetStatus() monitor.Status
}

// UploadResponse is the body of POST /api/v1/maps and GET /api/v1/maps/:hash.
// Record is set for accepted maps, with the tile grid left out.
type UploadResponse struct {
	Status    string           `json:"status"`
	Record    *core.ScanRecord `json:"record,omitempty"`
	Rejection *core.Rejection  `json:"rejection,omitempty"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error      string `json:"error"`
	RetryAfter int64  `json:"retryAfter,omitempty"`
}

// Dependencies holds the collaborators of the upload API. Finder and Status
// are optional; their routes answer 501 without them.
type Dependencies struct {
	Scanner     Acceptor
	Finder      storage.Finder
	Status      StatusSource
	Logger      *slog.Logger
	Config      config.APIConfig
	MaxFileSize int64
}

// Server is the HTTP upload API.
type Server struct {
	deps   Dependencies
	engine *gin.Engine
}

// NewServer builds the gin engine and its routes.
func NewServer(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{deps: deps, engine: gin.New()}
	s.engine.Use(gin.Recovery(), s.requestLogger())

	s.engine.GET("/healthcheck", s.healthcheck)

	v1 := s.engine.Group("/api/v1", s.rateLimiter())
	v1.POST("/maps", s.requireAPIKey(), s.uploadMap)
	v1.GET("/maps/:hash", s.getMap)
	v1.GET("/status", s.status)

	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on api.listenAddr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.deps.Config.ListenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("Upload API listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down API: %w", err)
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
		s.deps.Logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"client", c.ClientIP(),
			"duration", time.Since(start))
	}
}

func (s *Server) rateLimiter() gin.HandlerFunc {
	rate := limiter.Rate{
		Period: s.deps.Config.RateWindow,
		Limit:  s.deps.Config.RateLimit,
	}
	instance := limiter.New(memory.NewStore(), rate)

	return mgin.NewMiddleware(instance,
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			// fail open
			s.deps.Logger.Error("Rate limiter error", "error", err)
			c.Next()
		}),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			retryAfter := int64(0)
			if reset := c.Writer.Header().Get("X-RateLimit-Reset"); reset != "" {
				var unix int64
				if _, err := fmt.Sscan(reset, &unix); err == nil {
					retryAfter = max(0, unix-time.Now().Unix())
				}
			}
			c.JSON(http.StatusTooManyRequests, ErrorResponse{
				Error:      "rate limit exceeded",
				RetryAfter: retryAfter,
			})
		}),
	)
}

func (s *Server) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		want := s.deps.Config.APIKey
		if want == "" {
			c.Next()
			return
		}
		got := c.GetHeader(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid api key"})
			return
		}
		c.Next()
	}
}

func (s *Server) healthcheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) uploadMap(c *gin.Context) {
	if limit := s.deps.MaxFileSize; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+formOverhead)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing multipart field \"file\""})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to open upload"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read upload"})
		return
	}

	res := s.deps.Scanner.Accept(c.Request.Context(), data, header.Filename)
	switch {
	case res.Rejection != nil:
		code := http.StatusUnprocessableEntity
		if res.Rejection.Kind == scanner.KindFileTooLarge {
			code = http.StatusRequestEntityTooLarge
		}
		c.JSON(code, UploadResponse{Status: StatusRejected, Rejection: res.Rejection})
	case res.Err != nil:
		s.deps.Logger.Error("Upload failed", "file", header.Filename, "error", res.Err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: res.Err.Error()})
	default:
		c.JSON(http.StatusOK, UploadResponse{Status: StatusAccepted, Record: withoutTiles(res.Record)})
	}
}

// lookupParams is validated by gin's validator binding.
type lookupParams struct {
	Hash string `uri:"hash" binding:"required,len=64,hexadecimal"`
}

func (s *Server) getMap(c *gin.Context) {
	if s.deps.Finder == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "storage backend does not support lookups"})
		return
	}
	var params lookupParams
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "hash must be 64 hex characters"})
		return
	}
	rec, ok, err := s.deps.Finder.FindScan(params.Hash)
	if err != nil {
		s.deps.Logger.Error("Lookup failed", "hash", params.Hash, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "lookup failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "map not found"})
		return
	}
	c.JSON(http.StatusOK, UploadResponse{Status: StatusAccepted, Record: withoutTiles(rec)})
}

func (s *Server) status(c *gin.Context) {
	if s.deps.Status == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "status not available"})
		return
	}
	c.JSON(http.StatusOK, s.deps.Status.GetStatus())
}

func withoutTiles(r *core.ScanRecord) *core.ScanRecord {
	cp := *r
	cp.Document.Tiles = nil
	return &cp
}
