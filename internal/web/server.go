package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tracediff/internal/model"
	"tracediff/internal/trace"
)

//go:embed static/*
var staticFS embed.FS

//go:embed help.md
var helpMD string

// HelpText returns the embedded keyboard and API help.
func HelpText() string {
	return helpMD
}

// DefaultMaxUpload caps the body of POST /api/compare.
const DefaultMaxUpload = 512 << 20

// Options configures a Server.
type Options struct {
	LeftPath   string // Traces served by /api/report; both empty disables it
	RightPath  string
	Dialect    trace.Dialect // nil sniffs each trace
	Comparator *trace.Comparator
	ReportOpts trace.ReportOptions
	MaxUpload  int64
	Logger     *zap.Logger
}

// ErrorResponse is the body of every non-2xx JSON answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ReportResponse is a report plus its text rendering.
type ReportResponse struct {
	model.Report
	Text    string `json:"text"`
	Version string `json:"version"`
}

// CompareRequest is the JSON form of POST /api/compare. Both traces must be
// present but either may be empty.
type CompareRequest struct {
	Left      *string `json:"left" binding:"required"`
	Right     *string `json:"right" binding:"required"`
	LeftName  string  `json:"leftName"`
	RightName string  `json:"rightName"`
}

// Server exposes the comparator over HTTP.
type Server struct {
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	cached *model.Report // report for LeftPath/RightPath, nil until computed
}

// NewServer creates a Server.
func NewServer(opts Options) *Server {
	if opts.Comparator == nil {
		opts.Comparator = trace.NewComparator()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = DefaultMaxUpload
	}
	return &Server{opts: opts, logger: opts.Logger}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/report", s.handleReport)
	api.POST("/compare", s.handleCompare)
	api.GET("/unified", s.handleUnified)
	api.GET("/line-context", s.handleLineContext)
	api.GET("/help", s.handleHelp)

	subFS, _ := fs.Sub(staticFS, "static")
	r.NoRoute(gin.WrapH(http.FileServer(http.FS(subFS))))
	return r
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting tracediff web server", zap.String("addr", "http://"+addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// SetReport replaces the cached report, e.g. after the watcher re-ran the
// comparison.
func (s *Server) SetReport(r model.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = &r
}

// Invalidate drops the cached report so the next request recomputes it.
func (s *Server) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
}

// fileReport returns the cached report for the configured files, computing
// it on first use. The lock is held while comparing so concurrent requests
// share one run.
func (s *Server) fileReport(ctx context.Context) (model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return *s.cached, nil
	}
	report, err := s.opts.Comparator.CompareFiles(ctx, s.opts.LeftPath, s.opts.RightPath, s.opts.Dialect)
	if err != nil {
		return model.Report{}, err
	}
	s.cached = &report
	return report, nil
}

func (s *Server) hasFiles() bool {
	return s.opts.LeftPath != "" && s.opts.RightPath != ""
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": model.Version})
}

func (s *Server) handleReport(c *gin.Context) {
	if !s.hasFiles() {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no traces configured, use POST /api/compare", Code: "NO_TRACES"})
		return
	}
	report, err := s.fileReport(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.respond(report, c.Query("verbose") == "true"))
}

func (s *Server) handleCompare(c *gin.Context) {
	if c.Request.ContentLength > s.opts.MaxUpload {
		s.fail(c, &http.MaxBytesError{Limit: s.opts.MaxUpload})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUpload)
	ctx := c.Request.Context()

	var left, right trace.TraceFile
	var err error
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		left, err = s.readUpload(c, "left")
		if err == nil {
			right, err = s.readUpload(c, "right")
		}
	} else {
		var req CompareRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + bindErr.Error(), Code: "INVALID_REQUEST"})
			return
		}
		left, err = trace.ReadTrace(ctx, nameOr(req.LeftName, "left"), strings.NewReader(*req.Left), s.opts.Dialect)
		if err == nil {
			right, err = trace.ReadTrace(ctx, nameOr(req.RightName, "right"), strings.NewReader(*req.Right), s.opts.Dialect)
		}
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	report, err := s.opts.Comparator.Compare(ctx, left, right)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.respond(report, c.Query("verbose") == "true"))
}

func (s *Server) readUpload(c *gin.Context, field string) (trace.TraceFile, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return trace.TraceFile{}, &badRequest{fmt.Errorf("missing form file %q: %w", field, err)}
	}
	f, err := fh.Open()
	if err != nil {
		return trace.TraceFile{}, err
	}
	defer f.Close()
	return trace.ReadTrace(c.Request.Context(), fh.Filename, f, s.opts.Dialect)
}

func (s *Server) handleUnified(c *gin.Context) {
	if !s.hasFiles() {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no traces configured", Code: "NO_TRACES"})
		return
	}
	report, err := s.fileReport(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Type", "text/x-diff; charset=utf-8")
	c.Status(http.StatusOK)
	if err := trace.WriteUnified(c.Writer, report); err != nil {
		s.logger.Warn("Writing unified diff failed", zap.Error(err))
	}
}

func (s *Server) handleLineContext(c *gin.Context) {
	var path string
	switch c.Query("side") {
	case "left":
		path = s.opts.LeftPath
	case "right":
		path = s.opts.RightPath
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "side must be left or right", Code: "INVALID_SIDE"})
		return
	}
	if path == "" {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no traces configured", Code: "NO_TRACES"})
		return
	}

	line, err := strconv.Atoi(c.Query("line"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid line number", Code: "INVALID_LINE"})
		return
	}
	radius := 3
	if v := c.Query("radius"); v != "" {
		if radius, err = strconv.Atoi(v); err != nil || radius < 0 || radius > 100 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "radius must be between 0 and 100", Code: "INVALID_RADIUS"})
			return
		}
	}

	rc, err := trace.OpenTrace(path)
	if err != nil {
		s.fail(c, err)
		return
	}
	defer rc.Close()

	lc := model.GetLineContext(rc, line, radius)
	if lc.ErrorMsg != "" {
		c.JSON(http.StatusNotFound, lc)
		return
	}
	c.JSON(http.StatusOK, lc)
}

func (s *Server) handleHelp(c *gin.Context) {
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(helpMD))
}

func (s *Server) respond(r model.Report, verbose bool) ReportResponse {
	opts := s.opts.ReportOpts
	opts.Verbose = opts.Verbose || verbose
	return ReportResponse{Report: r, Text: trace.GenerateReport(r, opts), Version: model.Version}
}

// badRequest marks errors caused by the client's input.
type badRequest struct{ err error }

func (e *badRequest) Error() string { return e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

// fail maps an error onto a status code and writes it.
func (s *Server) fail(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"

	var br *badRequest
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, trace.ErrResourceExceeded), errors.As(err, &tooLarge):
		status, code = http.StatusRequestEntityTooLarge, "RESOURCE_EXCEEDED"
	case errors.As(err, &br):
		status, code = http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, os.ErrNotExist):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusServiceUnavailable, "CANCELED"
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		s.logger.Info("Request rejected", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
