// Package server exposes the diffusion pipeline over HTTP. Generation
// progress streams to the client as newline-delimited JSON, the same wire
// shape the CLI consumes through the api package.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"github.com/stablegen/stablegen/envconfig"
	"github.com/stablegen/stablegen/pipeline"
)

// Server serves the generation API around one shared pipeline. The model
// handles behind it are read-only, so requests may generate concurrently
// up to the admission limit.
type Server struct {
	pipeline *pipeline.Pipeline
	sem      *semaphore.Weighted
}

// New returns a server around p, admitting at most STABLEGEN_NUM_PARALLEL
// concurrent generations.
func New(p *pipeline.Pipeline) *Server {
	return &Server{
		pipeline: p,
		sem:      semaphore.NewWeighted(int64(envconfig.NumParallel())),
	}
}

// GenerateRoutes builds the HTTP router.
func (s *Server) GenerateRoutes() http.Handler {
	r := gin.Default()
	r.HandleMethodNotAllowed = true

	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "stablegen is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "stablegen is running") })
	r.POST("/api/generate", s.GenerateHandler)

	return r
}

// Serve configures logging and blocks serving HTTP on ln.
func Serve(ln net.Listener, p *pipeline.Pipeline) error {
	level := envconfig.LogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	if level > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{Handler: New(p).GenerateRoutes()}

	slog.Info("listening", "addr", ln.Addr())
	return srv.Serve(ln)
}

// streamResponse writes each channel value as one NDJSON line.
func streamResponse(c *gin.Context, ch chan any) {
	c.Header("Content-Type", "application/x-ndjson")
	c.Stream(func(w io.Writer) bool {
		val, ok := <-ch
		if !ok {
			return false
		}

		bts, err := json.Marshal(val)
		if err != nil {
			slog.Error("stream marshal failed", "error", err)
			return false
		}

		bts = append(bts, '\n')
		if _, err := w.Write(bts); err != nil {
			slog.Error("stream write failed", "error", err)
			return false
		}

		return true
	})
}

// statusForError maps the pipeline error taxonomy onto HTTP statuses.
// Configuration and shape errors are the caller's fault; everything else
// is a server-side failure.
func statusForError(err error) int {
	var configErr *pipeline.ConfigError
	var shapeErr *pipeline.ShapeError
	switch {
	case errors.As(err, &configErr), errors.As(err, &shapeErr):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return 499 // client closed request
	default:
		return http.StatusInternalServerError
	}
}
