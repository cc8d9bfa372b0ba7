// Package server exposes the transcription pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/guiyumin/textube/internal/core/ai/transcriber"
	"github.com/guiyumin/textube/internal/core/pipeline"
	"github.com/guiyumin/textube/internal/core/version"
)

// Response is the standard API response structure
type Response struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

// JobRequest is the request body for POST /api/jobs
type JobRequest struct {
	Source       string `json:"source" binding:"required"`
	Engine       string `json:"engine,omitempty"`
	Tier         string `json:"tier,omitempty"`
	ConfirmLarge bool   `json:"confirm_large,omitempty"`
}

// Orchestrator starts jobs and reports the active one.
type Orchestrator interface {
	StartJob(ctx context.Context, sourceRef string, sel transcriber.Selector) (*pipeline.Handle, error)
	Active() *pipeline.Handle
}

// Options configures the server.
type Options struct {
	Port          int
	APIKey        string
	DefaultEngine string
	DefaultTier   string
}

// Server is the HTTP server for textube
type Server struct {
	opts   Options
	orch   Orchestrator
	models *transcriber.ModelManager
	jobs   *JobStore
	log    zerolog.Logger
	server *http.Server
	engine *gin.Engine
}

// NewServer creates a new HTTP server
func NewServer(opts Options, orch Orchestrator, models *transcriber.ModelManager, log zerolog.Logger) *Server {
	s := &Server{
		opts:   opts,
		orch:   orch,
		models: models,
		jobs:   NewJobStore(time.Hour),
		log:    log,
	}
	s.engine = s.routes()
	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", opts.Port),
		Handler:     s.engine,
		ReadTimeout: 30 * time.Second,
		// event streams stay open for the whole job
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(s.loggingMiddleware())
	if s.opts.APIKey != "" {
		engine.Use(s.authMiddleware())
	}

	api := engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/models", s.handleModels)
	api.POST("/jobs", s.handleStartJob)
	api.GET("/jobs", s.handleListJobs)
	api.DELETE("/jobs", s.handleClearJobs)
	api.GET("/jobs/current", s.handleCurrentJob)
	api.GET("/jobs/:id", s.handleGetJob)
	api.GET("/jobs/:id/events", s.handleJobEvents)
	api.GET("/jobs/:id/ws", s.handleJobSocket)
	api.DELETE("/jobs/:id", s.handleDeleteJob)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{Code: 404, Message: "not found"})
	})
	return engine
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.jobs.Start()

	s.log.Info().Int("port", s.opts.Port).Bool("auth", s.opts.APIKey != "").Msg("starting textube server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop cancels the running job and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if h := s.orch.Active(); h != nil {
		h.Cancel()
		if _, err := h.Wait(ctx); err != nil {
			s.log.Warn().Err(err).Str("job_id", h.ID()).Msg("job did not stop before shutdown deadline")
		}
	}
	s.jobs.Stop()
	return s.server.Shutdown(ctx)
}

// Middleware

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/api/health" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-Key") != s.opts.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Code:    401,
				Message: "invalid or missing API key",
			})
			return
		}
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

// Handlers

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"status":  "ok",
			"version": version.Version,
		},
		Message: "everything is good",
	})
}

func (s *Server) handleModels(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"models":     s.models.ListAvailableModels(),
			"models_dir": s.models.ModelsDir(),
		},
		Message: "ok",
	})
}

func (s *Server) selectorFor(req JobRequest) (transcriber.Selector, error) {
	engine, tier := req.Engine, req.Tier
	if engine == "" && tier == "" {
		engine, tier = s.opts.DefaultEngine, s.opts.DefaultTier
		if engine == string(transcriber.KindStreaming) {
			tier = ""
		}
	}
	return transcriber.ParseSelector(engine, tier)
}

func (s *Server) handleStartJob(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Code: 400, Message: "invalid request: source is required"})
		return
	}

	sel, err := s.selectorFor(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Code: 400, Message: err.Error()})
		return
	}
	if sel.RequiresConfirmation() && !req.ConfirmLarge {
		c.JSON(http.StatusPreconditionRequired, Response{
			Code:    428,
			Data:    gin.H{"advisory": sel.Advisory()},
			Message: "the large tier requires confirm_large: true",
		})
		return
	}

	// jobs outlive the request
	h, err := s.orch.StartJob(context.Background(), req.Source, sel)
	if err != nil {
		switch pipeline.KindOf(err) {
		case pipeline.KindBusy:
			var data interface{}
			if active := s.orch.Active(); active != nil {
				data = gin.H{"active_job": active.ID()}
			}
			c.JSON(http.StatusConflict, Response{Code: 409, Data: data, Message: err.Error()})
		case pipeline.KindInvalidInput:
			c.JSON(http.StatusBadRequest, Response{Code: 400, Message: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, Response{Code: 500, Message: err.Error()})
		}
		return
	}

	job := s.jobs.Track(h)
	s.log.Info().Str("job", job.ID).Str("source", job.Source).Str("engine", sel.String()).Msg("job accepted")

	c.JSON(http.StatusAccepted, Response{
		Code:    202,
		Data:    gin.H{"job": job, "advisory": sel.Advisory()},
		Message: "job started",
	})
}

func (s *Server) handleListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Code: 200, Data: gin.H{"jobs": s.jobs.List()}, Message: "ok"})
}

func (s *Server) handleClearJobs(c *gin.Context) {
	n := s.jobs.ClearHistory()
	c.JSON(http.StatusOK, Response{Code: 200, Data: gin.H{"removed": n}, Message: "history cleared"})
}

func (s *Server) handleCurrentJob(c *gin.Context) {
	h := s.orch.Active()
	if h == nil {
		c.JSON(http.StatusNotFound, Response{Code: 404, Message: "no job is running"})
		return
	}
	job, ok := s.jobs.Get(h.ID())
	if !ok {
		c.JSON(http.StatusNotFound, Response{Code: 404, Message: "no job is running"})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Data: job, Message: "ok"})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, ok := s.jobs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, Response{Code: 404, Message: "job not found"})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Data: job, Message: "ok"})
}

func (s *Server) handleDeleteJob(c *gin.Context) {
	id := c.Param("id")
	job, ok := s.jobs.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, Response{Code: 404, Message: "job not found"})
		return
	}
	if !job.finished() {
		s.jobs.Cancel(id)
		c.JSON(http.StatusAccepted, Response{Code: 202, Data: gin.H{"id": id}, Message: "cancelling job"})
		return
	}
	s.jobs.Remove(id)
	c.JSON(http.StatusOK, Response{Code: 200, Data: gin.H{"id": id}, Message: "job removed"})
}

// handleJobEvents streams job events as server-sent events. Events already
// emitted are replayed first; Last-Event-ID or ?after= skips those seen.
func (s *Server) handleJobEvents(c *gin.Context) {
	id := c.Param("id")
	after := lastEventID(c)

	if _, _, _, ok := s.jobs.EventsAfter(id, after); !ok {
		c.JSON(http.StatusNotFound, Response{Code: 404, Message: "job not found"})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		events, complete, changed, ok := s.jobs.EventsAfter(id, after)
		if !ok {
			return false
		}
		for _, e := range events {
			c.Render(-1, sseEvent(e))
			after = e.Seq
		}
		if complete {
			return false
		}
		if len(events) > 0 {
			return true
		}
		select {
		case <-changed:
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func lastEventID(c *gin.Context) uint64 {
	raw := c.GetHeader("Last-Event-ID")
	if raw == "" {
		raw = c.Query("after")
	}
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
