// Package server exposes the crawler over HTTP.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prodspider/prodspider/internal/crawler"
	"github.com/prodspider/prodspider/pkg/plugin"
)

// Engine is the crawl operation the server drives. *crawler.Engine
// satisfies it; tests substitute a stub.
type Engine interface {
	Crawl(ctx context.Context, taskID string, domains []string, maxDepth int, progress plugin.ProgressFunc) (*plugin.TaskReport, error)
}

// Pinger reports backend reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the HTTP API to the crawl engine and storage.
type Server struct {
	engine    Engine
	tasks     *TaskManager
	store     plugin.Storage
	fast      Pinger
	durable   Pinger
	redisAddr string
	log       zerolog.Logger
}

// Options wires the server's collaborators. Fast and Durable pingers are
// optional; health reports "unknown" for absent backends.
type Options struct {
	Engine    Engine
	Tasks     *TaskManager
	Storage   plugin.Storage
	Fast      Pinger
	Durable   Pinger
	RedisAddr string
	Logger    zerolog.Logger
}

// New creates the HTTP server.
func New(opts Options) *Server {
	return &Server{
		engine:    opts.Engine,
		tasks:     opts.Tasks,
		store:     opts.Storage,
		fast:      opts.Fast,
		durable:   opts.Durable,
		redisAddr: opts.RedisAddr,
		log:       opts.Logger.With().Str("component", "server").Logger(),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.handleRoot)
	r.GET("/health", s.handleHealth)
	r.POST("/crawl", s.handleCrawl)
	r.GET("/task/:task_id", s.handleTaskStatus)
	r.DELETE("/task/:task_id", s.handleRevoke)
	r.GET("/urls/:task_id/*domain", s.handleURLs)
	return r
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "prodspider",
		"message": "distributed product URL crawler",
		"redis":   s.redisAddr,
		"endpoints": []string{
			"POST /crawl",
			"GET /task/{task_id}",
			"DELETE /task/{task_id}",
			"GET /urls/{task_id}/{domain}",
			"GET /health",
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	check := func(p Pinger) string {
		if p == nil {
			return "unknown"
		}
		if err := p.Ping(ctx); err != nil {
			return "unreachable"
		}
		return "ok"
	}

	fast := check(s.fast)
	durable := check(s.durable)
	status := http.StatusOK
	if fast == "unreachable" || durable == "unreachable" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":  map[bool]string{true: "ok", false: "degraded"}[status == http.StatusOK],
		"redis":   fast,
		"mongodb": durable,
	})
}

// MaxDepth is a pointer so an omitted field defaults to 3 while an
// explicit 0 is rejected by validation.
type crawlRequest struct {
	Domains  []string `json:"domains"`
	MaxDepth *int     `json:"max_depth"`
}

func (s *Server) handleCrawl(c *gin.Context) {
	var req crawlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	maxDepth := 3
	if req.MaxDepth != nil {
		maxDepth = *req.MaxDepth
	}

	var domains []string
	for _, d := range req.Domains {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}
	if err := crawler.ValidateInput(domains, maxDepth); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	taskID := uuid.NewString()
	ctx := s.tasks.Create(taskID, domains, maxDepth)

	go s.runTask(ctx, taskID, domains, maxDepth)

	c.JSON(http.StatusOK, gin.H{
		"task_id":   taskID,
		"status":    "Crawling started",
		"domains":   domains,
		"max_depth": maxDepth,
	})
}

func (s *Server) runTask(ctx context.Context, taskID string, domains []string, maxDepth int) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("task_id", taskID).Interface("panic", r).Msg("task panicked")
			s.tasks.SetState(taskID, StateFailure)
		}
	}()

	s.tasks.SetState(taskID, StateStarted)
	s.log.Info().Str("task_id", taskID).Strs("domains", domains).
		Int("max_depth", maxDepth).Msg("task started")

	report, err := s.engine.Crawl(ctx, taskID, domains, maxDepth, func(ev plugin.ProgressEvent) {
		s.tasks.SetProgress(taskID, ev)
	})
	s.tasks.Finish(taskID, report, err)

	if err != nil {
		s.log.Warn().Str("task_id", taskID).Err(err).Msg("task finished with error")
		return
	}
	s.log.Info().Str("task_id", taskID).Int("urls", report.TotalURLs).Msg("task finished")
}

func (s *Server) handleTaskStatus(c *gin.Context) {
	task := s.tasks.Get(c.Param("task_id"))
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleRevoke(c *gin.Context) {
	taskID := c.Param("task_id")
	terminate := c.Query("terminate") == "true"

	state, ok := s.tasks.Revoke(taskID, terminate)
	if state == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{
			"task_id": taskID,
			"status":  state,
			"error":   "task is not revocable in its current state",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"task_id":    taskID,
		"status":     state,
		"terminated": terminate,
	})
}

// handleURLs reads the discovered set for (task, domain): the fast tier
// first, the durable tier when the fast set has expired, 404 when neither
// has anything.
func (s *Server) handleURLs(c *gin.Context) {
	taskID := c.Param("task_id")
	domain := strings.TrimPrefix(c.Param("domain"), "/")

	urls, err := s.store.FastURLs(c.Request.Context(), taskID, domain)
	if err != nil {
		s.log.Warn().Str("task_id", taskID).Err(err).Msg("fast-tier read failed")
	}
	if len(urls) > 0 {
		c.JSON(http.StatusOK, gin.H{
			"task_id":    taskID,
			"domain":     domain,
			"source":     "redis",
			"urls_count": len(urls),
			"urls":       urls,
		})
		return
	}

	rec, err := s.store.DurableRecord(c.Request.Context(), taskID, domain)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage read failed"})
		return
	}
	if rec == nil || len(rec.URLs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no URLs found for task and domain"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"task_id":    taskID,
		"domain":     domain,
		"source":     "mongodb",
		"urls_count": len(rec.URLs),
		"urls":       rec.URLs,
		"timestamp":  rec.Timestamp,
	})
}
