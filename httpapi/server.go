// Package httpapi is the HTTP front door described at its interface in
// spec.md §6: POST /v1/query (sync or SSE streaming), GET /health,
// POST /agents/reload, GET /stats. Routing is gin, grounded on
// cmd/tarsy/main.go's router setup.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentflow/orchestrator/config"
	"github.com/agentflow/orchestrator/orchestrator"
	"github.com/agentflow/orchestrator/registry"
	"github.com/agentflow/orchestrator/resilience"
	"github.com/agentflow/orchestrator/telemetry"
)

// Server bundles the orchestrator pipeline with the registry and breaker
// state the health/reload/stats endpoints need direct access to.
type Server struct {
	pipeline *orchestrator.Pipeline
	registry *registry.Registry
	breakers *resilience.Registry
	metrics  *telemetry.Metrics
	logger   telemetry.Logger
	loader   AgentLoader

	router *gin.Engine
}

// AgentLoader reloads agent descriptors from configuration for the
// /agents/reload endpoint. *config.Config's AgentsFile path is the usual
// source; tests may substitute a fake.
type AgentLoader func() ([]registry.Descriptor, error)

// LoaderFromFile returns an AgentLoader reading descriptors from path via
// config.LoadAgents.
func LoaderFromFile(path string) AgentLoader {
	return func() ([]registry.Descriptor, error) {
		return config.LoadAgents(path)
	}
}

// New builds a Server and registers its routes. logger and metrics may be
// nil; a nil logger is replaced with telemetry.NoopLogger.
func New(pipeline *orchestrator.Pipeline, reg *registry.Registry, breakers *resilience.Registry, metrics *telemetry.Metrics, logger telemetry.Logger, loader AgentLoader) *Server {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	s := &Server{
		pipeline: pipeline,
		registry: reg,
		breakers: breakers,
		metrics:  metrics,
		logger:   logger,
		loader:   loader,
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.routes()
	return s
}

// Engine exposes the underlying gin.Engine, mainly so cmd/orchestratord
// can hand it to an http.Server for graceful shutdown.
func (s *Server) Engine() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.POST("/v1/query", s.handleQuery)
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/agents/reload", s.handleReload)
	s.router.GET("/stats", s.handleStats)
}

// queryRequest mirrors the request envelope plus the two transport-level
// fields spec.md §6 adds at the HTTP boundary.
type queryRequest struct {
	Query     string         `json:"query"`
	SessionID string         `json:"session_id"`
	Fields    map[string]any `json:"fields"`
	Stream    bool           `json:"stream"`
}

const heartbeatInterval = 15 * time.Second
