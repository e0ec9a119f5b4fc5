package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentflow/orchestrator/envelope"
	"github.com/agentflow/orchestrator/orchestrator"
)

// statusForKind maps a non-success envelope's error kind onto an HTTP
// status, per spec.md §6: "4xx on client errors ... 5xx on internal
// errors."
func statusForKind(kind string) int {
	switch orchestrator.Kind(kind) {
	case orchestrator.KindInvalidRequest:
		return http.StatusBadRequest
	case orchestrator.KindSecurityError:
		return http.StatusForbidden
	case orchestrator.KindNoAgents:
		return http.StatusUnprocessableEntity
	case orchestrator.KindCancelled:
		return http.StatusGatewayTimeout
	case orchestrator.KindGateway, orchestrator.KindAgentFailure, orchestrator.KindValidation, orchestrator.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleQuery(c *gin.Context) {
	var body queryRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("malformed request body: %v", err)})
		return
	}

	req := envelope.Request{
		Query:     body.Query,
		SessionID: body.SessionID,
		Fields:    body.Fields,
	}

	if body.Stream {
		s.streamQuery(c, req)
		return
	}

	resp := s.pipeline.Process(c.Request.Context(), req, nil)
	if !resp.Success && len(resp.Errors) > 0 {
		c.JSON(statusForKind(resp.Errors[0].ErrorKind), resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// streamQuery runs the pipeline against a background channel and relays
// each Event as an SSE frame, grounded on ui/transports/sse/sse.go's
// sendEvent. A comment heartbeat is sent every 15s of channel idle so
// proxies don't time out the connection (spec.md §6).
func (s *Server) streamQuery(c *gin.Context, req envelope.Request) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan orchestrator.Event, 32)
	go func() {
		defer close(events)
		s.pipeline.Process(c.Request.Context(), req, events)
	}()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSEEvent(c.Writer, evt); err != nil {
				return
			}
			flusher.Flush()
			ticker.Reset(heartbeatInterval)
		case <-ticker.C:
			if _, err := fmt.Fprint(c.Writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, evt orchestrator.Event) error {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, data)
	return err
}

// healthResponse is GET /health's body, per spec.md §6.
type healthResponse struct {
	Status           string   `json:"status"`
	RegisteredAgents int      `json:"registered_agents"`
	OpenCircuits     []string `json:"open_circuits"`
}

func (s *Server) handleHealth(c *gin.Context) {
	enabled := s.registry.ListEnabled()
	var openCircuits []string
	if s.breakers != nil {
		openCircuits = s.breakers.OpenCircuits()
	}
	open := make(map[string]bool, len(openCircuits))
	for _, name := range openCircuits {
		open[name] = true
	}

	healthy := 0
	for _, d := range enabled {
		if !open[d.Name] {
			healthy++
		}
	}

	status := "unhealthy"
	code := http.StatusServiceUnavailable
	if healthy > 0 {
		status = "healthy"
		code = http.StatusOK
	}

	c.JSON(code, healthResponse{
		Status:           status,
		RegisteredAgents: len(enabled),
		OpenCircuits:     openCircuits,
	})
}

func (s *Server) handleReload(c *gin.Context) {
	if s.loader == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "no agent loader configured"})
		return
	}
	descriptors, err := s.loader()
	if err != nil {
		s.logger.Error("httpapi: failed to load agent descriptors for reload", map[string]any{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	result := s.registry.Reload(descriptors)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleStats(c *gin.Context) {
	if s.metrics == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}
