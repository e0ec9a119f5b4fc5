package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/agentflow/orchestrator/registry"
)

// RemoteToolAdapter invokes a named tool on an external tool server over
// HTTP, pooling connections the way the teacher's Redis client pools
// connections to its backend (see core/redis_client.go).
type RemoteToolAdapter struct {
	descriptor registry.Descriptor
	toolName   string
	client     *http.Client
	limiter    *rate.Limiter
}

// NewRemoteToolAdapter builds an adapter that POSTs tool invocations to
// baseURL+"/tools/"+toolName. The HTTP client reuses a shared transport so
// repeated calls reuse TCP connections.
func NewRemoteToolAdapter(d registry.Descriptor, toolName string) *RemoteToolAdapter {
	return &RemoteToolAdapter{
		descriptor: d,
		toolName:   toolName,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rateLimiterFor(d),
	}
}

type toolRequest struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

// Call implements Adapter.
func (a *RemoteToolAdapter) Call(ctx context.Context, inv Invocation) Response {
	start := time.Now()

	if err := waitRateLimit(ctx, a.limiter); err != nil {
		return Failed(inv.AgentName, FailureRateLimited, err, inv.Attempt, time.Since(start))
	}

	filtered, err := FilterInput(a.descriptor, inv.Input)
	if err != nil {
		return Failed(inv.AgentName, FailureInputRejected, err, inv.Attempt, time.Since(start))
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if !inv.Deadline.IsZero() {
		callCtx, cancel = context.WithDeadline(ctx, inv.Deadline)
		defer cancel()
	}

	body, err := json.Marshal(toolRequest{Tool: a.toolName, Input: filtered})
	if err != nil {
		return Failed(inv.AgentName, FailurePermanent, err, inv.Attempt, time.Since(start))
	}

	url := a.descriptor.Connection + "/tools/" + a.toolName
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Failed(inv.AgentName, FailurePermanent, err, inv.Attempt, time.Since(start))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Query-Id", inv.QueryID)
	req.Header.Set("X-Trace-Id", inv.TraceID)

	resp, err := a.client.Do(req)
	if err != nil {
		kind := FailureTransient
		if callCtx.Err() != nil {
			kind = FailureTimeout
		}
		return Failed(inv.AgentName, kind, err, inv.Attempt, time.Since(start))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Failed(inv.AgentName, FailureTransient, err, inv.Attempt, time.Since(start))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Failed(inv.AgentName, FailureRateLimited, fmt.Errorf("remote tool rate limited: %s", raw), inv.Attempt, time.Since(start))
	case resp.StatusCode >= 500:
		return Failed(inv.AgentName, FailureTransient, fmt.Errorf("remote tool error %d: %s", resp.StatusCode, raw), inv.Attempt, time.Since(start))
	case resp.StatusCode >= 400:
		return Failed(inv.AgentName, FailureInvalidResp, fmt.Errorf("remote tool rejected request %d: %s", resp.StatusCode, raw), inv.Attempt, time.Since(start))
	}

	parsed := gjson.ParseBytes(raw)
	if !parsed.Get("ok").Bool() {
		msg := parsed.Get("error").String()
		if msg == "" {
			msg = "remote tool reported failure"
		}
		return Failed(inv.AgentName, FailureInvalidResp, fmt.Errorf(msg), inv.Attempt, time.Since(start))
	}

	var data any
	if result := parsed.Get("result"); result.Exists() {
		data = result.Value()
	}
	return Succeeded(inv.AgentName, data, inv.Attempt, time.Since(start))
}
