// Command orchestratord is the orchestrator's process entrypoint: it
// loads configuration, wires the pipeline's dependencies, and serves the
// HTTP API until a termination signal drains it.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/agentflow/orchestrator/agent"
	"github.com/agentflow/orchestrator/agents/calculator"
	"github.com/agentflow/orchestrator/agents/search"
	"github.com/agentflow/orchestrator/agents/weather"
	"github.com/agentflow/orchestrator/config"
	"github.com/agentflow/orchestrator/gateway"
	"github.com/agentflow/orchestrator/httpapi"
	"github.com/agentflow/orchestrator/orchestrator"
	"github.com/agentflow/orchestrator/querylog"
	"github.com/agentflow/orchestrator/reasoning"
	"github.com/agentflow/orchestrator/registry"
	"github.com/agentflow/orchestrator/resilience"
	"github.com/agentflow/orchestrator/session"
	"github.com/agentflow/orchestrator/telemetry"
	"github.com/agentflow/orchestrator/validation"
)

// Exit codes, per spec.md §6.
const (
	exitOK          = 0
	exitFatal       = 1
	exitConfigError = 2
	exitBindError   = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		port       = flag.Int("port", 0, "override the configured HTTP port (0 = use config)")
		agentsFile = flag.String("agents", "", "override the configured agents YAML path")
		rulesFile  = flag.String("rules", "", "override the configured rules YAML path")
	)
	flag.Parse()

	var opts []config.Option
	if *port != 0 {
		opts = append(opts, config.WithPort(*port))
	}
	if *agentsFile != "" {
		opts = append(opts, config.WithAgentsFile(*agentsFile))
	}
	if *rulesFile != "" {
		opts = append(opts, config.WithRulesFile(*rulesFile))
	}

	cfg, err := config.New(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orchestratord: config error: %v\n", err)
		return exitConfigError
	}

	logger, err := telemetry.NewZapLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orchestratord: logger init error: %v\n", err)
		return exitConfigError
	}
	defer logger.Sync()

	tracerProvider := sdktrace.NewTracerProvider()
	telemetry.SetTracerProvider(tracerProvider)
	defer tracerProvider.Shutdown(context.Background())
	tracer := telemetry.NewTracer()

	meterProvider := metric.NewMeterProvider()
	defer meterProvider.Shutdown(context.Background())
	metrics := telemetry.NewMetrics(meterProvider.Meter("github.com/agentflow/orchestrator"))

	breakerSink := telemetry.NewBreakerMetricsSink()

	descriptors, err := config.LoadAgents(cfg.AgentsFile)
	if err != nil {
		logger.Error("failed to load agents file", map[string]any{"error": err.Error(), "path": cfg.AgentsFile})
		return exitConfigError
	}
	reg := registry.New()
	for _, d := range descriptors {
		if err := reg.Register(d); err != nil {
			logger.Warn("skipping invalid agent descriptor", map[string]any{"agent": d.Name, "error": err.Error()})
		}
	}

	rules, ruleSettings, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		logger.Error("failed to load rules file", map[string]any{"error": err.Error(), "path": cfg.RulesFile})
		return exitConfigError
	}

	adapters := builtinAdapters(reg)

	resolver := orchestrator.NewAgentResolver(reg, adapters)
	breakers := resilience.NewRegistry(resilience.BreakerConfig{
		FailureThreshold: 5,
		CoolDown:         30 * time.Second,
		Metrics:          resilience.NewTelemetryMetricsSink(breakerSink),
	})
	executor := resilience.NewExecutor(resolver, breakers, 3, logger)

	var gw gateway.Client
	if cfg.GatewayBaseURL != "" || cfg.GatewayAPIKey != "" {
		gw = gateway.NewAnthropicClient(cfg.GatewayAPIKey, cfg.GatewayBaseURL)
	}

	ruleReasoner := reasoning.NewRuleReasoner(rules, reg)
	var reasoner reasoning.Reasoner = ruleReasoner
	switch cfg.ReasoningStrategy {
	case "ai":
		reasoner = reasoning.NewAIReasoner(gw, reg, logger)
	case "hybrid":
		hybrid := reasoning.NewHybridReasoner(ruleReasoner, reasoning.NewAIReasoner(gw, reg, logger), logger)
		hybrid.ValidateMultiWithAI = ruleSettings.ValidateMultiWithAI
		reasoner = hybrid
	}

	validator := validation.New(gw, logger)
	validator.EnableAICheck = cfg.EnableAIValidation

	var sessions session.Store
	if cfg.SessionRedisURL != "" {
		redisStore, err := session.NewRedisStore(cfg.SessionRedisURL, cfg.SessionIdleTTL)
		if err != nil {
			logger.Error("failed to connect to session redis store", map[string]any{"error": err.Error()})
			return exitConfigError
		}
		sessions = redisStore
	} else {
		sessions = session.New(cfg.SessionIdleTTL)
	}

	logs, err := querylog.NewWriter(cfg.QueryLogDir)
	if err != nil {
		logger.Error("failed to open query log directory", map[string]any{"error": err.Error(), "dir": cfg.QueryLogDir})
		return exitConfigError
	}

	cacheTTL := time.Duration(0)
	if cfg.CacheEnabled {
		cacheTTL = cfg.CacheTTL
	}
	pipeline := orchestrator.New(executor, reasoner, validator, sessions, logs, logger, metrics, cacheTTL)
	pipeline.SetTracer(tracer)

	server := httpapi.New(pipeline, reg, breakers, metrics, logger, httpapi.LoaderFromFile(cfg.AgentsFile))

	handler := otelhttp.NewHandler(server.Engine(), "orchestratord")
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	listenErrs := make(chan error, 1)
	go func() {
		logger.Info("orchestratord listening", map[string]any{"port": cfg.Port})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			listenErrs <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-listenErrs:
		logger.Error("http server failed to bind", map[string]any{"error": err.Error()})
		return exitBindError
	case <-sigChan:
		logger.Info("shutdown signal received, draining", map[string]any{"grace_period": cfg.DrainGracePeriod.String()})
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainGracePeriod)
	defer cancel()
	if err := httpServer.Shutdown(drainCtx); err != nil {
		logger.Error("graceful shutdown failed", map[string]any{"error": err.Error()})
		return exitFatal
	}

	logger.Info("shutdown complete", nil)
	return exitOK
}

// builtinAdapters registers the in-process example agents (calculator,
// search, weather) for every matching descriptor the registry already
// holds, and a RemoteToolAdapter for every remote_tool descriptor. Other
// in_process descriptors get no adapter.
func builtinAdapters(reg *registry.Registry) map[string]agent.Adapter {
	adapters := make(map[string]agent.Adapter)
	for _, d := range reg.ListEnabled() {
		switch {
		case d.Transport == registry.TransportInProcess && d.Name == "calculator":
			adapters[d.Name] = agent.NewInProcessAdapter(d, calculator.New())
		case d.Transport == registry.TransportInProcess && d.Name == "search":
			adapters[d.Name] = agent.NewInProcessAdapter(d, search.New(search.DefaultCorpus()).Call)
		case d.Transport == registry.TransportInProcess && d.Name == "weather":
			adapters[d.Name] = agent.NewInProcessAdapter(d, weather.New(weather.DefaultObservations()).Call)
		case d.Transport == registry.TransportRemote:
			adapters[d.Name] = agent.NewRemoteToolAdapter(d, d.Name)
		}
	}
	return adapters
}
