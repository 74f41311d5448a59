// Package agents defines the capability agent contract, its typed payloads,
// and the concrete agents the orchestrator dispatches.
package agents

import (
	"context"
	"time"

	"go.uber.org/zap"

	"analyst-backend/application/ports"
)

// CapabilityAgent is one schedulable capability. Execute must honor context
// cancellation: the orchestrator enforces the per-agent deadline through ctx.
type CapabilityAgent interface {
	// Name returns the stable capability name used in logs and metrics
	Name() string

	// Execute runs the capability against the typed input
	Execute(ctx context.Context, input Input) (Output, error)
}

// validatingAgent rejects invalid input before the wrapped agent runs.
type validatingAgent struct {
	next CapabilityAgent
}

// WithValidation wraps an agent so every dispatch validates its input first.
// All agents reject empty or missing payloads with the same validation error.
func WithValidation(next CapabilityAgent) CapabilityAgent {
	return &validatingAgent{next: next}
}

func (a *validatingAgent) Name() string { return a.next.Name() }

func (a *validatingAgent) Execute(ctx context.Context, input Input) (Output, error) {
	if err := input.Validate(); err != nil {
		return Output{}, err
	}
	return a.next.Execute(ctx, input)
}

// loggingAgent logs dispatch start and outcome around the wrapped agent.
type loggingAgent struct {
	next   CapabilityAgent
	logger *zap.Logger
}

// WithLogging wraps an agent with structured start/finish logging.
func WithLogging(next CapabilityAgent, logger *zap.Logger) CapabilityAgent {
	return &loggingAgent{next: next, logger: logger}
}

func (a *loggingAgent) Name() string { return a.next.Name() }

func (a *loggingAgent) Execute(ctx context.Context, input Input) (Output, error) {
	start := time.Now()
	a.logger.Info("agent execution starting",
		zap.String("agent", a.next.Name()),
		zap.String("kind", string(input.Kind)))

	out, err := a.next.Execute(ctx, input)
	if err != nil {
		a.logger.Warn("agent execution failed",
			zap.String("agent", a.next.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return out, err
	}

	a.logger.Info("agent execution finished",
		zap.String("agent", a.next.Name()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Float64("confidence", out.Confidence))
	return out, nil
}

// metricsAgent records dispatch outcomes into the metrics collector.
type metricsAgent struct {
	next    CapabilityAgent
	metrics ports.MetricsRecorder
}

// WithMetrics wraps an agent so each dispatch is observed.
func WithMetrics(next CapabilityAgent, metrics ports.MetricsRecorder) CapabilityAgent {
	return &metricsAgent{next: next, metrics: metrics}
}

func (a *metricsAgent) Name() string { return a.next.Name() }

func (a *metricsAgent) Execute(ctx context.Context, input Input) (Output, error) {
	start := time.Now()
	out, err := a.next.Execute(ctx, input)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	a.metrics.RecordExecution(a.next.Name(), outcome, time.Since(start).Seconds())
	return out, err
}

// Instrument applies the standard decorator chain: validation innermost so
// invalid input is still logged and counted, then metrics, then logging.
func Instrument(agent CapabilityAgent, logger *zap.Logger, metrics ports.MetricsRecorder) CapabilityAgent {
	return WithLogging(WithMetrics(WithValidation(agent), metrics), logger)
}
