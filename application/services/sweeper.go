package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"analyst-backend/application/agents"
	"analyst-backend/application/ports"
	"analyst-backend/domain/core/entities"
	pkgerrors "analyst-backend/pkg/errors"
)

// SweeperConfig controls the periodic redispatch loop.
type SweeperConfig struct {
	// Interval between sweep passes
	Interval time.Duration

	// Staleness is how old an agent's last execution must be before the
	// sweep redispatches it
	Staleness time.Duration
}

// Sweeper periodically redispatches enabled agents whose last execution has
// gone stale. All dispatches funnel through the orchestrator so the sweep is
// subject to the same busy, timeout and retry rules as manual triggers; a
// busy agent is skipped, never queued.
type Sweeper struct {
	orchestrator *Orchestrator
	agentRepo    ports.AgentRepository
	mu           sync.RWMutex
	config       SweeperConfig
	logger       *zap.Logger
}

// NewSweeper creates a sweeper over the orchestrator
func NewSweeper(orchestrator *Orchestrator, agentRepo ports.AgentRepository, config SweeperConfig, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		orchestrator: orchestrator,
		agentRepo:    agentRepo,
		config:       config,
		logger:       logger,
	}
}

// SetConfig replaces the sweep settings. The new interval takes effect on
// the next pass.
func (s *Sweeper) SetConfig(config SweeperConfig) {
	if config.Interval <= 0 || config.Staleness <= 0 {
		return
	}
	s.mu.Lock()
	s.config = config
	s.mu.Unlock()
	s.logger.Info("sweeper reconfigured",
		zap.Duration("interval", config.Interval),
		zap.Duration("staleness", config.Staleness))
}

func (s *Sweeper) snapshot() SweeperConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Run executes sweep passes until the context is cancelled. The interval is
// re-read between passes so runtime reconfiguration applies without restart.
func (s *Sweeper) Run(ctx context.Context) {
	cfg := s.snapshot()
	s.logger.Info("sweeper started",
		zap.Duration("interval", cfg.Interval),
		zap.Duration("staleness", cfg.Staleness))

	timer := time.NewTimer(cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-timer.C:
			s.Sweep(ctx)
			timer.Reset(s.snapshot().Interval)
		}
	}
}

// Sweep runs one pass over every owner's stale agents
func (s *Sweeper) Sweep(ctx context.Context) {
	owners, err := s.agentRepo.Owners(ctx)
	if err != nil {
		s.logger.Error("listing owners for sweep", zap.Error(err))
		return
	}

	cutoff := time.Now().Add(-s.snapshot().Staleness)
	dispatched := 0
	for _, owner := range owners {
		stale, err := s.agentRepo.FindNeedingExecution(ctx, owner, cutoff)
		if err != nil {
			s.logger.Error("finding stale agents",
				zap.String("owner", owner.String()), zap.Error(err))
			continue
		}

		for _, agent := range stale {
			if agent.Status() == entities.AgentStatusPaused {
				continue
			}
			input, err := agents.InputFromParameters(agent.Type(), agent.Parameters())
			if err != nil || input.Validate() != nil {
				// Agents without dispatchable parameters are manual-only.
				continue
			}

			_, err = s.orchestrator.TriggerAgent(ctx, owner, agent.ID(), input)
			switch {
			case err == nil:
				dispatched++
			case pkgerrors.IsAgentBusy(err):
				s.logger.Debug("sweep skipped busy agent",
					zap.String("agentId", agent.ID().String()))
			default:
				s.logger.Warn("sweep dispatch failed",
					zap.String("agentId", agent.ID().String()), zap.Error(err))
			}
		}
	}

	if dispatched > 0 {
		s.logger.Info("sweep pass finished", zap.Int("dispatched", dispatched))
	}
}
