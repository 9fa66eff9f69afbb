package scan

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/steriline/plantsim/internal/metadata"
)

const defaultCoordinatorPollInterval = 5 * time.Second

// Coordinator orchestrates the runner based on batch status in MySQL. It
// enables the plant while processing batches exist and marks them completed
// once a full production cycle finishes.
type Coordinator struct {
	runner       *Runner
	repo         *metadata.Repository
	pollInterval time.Duration
	logger       *zap.Logger
}

// CoordinatorOption customises coordinator behaviour.
type CoordinatorOption func(*Coordinator)

// WithCoordinatorPollInterval overrides how frequently MySQL is polled for
// active batches.
func WithCoordinatorPollInterval(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// NewCoordinator wires the runner with the metadata repository to control the
// plant lifecycle.
func NewCoordinator(runner *Runner, repo *metadata.Repository, logger *zap.Logger, opts ...CoordinatorOption) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	coord := &Coordinator{
		runner:       runner,
		repo:         repo,
		pollInterval: defaultCoordinatorPollInterval,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(coord)
	}
	if coord.runner != nil {
		coord.runner.RegisterCycleListener(coord)
	}
	return coord
}

// Start begins background orchestration until the context is cancelled.
func (c *Coordinator) Start(ctx context.Context) {
	if c.runner == nil || c.repo == nil {
		c.logger.Info("batch coordinator inactive (runner or repository missing)")
		return
	}

	if err := c.sync(ctx); err != nil {
		c.logger.Error("batch coordinator initial sync failed", zap.Error(err))
	}

	go c.run(ctx)
}

func (c *Coordinator) run(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("batch coordinator stopped")
			return
		case <-ticker.C:
			if err := c.sync(ctx); err != nil {
				c.logger.Error("batch coordinator sync failed", zap.Error(err))
			}
		}
	}
}

func (c *Coordinator) sync(ctx context.Context) error {
	active, err := c.repo.HasActiveBatches(ctx)
	if err != nil {
		return err
	}
	if active {
		c.runner.Enable()
	} else {
		c.runner.Disable()
	}
	return nil
}

// OnCycleComplete marks processing batches as completed when the plant
// finishes a full production cycle.
func (c *Coordinator) OnCycleComplete(ctx context.Context, completedAt time.Time, cycle uint64) {
	if c.repo == nil {
		return
	}

	batches, err := c.repo.ListActiveBatches(ctx)
	if err != nil {
		c.logger.Error("batch coordinator list active batches failed", zap.Error(err))
		return
	}
	if len(batches) == 0 {
		return
	}

	completionTime := completedAt.UTC()
	if completionTime.IsZero() {
		completionTime = time.Now().UTC()
	}

	for _, batch := range batches {
		if err := c.repo.MarkBatchCompleted(ctx, batch.ID, completionTime); err != nil {
			if errors.Is(err, metadata.ErrBatchNotFound) {
				continue
			}
			c.logger.Error("batch coordinator completion failed",
				zap.String("batch", batch.BatchNumber), zap.Error(err))
			continue
		}
		c.logger.Info("batch completed",
			zap.String("batch", batch.BatchNumber),
			zap.Uint64("cycle", cycle))
	}

	remaining, err := c.repo.HasActiveBatches(ctx)
	if err != nil {
		c.logger.Error("batch coordinator post-completion check failed", zap.Error(err))
		return
	}
	if !remaining {
		c.runner.Disable()
	}
}
