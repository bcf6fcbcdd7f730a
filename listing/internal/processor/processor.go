package processor

import (
	"context"
	"time"

	"tourbook/listing/internal/auth"
	"tourbook/listing/internal/controller/review"
	"tourbook/listing/pkg/model"
	"tourbook/pkg/logging"

	"go.uber.org/zap"
)

const lockKey = "locks/service/listing/reconcile"

// LockProvider defines a distributed Lock provider.
type LockProvider interface {
	Acquire(ctx context.Context, key string) (bool, func() error, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, kind model.Kind, check model.CapabilityCheck) (review.ReconcileResult, error)
}

// Processor periodically recomputes every stored aggregate. Only the
// instance holding the lock runs a pass.
type Processor struct {
	logger       *zap.Logger
	lockProvider LockProvider
	reconciler   reconciler
	interval     time.Duration
	timeout      time.Duration
}

// New creates a new reconcile processor.
func New(logger *zap.Logger, lockProvider LockProvider, reconciler reconciler, interval time.Duration) *Processor {
	logger = logger.With(
		zap.String(logging.FieldComponent, "processor"),
		zap.String(logging.FieldType, "reconcile"),
	)
	return &Processor{
		logger:       logger,
		lockProvider: lockProvider,
		reconciler:   reconciler,
		interval:     interval,
		timeout:      5 * time.Minute,
	}
}

// Start runs a pass every interval until ctx is done.
func (p *Processor) Start(ctx context.Context) error {
	p.logger.Info("Starting the reconcile processor", zap.Duration("interval", p.interval))
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				p.logger.Error("Reconcile pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce runs a single pass if the lock can be taken. It reports
// whether the pass ran.
func (p *Processor) RunOnce(ctx context.Context) (bool, error) {
	acquired, release, err := p.lockProvider.Acquire(ctx, lockKey)
	if err != nil {
		return false, err
	}
	defer func() {
		if err := release(); err != nil {
			p.logger.Error("Failed to release the lock", zap.Error(err))
		}
	}()
	if !acquired {
		p.logger.Debug("Lock is held by another instance, skipping pass")
		return false, nil
	}
	p.logger.Info("Lock has been acquired, starting reconciliation")
	return true, p.process(ctx)
}

func (p *Processor) process(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	res, err := p.reconciler.Reconcile(ctx, "", auth.System)
	if err != nil {
		return err
	}
	p.logger.Info("Reconciliation completed", zap.Int("checked", res.Checked), zap.Int("corrected", res.Corrected))
	return nil
}
