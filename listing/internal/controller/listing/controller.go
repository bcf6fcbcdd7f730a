package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourbook/listing/internal/repository"
	"tourbook/listing/pkg/model"
	"tourbook/pkg/logging"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a subject does not exist.
var ErrNotFound = errors.New("subject not found")

// ErrInvalidSubject is returned for subjects with an unknown kind,
// a status not allowed for their kind or a missing name.
var ErrInvalidSubject = errors.New("invalid subject")

type aggregateCache interface {
	Invalidate(ctx context.Context, ref model.SubjectRef) error
}

type clock interface {
	Stamp(createdAt, updatedAt *time.Time)
}

// Controller defines the subject catalogue controller.
type Controller struct {
	store  repository.Store
	cache  aggregateCache
	clock  clock
	logger *zap.Logger
}

// New creates a subject catalogue controller.
func New(store repository.Store, cache aggregateCache, clock clock, logger *zap.Logger) *Controller {
	logger = logger.With(
		zap.String(logging.FieldComponent, "controller"),
		zap.String(logging.FieldType, "listing"),
	)
	return &Controller{store: store, cache: cache, clock: clock, logger: logger}
}

func validate(s *model.Subject) error {
	if !s.Ref.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSubject, s.Ref.Kind)
	}
	if s.Ref.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidSubject)
	}
	if s.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidSubject)
	}
	if !model.StatusAllowed(s.Ref.Kind, s.Status) {
		return fmt.Errorf("%w: status %q is not valid for %s", ErrInvalidSubject, s.Status, s.Ref.Kind)
	}
	if s.Ref.Kind != model.KindEvent && (s.StartsAt != nil || s.EndsAt != nil) {
		return fmt.Errorf("%w: only events have a schedule", ErrInvalidSubject)
	}
	if s.StartsAt != nil && s.EndsAt != nil && s.EndsAt.Before(*s.StartsAt) {
		return fmt.Errorf("%w: event ends before it starts", ErrInvalidSubject)
	}
	return nil
}

// PutSubject creates or updates a subject. An empty status becomes the
// default status of the kind. The stored aggregate is never taken from
// the input.
func (c *Controller) PutSubject(ctx context.Context, subject *model.Subject) (*model.Subject, error) {
	s := *subject
	if s.Status == "" {
		s.Status = model.DefaultStatus(s.Ref.Kind)
	}
	if err := validate(&s); err != nil {
		return nil, err
	}
	var res *model.Subject
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		s.CreatedAt = time.Time{}
		if old, err := tx.GetSubject(ctx, s.Ref); err == nil {
			s.CreatedAt = old.CreatedAt
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		c.clock.Stamp(&s.CreatedAt, &s.UpdatedAt)
		if err := tx.PutSubject(ctx, &s); err != nil {
			return err
		}
		var err error
		res, err = tx.GetSubject(ctx, s.Ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("Stored subject", zap.String(logging.FieldSubject, s.Ref.String()), zap.String("status", string(s.Status)))
	return res, nil
}

// GetSubject returns a subject.
func (c *Controller) GetSubject(ctx context.Context, ref model.SubjectRef) (*model.Subject, error) {
	var res *model.Subject
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		res, err = tx.GetSubject(ctx, ref)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return err
	})
	return res, err
}

// DeleteSubject removes a subject together with its reviews and bookings.
func (c *Controller) DeleteSubject(ctx context.Context, ref model.SubjectRef) error {
	var removed int
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		removed, err = tx.DeleteSubject(ctx, ref)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return err
	})
	if err != nil {
		return err
	}
	if err := c.cache.Invalidate(ctx, ref); err != nil {
		c.logger.Warn("Failed to evict aggregate", zap.String(logging.FieldSubject, ref.String()), zap.Error(err))
	}
	c.logger.Info("Deleted subject", zap.String(logging.FieldSubject, ref.String()), zap.Int("reviews", removed))
	return nil
}

// ListSubjects returns every subject of kind.
func (c *Controller) ListSubjects(ctx context.Context, kind model.Kind) ([]model.Subject, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSubject, kind)
	}
	var res []model.Subject
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		res, err = tx.ListSubjects(ctx, kind)
		return err
	})
	return res, err
}
