package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourbook/listing/internal/auth"
	"tourbook/listing/internal/repository"
	"tourbook/listing/pkg/model"
	"tourbook/pkg/logging"
	"tourbook/pkg/metrics"

	"github.com/cenkalti/backoff/v5"
	"github.com/uber-go/tally/v6"
	"go.uber.org/zap"
)

// moderationAttempts bounds how often one moderation event is tried
// when the store keeps aborting it as transient.
const moderationAttempts = 5

// ErrNotFound is returned when a review does not exist.
var ErrNotFound = errors.New("review not found")

// ErrSubjectNotFound is returned when the referenced subject does not exist.
var ErrSubjectNotFound = errors.New("subject not found")

// ErrAlreadyExists is returned when creating a review with a taken id.
var ErrAlreadyExists = errors.New("review already exists")

type aggregateCache interface {
	Get(ctx context.Context, ref model.SubjectRef) (model.Aggregate, error)
	Version(ctx context.Context, ref model.SubjectRef) (int64, error)
	Fill(ctx context.Context, ref model.SubjectRef, agg model.Aggregate, version int64) (bool, error)
	Invalidate(ctx context.Context, ref model.SubjectRef) error
}

type moderationIngester interface {
	Ingest(ctx context.Context) (chan model.ModerationEvent, error)
}

type idAssigner interface {
	ReviewID() model.ReviewID
	Stamp(createdAt, updatedAt *time.Time)
}

// Controller defines a review controller. Every write recomputes the
// aggregate of the affected subjects in the same transaction.
type Controller struct {
	store   repository.Store
	cache   aggregateCache
	ids     idAssigner
	metrics *metrics.AggregateMetrics
	logger  *zap.Logger

	// retryBackOff paces retries of moderation events.
	retryBackOff func() backoff.BackOff
}

// New creates a review controller.
func New(store repository.Store, cache aggregateCache, ids idAssigner, scope tally.Scope, logger *zap.Logger) *Controller {
	logger = logger.With(
		zap.String(logging.FieldComponent, "controller"),
		zap.String(logging.FieldType, "review"),
	)
	return &Controller{
		store:        store,
		cache:        cache,
		ids:          ids,
		metrics:      metrics.NewAggregateMetrics(scope),
		logger:       logger,
		retryBackOff: moderationBackOff,
	}
}

func moderationBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

// recomputed collects the aggregates written by one transaction so the
// cache is only invalidated after commit.
type recomputed map[model.SubjectRef]*model.Aggregate

// recompute derives the aggregate of ref from its approved reviews and
// stores it. A missing subject is logged and skipped.
func (c *Controller) recompute(ctx context.Context, tx repository.Tx, ref model.SubjectRef, out recomputed) (*model.Aggregate, error) {
	sw := c.metrics.RecomputeLatency.Start()
	defer sw.Stop()
	if _, err := tx.LockSubject(ctx, ref); errors.Is(err, repository.ErrNotFound) {
		c.logger.Warn("DanglingReferenceWarning: subject does not exist, aggregate left unchanged",
			zap.String(logging.FieldSubject, ref.String()))
		c.metrics.DanglingReferences.Inc(1)
		out[ref] = nil
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	reviews, err := tx.ListApprovedReviews(ctx, ref)
	if err != nil {
		return nil, err
	}
	agg := model.ComputeAggregate(reviews)
	if err := tx.UpdateAggregate(ctx, ref, agg); err != nil {
		return nil, err
	}
	c.metrics.Recomputes.Inc(1)
	c.logger.Debug("Recomputed aggregate", zap.String(logging.FieldSubject, ref.String()), zap.Stringer("aggregate", agg))
	out[ref] = &agg
	return &agg, nil
}

// invalidateCache evicts the aggregates a committed transaction changed.
// Readers refill them from the store. Cache failures only cost a later miss.
func (c *Controller) invalidateCache(ctx context.Context, out recomputed) {
	for ref := range out {
		if err := c.cache.Invalidate(ctx, ref); err != nil {
			c.logger.Warn("Failed to invalidate aggregate cache", zap.String(logging.FieldSubject, ref.String()), zap.Error(err))
		}
	}
}

func (c *Controller) within(ctx context.Context, fn func(ctx context.Context, tx repository.Tx, out recomputed) error) error {
	var out recomputed
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		out = recomputed{}
		return fn(ctx, tx, out)
	})
	if err != nil {
		return err
	}
	c.invalidateCache(ctx, out)
	return nil
}

func subjectErr(err error, ref model.SubjectRef) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrSubjectNotFound, ref)
	}
	return err
}

// CreateReview validates rec and stores it as a new review. An empty
// id is assigned. Creating an approved review also requires the
// approve capability.
func (c *Controller) CreateReview(ctx context.Context, rec *model.ReviewRecord, check model.CapabilityCheck) (*model.Review, error) {
	review, err := model.ReviewFromRecord(rec)
	if err != nil {
		return nil, err
	}
	if review.ID == "" {
		review.ID = c.ids.ReviewID()
	}
	review.CreatedAt, review.UpdatedAt = time.Time{}, time.Time{}
	err = c.within(ctx, func(ctx context.Context, tx repository.Tx, out recomputed) error {
		if _, err := tx.GetReview(ctx, review.ID); err == nil {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, review.ID)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if err := check(ctx, model.ActionCreate, review); err != nil {
			return err
		}
		if review.IsApproved {
			if err := check(ctx, model.ActionApprove, review); err != nil {
				return err
			}
		}
		c.ids.Stamp(&review.CreatedAt, &review.UpdatedAt)
		if err := tx.UpsertReview(ctx, review); err != nil {
			return subjectErr(err, review.Subject)
		}
		_, err := c.recompute(ctx, tx, review.Subject, out)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("Created review", zap.String(logging.FieldReview, string(review.ID)), zap.String(logging.FieldSubject, review.Subject.String()))
	return review, nil
}

// UpdateReview validates rec and replaces the stored review with the
// same id. The author and creation time are kept. Moving a review to
// another subject recomputes both subjects. Approving requires the
// approve capability; edits by callers without it leave the review
// pending.
func (c *Controller) UpdateReview(ctx context.Context, rec *model.ReviewRecord, check model.CapabilityCheck) (*model.Review, error) {
	review, err := model.ReviewFromRecord(rec)
	if err != nil {
		return nil, err
	}
	err = c.within(ctx, func(ctx context.Context, tx repository.Tx, out recomputed) error {
		stored, err := tx.GetReview(ctx, review.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, review.ID)
		} else if err != nil {
			return err
		}
		if err := check(ctx, model.ActionUpdate, stored); err != nil {
			return err
		}
		if err := check(ctx, model.ActionApprove, stored); err != nil {
			if review.IsApproved && !stored.IsApproved {
				return err
			}
			// Edits by callers who cannot approve go back to moderation.
			review.IsApproved = false
		}
		review.ReviewerID = stored.ReviewerID
		review.CreatedAt = stored.CreatedAt
		c.ids.Stamp(&review.CreatedAt, &review.UpdatedAt)
		if err := tx.UpsertReview(ctx, review); err != nil {
			return subjectErr(err, review.Subject)
		}
		if stored.Subject != review.Subject {
			if _, err := c.recompute(ctx, tx, stored.Subject, out); err != nil {
				return err
			}
		}
		_, err = c.recompute(ctx, tx, review.Subject, out)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("Updated review", zap.String(logging.FieldReview, string(review.ID)), zap.String(logging.FieldSubject, review.Subject.String()))
	return review, nil
}

// DeleteReview removes a review and recomputes its subject.
func (c *Controller) DeleteReview(ctx context.Context, id model.ReviewID, check model.CapabilityCheck) error {
	var subject model.SubjectRef
	err := c.within(ctx, func(ctx context.Context, tx repository.Tx, out recomputed) error {
		stored, err := tx.GetReview(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		} else if err != nil {
			return err
		}
		if err := check(ctx, model.ActionDelete, stored); err != nil {
			return err
		}
		if err := tx.DeleteReview(ctx, id); err != nil {
			return err
		}
		subject = stored.Subject
		_, err = c.recompute(ctx, tx, stored.Subject, out)
		return err
	})
	if err != nil {
		return err
	}
	c.logger.Info("Deleted review", zap.String(logging.FieldReview, string(id)), zap.String(logging.FieldSubject, subject.String()))
	return nil
}

// SetApproval moves a review between the pending and approved states.
// The aggregate is recomputed even when the flag does not change.
func (c *Controller) SetApproval(ctx context.Context, id model.ReviewID, approved bool, check model.CapabilityCheck) (*model.Review, error) {
	var review *model.Review
	err := c.within(ctx, func(ctx context.Context, tx repository.Tx, out recomputed) error {
		stored, err := tx.GetReview(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		} else if err != nil {
			return err
		}
		if err := check(ctx, model.ActionApprove, stored); err != nil {
			return err
		}
		stored.IsApproved = approved
		c.ids.Stamp(&stored.CreatedAt, &stored.UpdatedAt)
		if err := tx.UpsertReview(ctx, stored); err != nil {
			return subjectErr(err, stored.Subject)
		}
		review = stored
		_, err = c.recompute(ctx, tx, stored.Subject, out)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("Changed review approval", zap.String(logging.FieldReview, string(id)), zap.Bool("approved", approved))
	return review, nil
}

// Recompute rebuilds the aggregate of ref from its approved reviews.
// It returns nil without error when the subject does not exist.
func (c *Controller) Recompute(ctx context.Context, ref model.SubjectRef, check model.CapabilityCheck) (*model.Aggregate, error) {
	if err := check(ctx, model.ActionRecompute, nil); err != nil {
		return nil, err
	}
	var agg *model.Aggregate
	err := c.within(ctx, func(ctx context.Context, tx repository.Tx, out recomputed) error {
		var err error
		agg, err = c.recompute(ctx, tx, ref, out)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// GetAggregate returns the stored aggregate of ref, reading through the cache.
func (c *Controller) GetAggregate(ctx context.Context, ref model.SubjectRef) (model.Aggregate, error) {
	if agg, err := c.cache.Get(ctx, ref); err == nil {
		c.metrics.CacheHits.Inc(1)
		return agg, nil
	}
	c.metrics.CacheMisses.Inc(1)
	version, verr := c.cache.Version(ctx, ref)
	if verr != nil {
		c.logger.Warn("Failed to read aggregate cache version", zap.String(logging.FieldSubject, ref.String()), zap.Error(verr))
	}
	var agg model.Aggregate
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		s, err := tx.GetSubject(ctx, ref)
		if err != nil {
			return subjectErr(err, ref)
		}
		agg = s.Aggregate
		return nil
	})
	if err != nil {
		return model.Aggregate{}, err
	}
	if verr == nil {
		if _, err := c.cache.Fill(ctx, ref, agg, version); err != nil {
			c.logger.Warn("Failed to cache aggregate", zap.String(logging.FieldSubject, ref.String()), zap.Error(err))
		}
	}
	return agg, nil
}

// GetReview returns a review by id.
func (c *Controller) GetReview(ctx context.Context, id model.ReviewID) (*model.Review, error) {
	var review *model.Review
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		review, err = tx.GetReview(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	})
	return review, err
}

// ListReviews returns the reviews of a subject, newest first.
func (c *Controller) ListReviews(ctx context.Context, ref model.SubjectRef, approvedOnly bool) ([]model.Review, error) {
	var reviews []model.Review
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.GetSubject(ctx, ref); err != nil {
			return subjectErr(err, ref)
		}
		var err error
		reviews, err = tx.ListReviews(ctx, ref, approvedOnly)
		return err
	})
	return reviews, err
}

// ReconcileResult summarizes a reconciliation run.
type ReconcileResult struct {
	Checked   int
	Corrected int
}

// Reconcile recomputes every subject of kind, or of every kind when
// kind is empty, each in its own transaction. Subjects whose stored
// aggregate differed from the recomputed one are counted as corrected.
func (c *Controller) Reconcile(ctx context.Context, kind model.Kind, check model.CapabilityCheck) (ReconcileResult, error) {
	var res ReconcileResult
	if err := check(ctx, model.ActionRecompute, nil); err != nil {
		return res, err
	}
	kinds := model.Kinds
	if kind != "" {
		if !kind.Valid() {
			return res, fmt.Errorf("%w: unknown kind %q", model.ErrValidation, kind)
		}
		kinds = []model.Kind{kind}
	}
	for _, k := range kinds {
		var subjects []model.Subject
		if err := c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			var err error
			subjects, err = tx.ListSubjects(ctx, k)
			return err
		}); err != nil {
			return res, err
		}
		for _, s := range subjects {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			agg, err := c.Recompute(ctx, s.Ref, check)
			if err != nil {
				return res, err
			}
			res.Checked++
			if agg != nil && !agg.Equal(s.Aggregate) {
				res.Corrected++
				c.logger.Warn("Corrected drifted aggregate",
					zap.String(logging.FieldSubject, s.Ref.String()),
					zap.Stringer("stored", s.Aggregate),
					zap.Stringer("recomputed", *agg))
			}
		}
	}
	c.logger.Info("Reconciled aggregates", zap.Int("checked", res.Checked), zap.Int("corrected", res.Corrected))
	return res, nil
}

// ApplyModeration applies a decision of the approval workflow. Events
// for reviews that no longer exist are skipped.
func (c *Controller) ApplyModeration(ctx context.Context, ev *model.ModerationEvent) error {
	var err error
	switch ev.Action {
	case model.ModerationApprove:
		_, err = c.SetApproval(ctx, ev.ReviewID, true, auth.System)
	case model.ModerationReject:
		_, err = c.SetApproval(ctx, ev.ReviewID, false, auth.System)
	case model.ModerationDelete:
		err = c.DeleteReview(ctx, ev.ReviewID, auth.System)
	default:
		c.logger.Warn("Skipping moderation event with unknown action", zap.Stringer("event", ev))
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		c.logger.Warn("Skipping moderation event for missing review", zap.Stringer("event", ev))
		return nil
	}
	return err
}

// StartIngestion applies moderation events until the ingester channel
// is closed. Events aborted by a transient store failure are retried
// with backoff; events that still fail are logged and dropped so one bad
// event cannot stop ingestion.
func (c *Controller) StartIngestion(ctx context.Context, ingester moderationIngester) error {
	ch, err := ingester.Ingest(ctx)
	if err != nil {
		return err
	}
	for ev := range ch {
		c.logger.Debug("Consumed moderation event", zap.Stringer("event", &ev))
		if err := c.applyWithRetry(ctx, &ev); err != nil {
			c.logger.Error("Dropping moderation event", zap.Stringer("event", &ev), zap.Error(err))
		}
	}
	return nil
}

func (c *Controller) applyWithRetry(ctx context.Context, ev *model.ModerationEvent) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.ApplyModeration(ctx, ev)
		if err != nil && !errors.Is(err, repository.ErrTransient) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(c.retryBackOff()),
		backoff.WithMaxTries(moderationAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("Retrying moderation event", zap.Stringer("event", ev), zap.Duration("backoff", next), zap.Error(err))
		}),
	)
	return err
}
