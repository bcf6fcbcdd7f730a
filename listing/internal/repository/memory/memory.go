package memory

import (
	"context"
	"sort"
	"sync"

	"tourbook/listing/internal/repository"
	"tourbook/listing/pkg/model"
	"tourbook/pkg/logging"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const tracerID = "listing-repository-memory"

type state struct {
	subjects   map[model.SubjectRef]model.Subject
	reviews    map[model.ReviewID]model.Review
	bookings   map[model.BookingNumber]model.Booking
	bookingSeq int64
}

func (s *state) clone() *state {
	c := &state{
		subjects:   make(map[model.SubjectRef]model.Subject, len(s.subjects)),
		reviews:    make(map[model.ReviewID]model.Review, len(s.reviews)),
		bookings:   make(map[model.BookingNumber]model.Booking, len(s.bookings)),
		bookingSeq: s.bookingSeq,
	}
	for k, v := range s.subjects {
		c.subjects[k] = v
	}
	for k, v := range s.reviews {
		c.reviews[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	return c
}

// Repository defines an in-memory entity store. Transactions are
// serialized and work on a private copy that replaces the committed
// state on success.
type Repository struct {
	mu     sync.Mutex
	data   *state
	logger *zap.Logger
}

// New creates a new memory repository.
func New(logger *zap.Logger) *Repository {
	logger = logger.With(
		zap.String(logging.FieldComponent, "repository"),
		zap.String(logging.FieldType, "memory"),
	)
	return &Repository{
		data: &state{
			subjects: map[model.SubjectRef]model.Subject{},
			reviews:  map[model.ReviewID]model.Review{},
			bookings: map[model.BookingNumber]model.Booking{},
		},
		logger: logger,
	}
}

// WithinTx runs fn against a snapshot and commits it if fn succeeds.
// Calls must not be nested.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/WithinTx")
	defer span.End()
	r.mu.Lock()
	defer r.mu.Unlock()
	staged := r.data.clone()
	if err := fn(ctx, &tx{s: staged}); err != nil {
		r.logger.Debug("Rolling back transaction", zap.Error(err))
		return err
	}
	r.data = staged
	return nil
}

type tx struct {
	s *state
}

func (t *tx) GetReview(_ context.Context, id model.ReviewID) (*model.Review, error) {
	r, ok := t.s.reviews[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (t *tx) ListApprovedReviews(ctx context.Context, ref model.SubjectRef) ([]model.Review, error) {
	return t.ListReviews(ctx, ref, true)
}

func (t *tx) ListReviews(_ context.Context, ref model.SubjectRef, approvedOnly bool) ([]model.Review, error) {
	var res []model.Review
	for _, r := range t.s.reviews {
		if r.Subject != ref || (approvedOnly && !r.IsApproved) {
			continue
		}
		res = append(res, r)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (t *tx) UpsertReview(_ context.Context, review *model.Review) error {
	if _, ok := t.s.subjects[review.Subject]; !ok {
		return repository.ErrNotFound
	}
	t.s.reviews[review.ID] = *review
	return nil
}

func (t *tx) DeleteReview(_ context.Context, id model.ReviewID) error {
	if _, ok := t.s.reviews[id]; !ok {
		return repository.ErrNotFound
	}
	delete(t.s.reviews, id)
	return nil
}

func (t *tx) LockSubject(ctx context.Context, ref model.SubjectRef) (*model.Subject, error) {
	// The whole transaction already holds the store lock.
	return t.GetSubject(ctx, ref)
}

func (t *tx) UpdateAggregate(_ context.Context, ref model.SubjectRef, agg model.Aggregate) error {
	s, ok := t.s.subjects[ref]
	if !ok {
		return repository.ErrNotFound
	}
	s.Aggregate = agg
	t.s.subjects[ref] = s
	return nil
}

func (t *tx) PutSubject(_ context.Context, subject *model.Subject) error {
	s := *subject
	if old, ok := t.s.subjects[s.Ref]; ok {
		s.Aggregate = old.Aggregate
		s.CreatedAt = old.CreatedAt
	}
	t.s.subjects[s.Ref] = s
	return nil
}

func (t *tx) GetSubject(_ context.Context, ref model.SubjectRef) (*model.Subject, error) {
	s, ok := t.s.subjects[ref]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (t *tx) DeleteSubject(_ context.Context, ref model.SubjectRef) (int, error) {
	if _, ok := t.s.subjects[ref]; !ok {
		return 0, repository.ErrNotFound
	}
	delete(t.s.subjects, ref)
	n := 0
	for id, r := range t.s.reviews {
		if r.Subject == ref {
			delete(t.s.reviews, id)
			n++
		}
	}
	for num, b := range t.s.bookings {
		if b.Subject == ref {
			delete(t.s.bookings, num)
		}
	}
	return n, nil
}

func (t *tx) ListSubjects(_ context.Context, kind model.Kind) ([]model.Subject, error) {
	var res []model.Subject
	for ref, s := range t.s.subjects {
		if ref.Kind == kind {
			res = append(res, s)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Ref.ID < res[j].Ref.ID })
	return res, nil
}

func (t *tx) NextBookingSequence(_ context.Context) (int64, error) {
	t.s.bookingSeq++
	return t.s.bookingSeq, nil
}

func (t *tx) CreateBooking(_ context.Context, booking *model.Booking) error {
	if _, ok := t.s.subjects[booking.Subject]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := t.s.bookings[booking.Number]; ok {
		return repository.ErrConflict
	}
	t.s.bookings[booking.Number] = *booking
	return nil
}

func (t *tx) GetBooking(_ context.Context, number model.BookingNumber) (*model.Booking, error) {
	b, ok := t.s.bookings[number]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (t *tx) UpdateBookingStatus(_ context.Context, booking *model.Booking) error {
	b, ok := t.s.bookings[booking.Number]
	if !ok {
		return repository.ErrNotFound
	}
	b.Status = booking.Status
	b.UpdatedAt = booking.UpdatedAt
	t.s.bookings[booking.Number] = b
	return nil
}
