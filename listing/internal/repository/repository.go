package repository

//go:generate mockgen -source=repository.go -destination=mock/repository.go -package=mock

import (
	"context"
	"errors"

	"tourbook/listing/pkg/model"
)

// ErrNotFound is returned when a requested record is not found.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a record violates a uniqueness constraint.
var ErrConflict = errors.New("record already exists")

// ErrTransient marks a transaction aborted by the database because of a
// concurrent one, such as a serialization failure or a deadlock. The
// whole transaction may be retried.
var ErrTransient = errors.New("transient transaction failure")

// Store opens transactions against the entity store.
type Store interface {
	// WithinTx runs fn in a single transaction. The transaction commits
	// if fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of entity store operations available inside a transaction.
type Tx interface {
	// GetReview returns a review by id or ErrNotFound.
	GetReview(ctx context.Context, id model.ReviewID) (*model.Review, error)
	// ListApprovedReviews returns every approved review of a subject.
	ListApprovedReviews(ctx context.Context, ref model.SubjectRef) ([]model.Review, error)
	// ListReviews returns the reviews of a subject, newest first.
	ListReviews(ctx context.Context, ref model.SubjectRef, approvedOnly bool) ([]model.Review, error)
	// UpsertReview inserts or replaces a review. It returns ErrNotFound
	// when the referenced subject does not exist.
	UpsertReview(ctx context.Context, review *model.Review) error
	// DeleteReview removes a review or returns ErrNotFound.
	DeleteReview(ctx context.Context, id model.ReviewID) error

	// LockSubject returns the subject and holds a write intent on it
	// until the transaction ends. Returns ErrNotFound if missing.
	LockSubject(ctx context.Context, ref model.SubjectRef) (*model.Subject, error)
	// UpdateAggregate writes the derived aggregate onto a subject.
	UpdateAggregate(ctx context.Context, ref model.SubjectRef, agg model.Aggregate) error

	// PutSubject inserts or updates a subject. The stored aggregate is
	// left untouched on update.
	PutSubject(ctx context.Context, subject *model.Subject) error
	// GetSubject returns a subject or ErrNotFound.
	GetSubject(ctx context.Context, ref model.SubjectRef) (*model.Subject, error)
	// DeleteSubject removes a subject together with its reviews and
	// returns the number of reviews removed.
	DeleteSubject(ctx context.Context, ref model.SubjectRef) (int, error)
	// ListSubjects returns all subjects of the given kind.
	ListSubjects(ctx context.Context, kind model.Kind) ([]model.Subject, error)

	// NextBookingSequence returns a monotonically increasing number
	// used to derive booking numbers.
	NextBookingSequence(ctx context.Context) (int64, error)
	// CreateBooking stores a new booking.
	CreateBooking(ctx context.Context, booking *model.Booking) error
	// GetBooking returns a booking by its number or ErrNotFound.
	GetBooking(ctx context.Context, number model.BookingNumber) (*model.Booking, error)
	// UpdateBookingStatus persists a new status and modification time.
	UpdateBookingStatus(ctx context.Context, booking *model.Booking) error
}

// SubjectTables maps each subject kind to its table in the SQL backends.
var SubjectTables = map[model.Kind]string{
	model.KindBusiness:    "businesses",
	model.KindTouristSpot: "tourist_spots",
	model.KindEvent:       "events",
}

// ReferenceColumns names the nullable per-kind reference columns in
// the reviews and bookings tables.
var ReferenceColumns = map[model.Kind]string{
	model.KindBusiness:    "business_id",
	model.KindTouristSpot: "tourist_spot_id",
	model.KindEvent:       "event_id",
}

// ReferenceArgs spreads ref over the three reference columns in
// business, tourist spot, event order.
func ReferenceArgs(ref model.SubjectRef) (business, touristSpot, event *string) {
	id := string(ref.ID)
	switch ref.Kind {
	case model.KindBusiness:
		business = &id
	case model.KindTouristSpot:
		touristSpot = &id
	case model.KindEvent:
		event = &id
	}
	return business, touristSpot, event
}

// RefFromColumns rebuilds a subject reference from the three reference
// columns of a bookings row.
func RefFromColumns(business, touristSpot, event *string) (model.SubjectRef, error) {
	switch {
	case business != nil && touristSpot == nil && event == nil:
		return model.BusinessRef(model.SubjectID(*business)), nil
	case touristSpot != nil && business == nil && event == nil:
		return model.TouristSpotRef(model.SubjectID(*touristSpot)), nil
	case event != nil && business == nil && touristSpot == nil:
		return model.EventRef(model.SubjectID(*event)), nil
	}
	return model.SubjectRef{}, model.ErrMultipleOrNoSubject
}

// RecordFromColumns builds a review record from nullable row columns.
func RecordFromColumns(id, reviewer, kind string, business, touristSpot, event *string) *model.ReviewRecord {
	rec := &model.ReviewRecord{
		ID:         model.ReviewID(id),
		ReviewerID: model.UserID(reviewer),
		Kind:       model.Kind(kind),
	}
	if business != nil {
		v := model.SubjectID(*business)
		rec.BusinessID = &v
	}
	if touristSpot != nil {
		v := model.SubjectID(*touristSpot)
		rec.TouristSpotID = &v
	}
	if event != nil {
		v := model.SubjectID(*event)
		rec.EventID = &v
	}
	return rec
}
