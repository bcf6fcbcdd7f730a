package booking

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

// ErrNotFound is returned when a booking does not exist.
var ErrNotFound = errors.New("booking not found")

// ErrSubjectNotFound is returned when the booked subject does not exist.
var ErrSubjectNotFound = errors.New("subject not found")

// ErrNotBookable is returned when the subject does not accept bookings
// in its current status.
var ErrNotBookable = errors.New("subject is not bookable")

// ErrInvalidTransition is returned for a status change the booking
// lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid booking status transition")

// ErrInvalidBooking is returned for malformed booking requests.
var ErrInvalidBooking = errors.New("invalid booking")

type idAssigner interface {
	BookingID() model.BookingID
	BookingNumber(seq int64) (model.BookingNumber, error)
	Stamp(createdAt, updatedAt *time.Time)
}

// Controller defines a booking controller.
type Controller struct {
	store  repository.Store
	ids    idAssigner
	logger *zap.Logger
}

// New creates a booking controller.
func New(store repository.Store, ids idAssigner, logger *zap.Logger) *Controller {
	logger = logger.With(
		zap.String(logging.FieldComponent, "controller"),
		zap.String(logging.FieldType, "booking"),
	)
	return &Controller{store: store, ids: ids, logger: logger}
}

// Create books a subject for a user. The booking starts pending and
// gets a fresh id and booking number.
func (c *Controller) Create(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	if booking.UserID == "" {
		return nil, fmt.Errorf("%w: missing user", ErrInvalidBooking)
	}
	if booking.Guests < 1 {
		return nil, fmt.Errorf("%w: at least one guest is required", ErrInvalidBooking)
	}
	if !booking.Subject.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidBooking, booking.Subject.Kind)
	}
	b := *booking
	b.ID = c.ids.BookingID()
	b.Status = model.BookingPending
	b.CreatedAt, b.UpdatedAt = time.Time{}, time.Time{}
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		subject, err := tx.GetSubject(ctx, b.Subject)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrSubjectNotFound, b.Subject)
		} else if err != nil {
			return err
		}
		if !subject.Bookable() {
			return fmt.Errorf("%w: %s is %s", ErrNotBookable, b.Subject, subject.Status)
		}
		seq, err := tx.NextBookingSequence(ctx)
		if err != nil {
			return err
		}
		if b.Number, err = c.ids.BookingNumber(seq); err != nil {
			return err
		}
		c.ids.Stamp(&b.CreatedAt, &b.UpdatedAt)
		return tx.CreateBooking(ctx, &b)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("Created booking",
		zap.String(logging.FieldBooking, string(b.Number)),
		zap.String(logging.FieldSubject, b.Subject.String()))
	return &b, nil
}

// Get returns a booking by its number.
func (c *Controller) Get(ctx context.Context, number model.BookingNumber) (*model.Booking, error) {
	var res *model.Booking
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		res, err = tx.GetBooking(ctx, number)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, number)
		}
		return err
	})
	return res, err
}

// UpdateStatus moves a booking to a new status.
func (c *Controller) UpdateStatus(ctx context.Context, number model.BookingNumber, status model.BookingStatus) (*model.Booking, error) {
	var res *model.Booking
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.GetBooking(ctx, number)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, number)
		} else if err != nil {
			return err
		}
		if !b.Status.CanTransition(status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, b.Status, status)
		}
		b.Status = status
		c.ids.Stamp(&b.CreatedAt, &b.UpdatedAt)
		if err := tx.UpdateBookingStatus(ctx, b); err != nil {
			return err
		}
		res = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("Changed booking status", zap.String(logging.FieldBooking, string(number)), zap.String("status", string(status)))
	return res, nil
}
