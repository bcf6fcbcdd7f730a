package identity

import (
	"fmt"
	"strings"
	"time"

	"tourbook/listing/pkg/model"

	"github.com/google/uuid"
	hashids "github.com/speps/go-hashids/v2"
)

const bookingPrefix = "TB-"

// bookingAlphabet leaves out characters that are easy to misread.
const bookingAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Clock returns the current time.
type Clock func() time.Time

// Assigner hands out record identifiers, booking numbers and
// modification timestamps.
type Assigner struct {
	hd  *hashids.HashID
	now Clock
}

// New creates an assigner. The salt keeps booking numbers from being
// guessable from their sequence.
func New(salt string, minLength int, now Clock) (*Assigner, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = minLength
	hd.Alphabet = bookingAlphabet
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Assigner{hd: h, now: now}, nil
}

// ReviewID returns a new review id.
func (a *Assigner) ReviewID() model.ReviewID {
	return model.ReviewID(uuid.NewString())
}

// BookingID returns a new booking id.
func (a *Assigner) BookingID() model.BookingID {
	return model.BookingID(uuid.NewString())
}

// BookingNumber encodes a store sequence value as a booking number.
func (a *Assigner) BookingNumber(seq int64) (model.BookingNumber, error) {
	if seq <= 0 {
		return "", fmt.Errorf("booking sequence must be positive, got %d", seq)
	}
	s, err := a.hd.EncodeInt64([]int64{seq})
	if err != nil {
		return "", err
	}
	return model.BookingNumber(bookingPrefix + strings.ToUpper(s)), nil
}

// BookingSequence decodes a booking number back into its sequence value.
func (a *Assigner) BookingSequence(number model.BookingNumber) (int64, error) {
	s, ok := strings.CutPrefix(string(number), bookingPrefix)
	if !ok {
		return 0, fmt.Errorf("booking number %q has no %s prefix", number, bookingPrefix)
	}
	v, err := a.hd.DecodeInt64WithError(s)
	if err != nil {
		return 0, err
	}
	if len(v) != 1 {
		return 0, fmt.Errorf("booking number %q is malformed", number)
	}
	return v[0], nil
}

// Now returns the current time truncated to microseconds, the
// precision both SQL backends store.
func (a *Assigner) Now() time.Time {
	return a.now().UTC().Truncate(time.Microsecond)
}

// Stamp sets updatedAt to now and createdAt too when it is unset.
func (a *Assigner) Stamp(createdAt, updatedAt *time.Time) {
	now := a.Now()
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}
