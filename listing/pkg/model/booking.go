package model

import "time"

// BookingID defines a booking id.
type BookingID string

// BookingNumber is the human-readable booking reference.
type BookingNumber string

// BookingStatus defines the status of a booking.
type BookingStatus string

// Booking statuses.
const (
	BookingPending   = BookingStatus("pending")
	BookingConfirmed = BookingStatus("confirmed")
	BookingCancelled = BookingStatus("cancelled")
	BookingCompleted = BookingStatus("completed")
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

// CanTransition reports whether a booking may move from one status to another.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	for _, v := range bookingTransitions[s] {
		if v == to {
			return true
		}
	}
	return false
}

// Booking is a reservation of a subject by a user.
type Booking struct {
	ID        BookingID     `json:"id"`
	Number    BookingNumber `json:"number"`
	UserID    UserID        `json:"userId"`
	Subject   SubjectRef    `json:"subject"`
	Status    BookingStatus `json:"status"`
	Guests    int           `json:"guests"`
	VisitDate time.Time     `json:"visitDate"`
	Notes     string        `json:"notes,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
