package model

import (
	"fmt"
	"time"
)

// Kind defines the kind of a reviewable subject.
type Kind string

// Reviewable subject kinds.
const (
	KindBusiness    = Kind("business")
	KindTouristSpot = Kind("tourist_spot")
	KindEvent       = Kind("event")
)

// Kinds lists every reviewable kind in a stable order.
var Kinds = []Kind{KindBusiness, KindTouristSpot, KindEvent}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindBusiness, KindTouristSpot, KindEvent:
		return true
	}
	return false
}

// SubjectID defines a subject id. Together with Kind identifies
// a unique subject across all kinds.
type SubjectID string

// SubjectRef points at exactly one reviewable subject.
type SubjectRef struct {
	Kind Kind      `json:"kind"`
	ID   SubjectID `json:"id"`
}

// BusinessRef returns a reference to a business.
func BusinessRef(id SubjectID) SubjectRef { return SubjectRef{Kind: KindBusiness, ID: id} }

// TouristSpotRef returns a reference to a tourist spot.
func TouristSpotRef(id SubjectID) SubjectRef { return SubjectRef{Kind: KindTouristSpot, ID: id} }

// EventRef returns a reference to an event.
func EventRef(id SubjectID) SubjectRef { return SubjectRef{Kind: KindEvent, ID: id} }

func (r SubjectRef) String() string {
	return fmt.Sprintf("%s/%s", r.Kind, r.ID)
}

// Status defines the lifecycle status of a subject. The allowed
// values depend on the subject kind.
type Status string

// Business statuses.
const (
	BusinessPending  = Status("pending")
	BusinessApproved = Status("approved")
	BusinessRejected = Status("rejected")
	BusinessInactive = Status("inactive")
)

// Tourist spot statuses.
const (
	TouristSpotActive           = Status("active")
	TouristSpotInactive         = Status("inactive")
	TouristSpotUnderMaintenance = Status("under_maintenance")
	TouristSpotComingSoon       = Status("coming_soon")
)

// Event statuses.
const (
	EventUpcoming  = Status("upcoming")
	EventOngoing   = Status("ongoing")
	EventCompleted = Status("completed")
	EventCancelled = Status("cancelled")
)

var statusesByKind = map[Kind][]Status{
	KindBusiness:    {BusinessPending, BusinessApproved, BusinessRejected, BusinessInactive},
	KindTouristSpot: {TouristSpotActive, TouristSpotInactive, TouristSpotUnderMaintenance, TouristSpotComingSoon},
	KindEvent:       {EventUpcoming, EventOngoing, EventCompleted, EventCancelled},
}

// DefaultStatus returns the status a new subject of kind k starts in.
func DefaultStatus(k Kind) Status {
	switch k {
	case KindBusiness:
		return BusinessPending
	case KindTouristSpot:
		return TouristSpotComingSoon
	case KindEvent:
		return EventUpcoming
	}
	return ""
}

// StatusAllowed reports whether s is a valid status for kind k.
func StatusAllowed(k Kind, s Status) bool {
	for _, v := range statusesByKind[k] {
		if v == s {
			return true
		}
	}
	return false
}

// Bookable reports whether a subject in this status accepts bookings.
func (s *Subject) Bookable() bool {
	switch s.Ref.Kind {
	case KindBusiness:
		return s.Status == BusinessApproved
	case KindTouristSpot:
		return s.Status == TouristSpotActive
	case KindEvent:
		return s.Status == EventUpcoming || s.Status == EventOngoing
	}
	return false
}

// Aggregate is the derived rating summary stored on a subject.
// AverageRating is nil when the subject has no approved reviews.
type Aggregate struct {
	AverageRating *float64 `json:"averageRating"`
	ReviewCount   int      `json:"reviewCount"`
}

// Equal reports whether two aggregates hold the same values.
func (a Aggregate) Equal(b Aggregate) bool {
	if a.ReviewCount != b.ReviewCount {
		return false
	}
	if a.AverageRating == nil || b.AverageRating == nil {
		return a.AverageRating == nil && b.AverageRating == nil
	}
	return *a.AverageRating == *b.AverageRating
}

func (a Aggregate) String() string {
	if a.AverageRating == nil {
		return fmt.Sprintf("Aggregate{average=null, count=%d}", a.ReviewCount)
	}
	return fmt.Sprintf("Aggregate{average=%.2f, count=%d}", *a.AverageRating, a.ReviewCount)
}

// Subject is a reviewable entity: a business, a tourist spot or an event.
type Subject struct {
	Ref         SubjectRef `json:"ref"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	OwnerID     UserID     `json:"ownerId,omitempty"`
	Status      Status     `json:"status"`
	// StartsAt and EndsAt are only meaningful for events.
	StartsAt  *time.Time `json:"startsAt,omitempty"`
	EndsAt    *time.Time `json:"endsAt,omitempty"`
	Aggregate Aggregate  `json:"aggregate"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
