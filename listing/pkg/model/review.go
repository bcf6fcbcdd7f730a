package model

import (
	"fmt"
	"time"
)

// ReviewID defines a review id.
type ReviewID string

// UserID defines a user id.
type UserID string

// RatingValue defines the star rating of a review.
type RatingValue int

// Rating bounds.
const (
	MinRating = RatingValue(1)
	MaxRating = RatingValue(5)
)

// ReviewRecord is the stored and wire shape of a review, with one
// nullable reference column per subject kind.
type ReviewRecord struct {
	ID            ReviewID   `json:"id"`
	ReviewerID    UserID     `json:"reviewerId"`
	Kind          Kind       `json:"kind"`
	BusinessID    *SubjectID `json:"businessId"`
	TouristSpotID *SubjectID `json:"touristSpotId"`
	EventID       *SubjectID `json:"eventId"`
	Rating        int        `json:"rating"`
	Title         string     `json:"title,omitempty"`
	Comment       string     `json:"comment,omitempty"`
	IsApproved    bool       `json:"isApproved"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Review is a validated review pointing at exactly one subject.
type Review struct {
	ID         ReviewID    `json:"id"`
	ReviewerID UserID      `json:"reviewerId"`
	Subject    SubjectRef  `json:"subject"`
	Rating     RatingValue `json:"rating"`
	Title      string      `json:"title,omitempty"`
	Comment    string      `json:"comment,omitempty"`
	IsApproved bool        `json:"isApproved"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

func (r *Review) String() string {
	return fmt.Sprintf("Review{id=%s, subject=%s, reviewer=%s, rating=%d, approved=%t}", r.ID, r.Subject, r.ReviewerID, r.Rating, r.IsApproved)
}

// Record converts a review into its record shape.
func (r *Review) Record() *ReviewRecord {
	rec := &ReviewRecord{
		ID:         r.ID,
		ReviewerID: r.ReviewerID,
		Kind:       r.Subject.Kind,
		Rating:     int(r.Rating),
		Title:      r.Title,
		Comment:    r.Comment,
		IsApproved: r.IsApproved,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	id := r.Subject.ID
	switch r.Subject.Kind {
	case KindBusiness:
		rec.BusinessID = &id
	case KindTouristSpot:
		rec.TouristSpotID = &id
	case KindEvent:
		rec.EventID = &id
	}
	return rec
}

// ReviewFromRecord validates a record and converts it into a review.
func ReviewFromRecord(rec *ReviewRecord) (*Review, error) {
	ref, err := ValidateReview(rec)
	if err != nil {
		return nil, err
	}
	return &Review{
		ID:         rec.ID,
		ReviewerID: rec.ReviewerID,
		Subject:    ref,
		Rating:     RatingValue(rec.Rating),
		Title:      rec.Title,
		Comment:    rec.Comment,
		IsApproved: rec.IsApproved,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}, nil
}
