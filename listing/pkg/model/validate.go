package model

import (
	"errors"
	"fmt"
)

// ErrValidation is the parent of every review validation error.
var ErrValidation = errors.New("invalid review")

// Review validation errors.
var (
	ErrMultipleOrNoSubject = fmt.Errorf("%w: exactly one subject reference must be set", ErrValidation)
	ErrKindMismatch        = fmt.Errorf("%w: kind does not match subject reference", ErrValidation)
	ErrInvalidRating       = fmt.Errorf("%w: rating must be an integer between %d and %d", ErrValidation, MinRating, MaxRating)
)

// ValidateReview checks that a review record references exactly one
// subject, that its kind matches that reference and that the rating is
// in range. It returns the referenced subject on success.
func ValidateReview(rec *ReviewRecord) (SubjectRef, error) {
	if rec == nil {
		return SubjectRef{}, ErrMultipleOrNoSubject
	}
	var refs []SubjectRef
	if rec.BusinessID != nil {
		refs = append(refs, BusinessRef(*rec.BusinessID))
	}
	if rec.TouristSpotID != nil {
		refs = append(refs, TouristSpotRef(*rec.TouristSpotID))
	}
	if rec.EventID != nil {
		refs = append(refs, EventRef(*rec.EventID))
	}
	if len(refs) != 1 {
		return SubjectRef{}, fmt.Errorf("%w (got %d)", ErrMultipleOrNoSubject, len(refs))
	}
	ref := refs[0]
	if rec.Kind != ref.Kind {
		return SubjectRef{}, fmt.Errorf("%w: kind %q, reference %q", ErrKindMismatch, rec.Kind, ref.Kind)
	}
	if rec.Rating < int(MinRating) || rec.Rating > int(MaxRating) {
		return SubjectRef{}, fmt.Errorf("%w (got %d)", ErrInvalidRating, rec.Rating)
	}
	return ref, nil
}
