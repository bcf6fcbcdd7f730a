package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tourbook/listing/internal/auth"
	"tourbook/listing/pkg/model"

	"github.com/go-chi/chi/v5"
)

type subjectRequest struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	OwnerID     string     `json:"ownerId" validate:"max=64"`
	Status      string     `json:"status" validate:"max=32"`
	StartsAt    *time.Time `json:"startsAt"`
	EndsAt      *time.Time `json:"endsAt"`
}

type reviewRequest struct {
	Kind          string  `json:"kind"`
	BusinessID    *string `json:"businessId" validate:"omitempty,max=64"`
	TouristSpotID *string `json:"touristSpotId" validate:"omitempty,max=64"`
	EventID       *string `json:"eventId" validate:"omitempty,max=64"`
	Rating        int     `json:"rating"`
	Title         string  `json:"title" validate:"max=200"`
	Comment       string  `json:"comment" validate:"max=5000"`
	IsApproved    bool    `json:"isApproved"`
}

type approvalRequest struct {
	Approved *bool `json:"approved" validate:"required"`
}

type bookingRequest struct {
	Kind      string    `json:"kind" validate:"required"`
	SubjectID string    `json:"subjectId" validate:"required,max=64"`
	Guests    int       `json:"guests" validate:"required,min=1,max=100"`
	VisitDate time.Time `json:"visitDate" validate:"required"`
	Notes     string    `json:"notes" validate:"max=2000"`
}

type bookingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed cancelled completed"`
}

type aggregateResponse struct {
	Subject model.SubjectRef `json:"subject"`
	model.Aggregate
}

func subjectID(v *string) *model.SubjectID {
	if v == nil {
		return nil
	}
	id := model.SubjectID(*v)
	return &id
}

func (req *reviewRequest) record(id model.ReviewID, reviewer model.UserID) *model.ReviewRecord {
	return &model.ReviewRecord{
		ID:            id,
		ReviewerID:    reviewer,
		Kind:          model.Kind(req.Kind),
		BusinessID:    subjectID(req.BusinessID),
		TouristSpotID: subjectID(req.TouristSpotID),
		EventID:       subjectID(req.EventID),
		Rating:        req.Rating,
		Title:         req.Title,
		Comment:       req.Comment,
		IsApproved:    req.IsApproved,
	}
}

func (h *Handler) listSubjects(w http.ResponseWriter, r *http.Request) error {
	res, err := h.listings.ListSubjects(r.Context(), model.Kind(chi.URLParam(r, "kind")))
	if err != nil {
		return err
	}
	if res == nil {
		res = []model.Subject{}
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

func (h *Handler) putSubject(w http.ResponseWriter, r *http.Request) error {
	if err := staff(r); err != nil {
		return err
	}
	ref, err := pathRef(r)
	if err != nil {
		return err
	}
	var req subjectRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	res, err := h.listings.PutSubject(r.Context(), &model.Subject{
		Ref:         ref,
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     model.UserID(req.OwnerID),
		Status:      model.Status(req.Status),
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

func (h *Handler) getSubject(w http.ResponseWriter, r *http.Request) error {
	ref, err := pathRef(r)
	if err != nil {
		return err
	}
	res, err := h.listings.GetSubject(r.Context(), ref)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

func (h *Handler) deleteSubject(w http.ResponseWriter, r *http.Request) error {
	if err := staff(r); err != nil {
		return err
	}
	ref, err := pathRef(r)
	if err != nil {
		return err
	}
	if err := h.listings.DeleteSubject(r.Context(), ref); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) getAggregate(w http.ResponseWriter, r *http.Request) error {
	ref, err := pathRef(r)
	if err != nil {
		return err
	}
	agg, err := h.reviews.GetAggregate(r.Context(), ref)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, aggregateResponse{Subject: ref, Aggregate: agg})
	return nil
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) error {
	ref, err := pathRef(r)
	if err != nil {
		return err
	}
	// Only staff see reviews still waiting for approval.
	approvedOnly := staff(r) != nil
	if v := r.URL.Query().Get("approved"); v != "" && !approvedOnly {
		if approvedOnly, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("%w: approved must be a boolean", errBadRequest)
		}
	}
	reviews, err := h.reviews.ListReviews(r.Context(), ref, approvedOnly)
	if err != nil {
		return err
	}
	res := make([]*model.ReviewRecord, 0, len(reviews))
	for i := range reviews {
		res = append(res, reviews[i].Record())
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

func (h *Handler) recompute(w http.ResponseWriter, r *http.Request) error {
	ref, err := pathRef(r)
	if err != nil {
		return err
	}
	p, err := principal(r)
	if err != nil {
		return err
	}
	agg, err := h.reviews.Recompute(r.Context(), ref, auth.Policy(p))
	if err != nil {
		return err
	}
	if agg == nil {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	writeJSON(w, http.StatusOK, aggregateResponse{Subject: ref, Aggregate: *agg})
	return nil
}

func (h *Handler) createReview(w http.ResponseWriter, r *http.Request) error {
	p, err := principal(r)
	if err != nil {
		return err
	}
	var req reviewRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	res, err := h.reviews.CreateReview(r.Context(), req.record("", p.UserID), auth.Policy(p))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, res.Record())
	return nil
}

func (h *Handler) updateReview(w http.ResponseWriter, r *http.Request) error {
	p, err := principal(r)
	if err != nil {
		return err
	}
	var req reviewRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	res, err := h.reviews.UpdateReview(r.Context(), req.record(model.ReviewID(chi.URLParam(r, "id")), p.UserID), auth.Policy(p))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res.Record())
	return nil
}

func (h *Handler) deleteReview(w http.ResponseWriter, r *http.Request) error {
	p, err := principal(r)
	if err != nil {
		return err
	}
	if err := h.reviews.DeleteReview(r.Context(), model.ReviewID(chi.URLParam(r, "id")), auth.Policy(p)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) setApproval(w http.ResponseWriter, r *http.Request) error {
	p, err := principal(r)
	if err != nil {
		return err
	}
	var req approvalRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	res, err := h.reviews.SetApproval(r.Context(), model.ReviewID(chi.URLParam(r, "id")), *req.Approved, auth.Policy(p))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res.Record())
	return nil
}

func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request) error {
	p, err := principal(r)
	if err != nil {
		return err
	}
	var req bookingRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	res, err := h.bookings.Create(r.Context(), &model.Booking{
		UserID:    p.UserID,
		Subject:   model.SubjectRef{Kind: model.Kind(req.Kind), ID: model.SubjectID(req.SubjectID)},
		Guests:    req.Guests,
		VisitDate: req.VisitDate,
		Notes:     req.Notes,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, res)
	return nil
}

// ownBooking loads a booking visible to the caller: its author or staff.
func (h *Handler) ownBooking(r *http.Request) (*model.Booking, model.Principal, error) {
	p, err := principal(r)
	if err != nil {
		return nil, p, err
	}
	b, err := h.bookings.Get(r.Context(), model.BookingNumber(chi.URLParam(r, "number")))
	if err != nil {
		return nil, p, err
	}
	if b.UserID != p.UserID && staff(r) != nil {
		return nil, p, fmt.Errorf("%w: booking belongs to another user", auth.ErrForbidden)
	}
	return b, p, nil
}

func (h *Handler) getBooking(w http.ResponseWriter, r *http.Request) error {
	b, _, err := h.ownBooking(r)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, b)
	return nil
}

func (h *Handler) updateBookingStatus(w http.ResponseWriter, r *http.Request) error {
	b, _, err := h.ownBooking(r)
	if err != nil {
		return err
	}
	var req bookingStatusRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	status := model.BookingStatus(req.Status)
	// Guests may only cancel; confirming and completing is up to staff.
	if status != model.BookingCancelled {
		if err := staff(r); err != nil {
			return err
		}
	}
	res, err := h.bookings.UpdateStatus(r.Context(), b.Number, status)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}
