package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tourbook/listing/internal/auth"
	"tourbook/listing/internal/controller/booking"
	"tourbook/listing/internal/controller/listing"
	"tourbook/listing/internal/controller/review"
	"tourbook/listing/pkg/model"
	"tourbook/pkg/logging"
	"tourbook/pkg/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/uber-go/tally/v6"
	"go.uber.org/zap"
)

type reviewController interface {
	CreateReview(ctx context.Context, rec *model.ReviewRecord, check model.CapabilityCheck) (*model.Review, error)
	UpdateReview(ctx context.Context, rec *model.ReviewRecord, check model.CapabilityCheck) (*model.Review, error)
	DeleteReview(ctx context.Context, id model.ReviewID, check model.CapabilityCheck) error
	SetApproval(ctx context.Context, id model.ReviewID, approved bool, check model.CapabilityCheck) (*model.Review, error)
	Recompute(ctx context.Context, ref model.SubjectRef, check model.CapabilityCheck) (*model.Aggregate, error)
	GetAggregate(ctx context.Context, ref model.SubjectRef) (model.Aggregate, error)
	ListReviews(ctx context.Context, ref model.SubjectRef, approvedOnly bool) ([]model.Review, error)
}

type listingController interface {
	PutSubject(ctx context.Context, subject *model.Subject) (*model.Subject, error)
	GetSubject(ctx context.Context, ref model.SubjectRef) (*model.Subject, error)
	DeleteSubject(ctx context.Context, ref model.SubjectRef) error
	ListSubjects(ctx context.Context, kind model.Kind) ([]model.Subject, error)
}

type bookingController interface {
	Create(ctx context.Context, b *model.Booking) (*model.Booking, error)
	Get(ctx context.Context, number model.BookingNumber) (*model.Booking, error)
	UpdateStatus(ctx context.Context, number model.BookingNumber, status model.BookingStatus) (*model.Booking, error)
}

type rateLimiter interface {
	Middleware(next http.Handler) http.Handler
}

// Handler defines the listing HTTP API.
type Handler struct {
	reviews  reviewController
	listings listingController
	bookings bookingController
	tokens   *auth.Tokens
	validate *validator.Validate
	scope    tally.Scope
	metrics  map[string]*metrics.EndpointMetrics
	logger   *zap.Logger
}

// New creates a new listing HTTP handler.
func New(reviews reviewController, listings listingController, bookings bookingController, tokens *auth.Tokens, scope tally.Scope, logger *zap.Logger) *Handler {
	logger = logger.With(
		zap.String(logging.FieldComponent, "handler"),
		zap.String(logging.FieldType, "http"),
	)
	return &Handler{
		reviews:  reviews,
		listings: listings,
		bookings: bookings,
		tokens:   tokens,
		validate: validator.New(),
		scope:    scope,
		metrics:  map[string]*metrics.EndpointMetrics{},
		logger:   logger,
	}
}

// Routes returns the API router. A nil limiter disables rate limiting.
func (h *Handler) Routes(l rateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if l != nil {
		r.Use(l.Middleware)
	}
	r.Use(h.authenticate)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/subjects/{kind}", h.endpoint("ListSubjects", h.listSubjects))
		r.Route("/subjects/{kind}/{id}", func(r chi.Router) {
			r.Put("/", h.endpoint("PutSubject", h.putSubject))
			r.Get("/", h.endpoint("GetSubject", h.getSubject))
			r.Delete("/", h.endpoint("DeleteSubject", h.deleteSubject))
			r.Get("/aggregate", h.endpoint("GetAggregate", h.getAggregate))
			r.Get("/reviews", h.endpoint("ListReviews", h.listReviews))
			r.Post("/recompute", h.endpoint("Recompute", h.recompute))
		})
		r.Post("/reviews", h.endpoint("CreateReview", h.createReview))
		r.Put("/reviews/{id}", h.endpoint("UpdateReview", h.updateReview))
		r.Delete("/reviews/{id}", h.endpoint("DeleteReview", h.deleteReview))
		r.Post("/reviews/{id}/approval", h.endpoint("SetApproval", h.setApproval))
		r.Post("/bookings", h.endpoint("CreateBooking", h.createBooking))
		r.Get("/bookings/{number}", h.endpoint("GetBooking", h.getBooking))
		r.Patch("/bookings/{number}", h.endpoint("UpdateBookingStatus", h.updateBookingStatus))
	})
	return r
}

// authenticate attaches the principal of a bearer token to the request
// context. Requests without a token proceed anonymously.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "malformed authorization header"})
			return
		}
		p, err := h.tokens.Parse(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

// errBadRequest marks request decoding and DTO validation failures.
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// endpoint wraps fn with endpoint metrics and maps its error to a status code.
func (h *Handler) endpoint(name string, fn handlerFunc) http.HandlerFunc {
	m, ok := h.metrics[name]
	if !ok {
		m = metrics.NewEndpointMetrics(h.scope, name)
		h.metrics[name] = m
	}
	return func(w http.ResponseWriter, r *http.Request) {
		m.Calls.Inc(1)
		err := fn(w, r)
		if err == nil {
			m.Successes.Inc(1)
			return
		}
		code := statusCode(err)
		switch code {
		case http.StatusBadRequest, http.StatusConflict:
			m.InvalidArgumentErrors.Inc(1)
		case http.StatusNotFound:
			m.NotFoundErrors.Inc(1)
		case http.StatusUnauthorized, http.StatusForbidden:
			m.PermissionErrors.Inc(1)
		default:
			m.InternalErrors.Inc(1)
			h.logger.Error("Request failed", zap.String("endpoint", name), zap.Error(err))
			writeJSON(w, code, errorResponse{Error: http.StatusText(code)})
			return
		}
		writeJSON(w, code, errorResponse{Error: err.Error()})
	}
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, model.ErrValidation),
		errors.Is(err, listing.ErrInvalidSubject),
		errors.Is(err, booking.ErrInvalidBooking):
		return http.StatusBadRequest
	case errors.Is(err, review.ErrNotFound),
		errors.Is(err, review.ErrSubjectNotFound),
		errors.Is(err, listing.ErrNotFound),
		errors.Is(err, booking.ErrNotFound),
		errors.Is(err, booking.ErrSubjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, review.ErrAlreadyExists),
		errors.Is(err, booking.ErrNotBookable),
		errors.Is(err, booking.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func (h *Handler) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func principal(r *http.Request) (model.Principal, error) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return model.Principal{}, auth.ErrUnauthenticated
	}
	return p, nil
}

func staff(r *http.Request) error {
	p, err := principal(r)
	if err != nil {
		return err
	}
	if p.Role != model.RoleStaff && p.Role != model.RoleAdmin {
		return fmt.Errorf("%w: staff role required", auth.ErrForbidden)
	}
	return nil
}

func pathRef(r *http.Request) (model.SubjectRef, error) {
	ref := model.SubjectRef{
		Kind: model.Kind(chi.URLParam(r, "kind")),
		ID:   model.SubjectID(chi.URLParam(r, "id")),
	}
	if !ref.Kind.Valid() {
		return model.SubjectRef{}, fmt.Errorf("%w: unknown kind %q", errBadRequest, ref.Kind)
	}
	return ref, nil
}
