package grpc

import (
	"context"
	"errors"
	"strings"

	"tourbook/gen"
	"tourbook/listing/internal/auth"
	"tourbook/listing/internal/controller/review"
	"tourbook/listing/pkg/model"
	"tourbook/pkg/logging"
	"tourbook/pkg/metrics"

	"github.com/uber-go/tally/v6"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type reviewController interface {
	GetAggregate(ctx context.Context, ref model.SubjectRef) (model.Aggregate, error)
	Recompute(ctx context.Context, ref model.SubjectRef, check model.CapabilityCheck) (*model.Aggregate, error)
	Reconcile(ctx context.Context, kind model.Kind, check model.CapabilityCheck) (review.ReconcileResult, error)
}

// Handler defines a listing gRPC handler.
type Handler struct {
	gen.UnimplementedListingServiceServer
	ctrl                reviewController
	logger              *zap.Logger
	getAggregateMetrics *metrics.EndpointMetrics
	recomputeMetrics    *metrics.EndpointMetrics
	reconcileMetrics    *metrics.EndpointMetrics
}

// New creates a new listing gRPC handler.
func New(ctrl reviewController, logger *zap.Logger, scope tally.Scope) *Handler {
	logger = logger.With(
		zap.String(logging.FieldComponent, "handler"),
		zap.String(logging.FieldType, "grpc"),
	)
	return &Handler{
		ctrl:                ctrl,
		logger:              logger,
		getAggregateMetrics: metrics.NewEndpointMetrics(scope, "GetAggregate"),
		recomputeMetrics:    metrics.NewEndpointMetrics(scope, "Recompute"),
		reconcileMetrics:    metrics.NewEndpointMetrics(scope, "Reconcile"),
	}
}

func stringField(req *structpb.Struct, name string) string {
	if req == nil {
		return ""
	}
	return req.GetFields()[name].GetStringValue()
}

func subjectRef(req *structpb.Struct) (model.SubjectRef, error) {
	ref := model.SubjectRef{
		Kind: model.Kind(stringField(req, gen.FieldKind)),
		ID:   model.SubjectID(stringField(req, gen.FieldID)),
	}
	if !ref.Kind.Valid() || ref.ID == "" {
		return model.SubjectRef{}, status.Error(codes.InvalidArgument, "nil req or invalid kind/id")
	}
	return ref, nil
}

func aggregateFields(agg model.Aggregate) map[string]*structpb.Value {
	avg := structpb.NewNullValue()
	if agg.AverageRating != nil {
		avg = structpb.NewNumberValue(*agg.AverageRating)
	}
	return map[string]*structpb.Value{
		gen.FieldAverageRating: avg,
		gen.FieldReviewCount:   structpb.NewNumberValue(float64(agg.ReviewCount)),
	}
}

func (h *Handler) fail(m *metrics.EndpointMetrics, err error) error {
	switch {
	case errors.Is(err, model.ErrValidation):
		m.InvalidArgumentErrors.Inc(1)
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, review.ErrSubjectNotFound), errors.Is(err, review.ErrNotFound):
		m.NotFoundErrors.Inc(1)
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		m.PermissionErrors.Inc(1)
		return status.Error(codes.PermissionDenied, err.Error())
	}
	m.InternalErrors.Inc(1)
	h.logger.Error("Request failed", zap.Error(err))
	return status.Error(codes.Internal, err.Error())
}

func check(ctx context.Context) model.CapabilityCheck {
	p, _ := auth.PrincipalFromContext(ctx)
	return auth.Policy(p)
}

// GetAggregate returns the stored aggregate of a subject.
func (h *Handler) GetAggregate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	h.getAggregateMetrics.Calls.Inc(1)
	ref, err := subjectRef(req)
	if err != nil {
		h.getAggregateMetrics.InvalidArgumentErrors.Inc(1)
		return nil, err
	}
	agg, err := h.ctrl.GetAggregate(ctx, ref)
	if err != nil {
		return nil, h.fail(h.getAggregateMetrics, err)
	}
	h.getAggregateMetrics.Successes.Inc(1)
	return &structpb.Struct{Fields: aggregateFields(agg)}, nil
}

// Recompute rebuilds the aggregate of a subject. Missing subjects are
// reported with found=false.
func (h *Handler) Recompute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	h.recomputeMetrics.Calls.Inc(1)
	ref, err := subjectRef(req)
	if err != nil {
		h.recomputeMetrics.InvalidArgumentErrors.Inc(1)
		return nil, err
	}
	agg, err := h.ctrl.Recompute(ctx, ref, check(ctx))
	if err != nil {
		return nil, h.fail(h.recomputeMetrics, err)
	}
	h.recomputeMetrics.Successes.Inc(1)
	if agg == nil {
		return &structpb.Struct{Fields: map[string]*structpb.Value{gen.FieldFound: structpb.NewBoolValue(false)}}, nil
	}
	fields := aggregateFields(*agg)
	fields[gen.FieldFound] = structpb.NewBoolValue(true)
	return &structpb.Struct{Fields: fields}, nil
}

// Reconcile recomputes every subject of a kind, or of all kinds.
func (h *Handler) Reconcile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	h.reconcileMetrics.Calls.Inc(1)
	res, err := h.ctrl.Reconcile(ctx, model.Kind(stringField(req, gen.FieldKind)), check(ctx))
	if err != nil {
		return nil, h.fail(h.reconcileMetrics, err)
	}
	h.reconcileMetrics.Successes.Inc(1)
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		gen.FieldChecked:   structpb.NewNumberValue(float64(res.Checked)),
		gen.FieldCorrected: structpb.NewNumberValue(float64(res.Corrected)),
	}}, nil
}

// AuthInterceptor attaches the principal of a bearer token in the
// authorization metadata to the request context. Calls without a
// token proceed anonymously; invalid tokens are rejected.
func AuthInterceptor(tokens *auth.Tokens) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return handler(ctx, req)
		}
		token, ok := strings.CutPrefix(values[0], "Bearer ")
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "malformed authorization metadata")
		}
		p, err := tokens.Parse(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(auth.WithPrincipal(ctx, p), req)
	}
}
