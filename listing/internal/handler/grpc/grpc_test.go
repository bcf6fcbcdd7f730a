package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"tourbook/gen"
	"tourbook/listing/internal/auth"
	cachememory "tourbook/listing/internal/cache/memory"
	"tourbook/listing/internal/controller/review"
	"tourbook/listing/internal/identity"
	"tourbook/listing/internal/repository"
	"tourbook/listing/internal/repository/memory"
	"tourbook/listing/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v6"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func testSecret() []byte { return []byte("test-secret") }

func newTestClient(t *testing.T) gen.ListingServiceClient {
	t.Helper()
	ctx := context.Background()
	repo := memory.New(zap.NewNop())
	ref := model.BusinessRef("cafe")
	require.NoError(t, repo.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.PutSubject(ctx, &model.Subject{Ref: ref, Name: "Cafe", Status: model.BusinessApproved})
	}))
	ids, err := identity.New("salt", 8, nil)
	require.NoError(t, err)
	ctrl := review.New(repo, cachememory.New(0), ids, tally.NoopScope, zap.NewNop())
	for _, rating := range []model.RatingValue{4, 5} {
		r := &model.Review{ReviewerID: "u1", Subject: ref, Rating: rating, IsApproved: true}
		_, err := ctrl.CreateReview(ctx, r.Record(), auth.System)
		require.NoError(t, err)
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(AuthInterceptor(auth.NewTokens(testSecret, "tourbook"))))
	gen.RegisterListingServiceServer(srv, New(ctrl, zap.NewNop(), tally.NoopScope))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return gen.NewListingServiceClient(conn)
}

func withToken(t *testing.T, role model.Role) context.Context {
	t.Helper()
	token, err := auth.NewTokens(testSecret, "tourbook").Issue(model.Principal{UserID: "s1", Role: role}, time.Hour)
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func ref(kind, id string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		gen.FieldKind: structpb.NewStringValue(kind),
		gen.FieldID:   structpb.NewStringValue(id),
	}}
}

func TestGetAggregate(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	res, err := client.GetAggregate(ctx, ref("business", "cafe"))
	require.NoError(t, err)
	assert.Equal(t, 4.5, res.GetFields()[gen.FieldAverageRating].GetNumberValue())
	assert.Equal(t, float64(2), res.GetFields()[gen.FieldReviewCount].GetNumberValue())

	_, err = client.GetAggregate(ctx, ref("business", "missing"))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetAggregate(ctx, ref("castle", "cafe"))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRecompute(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Recompute(context.Background(), ref("business", "cafe"))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = client.Recompute(withToken(t, model.RoleTourist), ref("business", "cafe"))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	res, err := client.Recompute(withToken(t, model.RoleStaff), ref("business", "cafe"))
	require.NoError(t, err)
	assert.True(t, res.GetFields()[gen.FieldFound].GetBoolValue())
	assert.Equal(t, 4.5, res.GetFields()[gen.FieldAverageRating].GetNumberValue())

	res, err = client.Recompute(withToken(t, model.RoleAdmin), ref("event", "ghost"))
	require.NoError(t, err)
	assert.False(t, res.GetFields()[gen.FieldFound].GetBoolValue())
}

func TestReconcile(t *testing.T) {
	client := newTestClient(t)
	res, err := client.Reconcile(withToken(t, model.RoleStaff), &structpb.Struct{})
	require.NoError(t, err)
	assert.Equal(t, float64(1), res.GetFields()[gen.FieldChecked].GetNumberValue())
	assert.Equal(t, float64(0), res.GetFields()[gen.FieldCorrected].GetNumberValue())

	_, err = client.Reconcile(withToken(t, model.RoleStaff), &structpb.Struct{Fields: map[string]*structpb.Value{
		gen.FieldKind: structpb.NewStringValue("castle"),
	}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestAuthInterceptorRejectsBadTokens(t *testing.T) {
	client := newTestClient(t)
	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer nonsense")
	_, err := client.GetAggregate(ctx, ref("business", "cafe"))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx = metadata.AppendToOutgoingContext(context.Background(), "authorization", "Basic abc")
	_, err = client.GetAggregate(ctx, ref("business", "cafe"))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}
