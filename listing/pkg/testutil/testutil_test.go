package testutil

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tourbook/gen"
	"tourbook/listing/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestListingServiceSharesStoreAcrossSurfaces(t *testing.T) {
	svc := NewTestListingService()
	admin, err := svc.Tokens.Issue(model.Principal{UserID: "admin", Role: model.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/v1/subjects/event/fiesta", strings.NewReader(`{"name":"Fiesta","status":"upcoming"}`))
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := httptest.NewRecorder()
	svc.HTTP.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	lis := bufconn.Listen(1 << 20)
	srv := svc.NewGRPCServer()
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	client := gen.NewListingServiceClient(conn)

	ref := &structpb.Struct{Fields: map[string]*structpb.Value{
		gen.FieldKind: structpb.NewStringValue("event"),
		gen.FieldID:   structpb.NewStringValue("fiesta"),
	}}
	res, err := client.GetAggregate(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, float64(0), res.GetFields()[gen.FieldReviewCount].GetNumberValue())

	_, err = client.Recompute(context.Background(), ref)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+admin)
	_, err = client.Recompute(ctx, ref)
	assert.NoError(t, err)

	ctx = metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer garbage")
	_, err = client.Recompute(ctx, ref)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}
