package testutil

import (
	"net/http"

	"tourbook/gen"
	"tourbook/listing/internal/auth"
	cachememory "tourbook/listing/internal/cache/memory"
	"tourbook/listing/internal/controller/booking"
	"tourbook/listing/internal/controller/listing"
	"tourbook/listing/internal/controller/review"
	grpchandler "tourbook/listing/internal/handler/grpc"
	httphandler "tourbook/listing/internal/handler/http"
	"tourbook/listing/internal/identity"
	"tourbook/listing/internal/repository/memory"

	"github.com/uber-go/tally/v6"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// TestSecret signs the tokens accepted by test servers.
const TestSecret = "test-secret"

// TestIssuer is the token issuer of test servers.
const TestIssuer = "tourbook"

// TestListingService bundles both API surfaces of an in-memory listing
// service sharing one store.
type TestListingService struct {
	GRPC   gen.ListingServiceServer
	HTTP   http.Handler
	Tokens *auth.Tokens
}

// NewTestListingService creates a listing service backed by memory
// storage, suitable for tests.
func NewTestListingService() *TestListingService {
	logger := zap.NewNop()
	repo := memory.New(logger)
	aggCache := cachememory.New(0)
	ids, err := identity.New("test-salt", 8, nil)
	if err != nil {
		panic(err)
	}
	tokens := auth.NewTokens(func() []byte { return []byte(TestSecret) }, TestIssuer)
	reviews := review.New(repo, aggCache, ids, tally.NoopScope, logger)
	h := httphandler.New(
		reviews,
		listing.New(repo, aggCache, ids, logger),
		booking.New(repo, ids, logger),
		tokens,
		tally.NoopScope,
		logger,
	)
	return &TestListingService{
		GRPC:   grpchandler.New(reviews, logger, tally.NoopScope),
		HTTP:   h.Routes(nil),
		Tokens: tokens,
	}
}

// NewGRPCServer creates a gRPC server serving the listing service and
// authenticating bearer tokens issued by Tokens.
func (s *TestListingService) NewGRPCServer() *grpc.Server {
	srv := grpc.NewServer(grpc.UnaryInterceptor(grpchandler.AuthInterceptor(s.Tokens)))
	gen.RegisterListingServiceServer(srv, s.GRPC)
	return srv
}
