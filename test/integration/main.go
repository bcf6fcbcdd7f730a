package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"tourbook/gen"
	"tourbook/internal/grpcutil"
	"tourbook/listing/pkg/model"
	listingtest "tourbook/listing/pkg/testutil"
	"tourbook/pkg/discovery"
	"tourbook/pkg/discovery/memory"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	listingServiceName = "listing"

	listingGRPCAddress = "localhost:8082"
	listingHTTPAddress = "localhost:8080"
)

func main() {
	log.Println("Starting the integration test")

	ctx := context.Background()
	registry := memory.NewRegistry(zap.NewNop())

	log.Println("Setting up service handlers and clients")
	svc := listingtest.NewTestListingService()
	grpcSrv := startListingService(ctx, registry, svc)
	defer grpcSrv.GracefulStop()
	httpSrv := &http.Server{Addr: listingHTTPAddress, Handler: svc.HTTP, ReadHeaderTimeout: time.Second}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()
	defer httpSrv.Close()
	time.Sleep(100 * time.Millisecond)

	conn, err := grpcutil.ServiceConnection(ctx, listingServiceName, registry, insecure.NewCredentials())
	if err != nil {
		panic(err)
	}
	defer conn.Close()
	client := gen.NewListingServiceClient(conn)

	admin := issue(svc, "admin", model.RoleAdmin)
	staff := issue(svc, "moderator", model.RoleStaff)
	alice := issue(svc, "alice", model.RoleTourist)
	bob := issue(svc, "bob", model.RoleTourist)

	log.Println("Creating a business via the HTTP API")
	mustHTTP(http.MethodPut, "/v1/subjects/business/harbour-cafe", admin, map[string]any{
		"name": "Harbour Cafe", "status": "approved",
	}, http.StatusOK, nil)

	log.Println("Posting reviews")
	var first, second model.ReviewRecord
	mustHTTP(http.MethodPost, "/v1/reviews", alice, map[string]any{
		"kind": "business", "businessId": "harbour-cafe", "rating": 5, "title": "Great coffee",
	}, http.StatusCreated, &first)
	mustHTTP(http.MethodPost, "/v1/reviews", bob, map[string]any{
		"kind": "business", "businessId": "harbour-cafe", "rating": 2,
	}, http.StatusCreated, &second)

	log.Println("Pending reviews must not count")
	wantAggregate(ctx, client, "business", "harbour-cafe", nil, 0)

	log.Println("Approving reviews")
	for _, id := range []model.ReviewID{first.ID, second.ID} {
		mustHTTP(http.MethodPost, "/v1/reviews/"+string(id)+"/approval", staff, map[string]any{"approved": true}, http.StatusOK, nil)
	}
	avg := 3.5
	wantAggregate(ctx, client, "business", "harbour-cafe", &avg, 2)

	log.Println("Rejecting an invalid review")
	mustHTTP(http.MethodPost, "/v1/reviews", alice, map[string]any{
		"kind": "event", "businessId": "harbour-cafe", "rating": 4,
	}, http.StatusBadRequest, nil)
	wantAggregate(ctx, client, "business", "harbour-cafe", &avg, 2)

	log.Println("Recomputing via gRPC")
	authCtx := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+staff)
	res, err := client.Recompute(authCtx, ref("business", "harbour-cafe"))
	if err != nil {
		log.Fatalf("recompute: %v", err)
	}
	if got := res.GetFields()[gen.FieldAverageRating].GetNumberValue(); got != avg {
		log.Fatalf("recompute average: got %v, want %v", got, avg)
	}
	rec, err := client.Reconcile(authCtx, &structpb.Struct{})
	if err != nil {
		log.Fatalf("reconcile: %v", err)
	}
	if checked := rec.GetFields()[gen.FieldChecked].GetNumberValue(); checked != 1 {
		log.Fatalf("reconcile checked %v subjects, want 1", checked)
	}

	log.Println("Booking the business")
	var b model.Booking
	mustHTTP(http.MethodPost, "/v1/bookings", alice, map[string]any{
		"kind": "business", "subjectId": "harbour-cafe", "guests": 2, "visitDate": time.Now().Add(48 * time.Hour),
	}, http.StatusCreated, &b)
	mustHTTP(http.MethodPatch, "/v1/bookings/"+string(b.Number), staff, map[string]any{"status": "confirmed"}, http.StatusOK, nil)

	log.Println("Deleting the business cascades to its reviews")
	mustHTTP(http.MethodDelete, "/v1/subjects/business/harbour-cafe", admin, nil, http.StatusNoContent, nil)
	mustHTTP(http.MethodDelete, "/v1/reviews/"+string(first.ID), staff, nil, http.StatusNotFound, nil)
	if _, err := client.GetAggregate(ctx, ref("business", "harbour-cafe")); status.Code(err) != codes.NotFound {
		log.Fatalf("get aggregate after delete: want NotFound, got %v", err)
	}

	log.Println("Integration test execution successful")
}

func startListingService(ctx context.Context, registry discovery.Registry, svc *listingtest.TestListingService) *grpc.Server {
	log.Println("Starting listing service on " + listingGRPCAddress)
	l, err := net.Listen("tcp", listingGRPCAddress)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	srv := svc.NewGRPCServer()
	id := discovery.GenerateInstanceID(listingServiceName)
	if err := registry.Register(ctx, id, listingServiceName, listingGRPCAddress); err != nil {
		panic(err)
	}
	go func() {
		defer func() {
			if err := registry.Deregister(ctx, id, listingServiceName); err != nil {
				log.Printf("Failed to deregister %s: %v", listingServiceName, err)
			}
		}()
		if err := srv.Serve(l); err != nil {
			panic(err)
		}
	}()
	go func() {
		for {
			if err := registry.ReportHealthyState(id, listingServiceName); err != nil {
				log.Println("Failed to report healthy state: " + err.Error())
			}
			time.Sleep(1 * time.Second)
		}
	}()
	return srv
}

func issue(svc *listingtest.TestListingService, user model.UserID, role model.Role) string {
	token, err := svc.Tokens.Issue(model.Principal{UserID: user, Role: role}, time.Hour)
	if err != nil {
		panic(err)
	}
	return token
}

func ref(kind, id string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		gen.FieldKind: structpb.NewStringValue(kind),
		gen.FieldID:   structpb.NewStringValue(id),
	}}
}

func mustHTTP(method, path, token string, body any, wantStatus int, out any) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			panic(err)
		}
	}
	req, err := http.NewRequest(method, "http://"+listingHTTPAddress+path, &buf)
	if err != nil {
		panic(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		log.Fatalf("%s %s: got status %d, want %d", method, path, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}

type aggregate struct {
	AverageRating *float64
	ReviewCount   int
}

func wantAggregate(ctx context.Context, client gen.ListingServiceClient, kind, id string, avg *float64, count int) {
	res, err := client.GetAggregate(ctx, ref(kind, id))
	if err != nil {
		log.Fatalf("get aggregate: %v", err)
	}
	got := aggregate{ReviewCount: int(res.GetFields()[gen.FieldReviewCount].GetNumberValue())}
	if v, ok := res.GetFields()[gen.FieldAverageRating].GetKind().(*structpb.Value_NumberValue); ok {
		got.AverageRating = &v.NumberValue
	}
	want := aggregate{AverageRating: avg, ReviewCount: count}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		log.Fatal(fmt.Sprintf("get aggregate after put mismatch (-want +got):\n%s", diff))
	}
}
