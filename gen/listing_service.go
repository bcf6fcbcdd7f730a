// Package gen holds the wire contract of the listing gRPC service.
// Requests and responses travel as structpb.Struct values, so the
// service descriptor is declared here instead of being generated.
package gen

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ListingServiceName is the fully qualified gRPC service name.
const ListingServiceName = "tourbook.listing.v1.ListingService"

// Full method names.
const (
	ListingServiceGetAggregateFullMethod = "/" + ListingServiceName + "/GetAggregate"
	ListingServiceRecomputeFullMethod    = "/" + ListingServiceName + "/Recompute"
	ListingServiceReconcileFullMethod    = "/" + ListingServiceName + "/Reconcile"
)

// Message field names.
const (
	FieldKind          = "kind"
	FieldID            = "id"
	FieldAverageRating = "averageRating"
	FieldReviewCount   = "reviewCount"
	FieldFound         = "found"
	FieldChecked       = "checked"
	FieldCorrected     = "corrected"
)

// ListingServiceServer is the server API for the listing service.
type ListingServiceServer interface {
	// GetAggregate expects {kind, id} and returns {averageRating, reviewCount}.
	GetAggregate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Recompute expects {kind, id} and returns {found, averageRating, reviewCount}.
	Recompute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Reconcile expects an optional {kind} and returns {checked, corrected}.
	Reconcile(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ListingServiceClient is the client API for the listing service.
type ListingServiceClient interface {
	GetAggregate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Recompute(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Reconcile(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type listingServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewListingServiceClient creates a listing service client.
func NewListingServiceClient(cc grpc.ClientConnInterface) ListingServiceClient {
	return &listingServiceClient{cc}
}

func (c *listingServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *listingServiceClient) GetAggregate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListingServiceGetAggregateFullMethod, in, opts...)
}

func (c *listingServiceClient) Recompute(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListingServiceRecomputeFullMethod, in, opts...)
}

func (c *listingServiceClient) Reconcile(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListingServiceReconcileFullMethod, in, opts...)
}

// UnimplementedListingServiceServer can be embedded to have forward
// compatible implementations.
type UnimplementedListingServiceServer struct{}

func (UnimplementedListingServiceServer) GetAggregate(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetAggregate not implemented")
}

func (UnimplementedListingServiceServer) Recompute(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Recompute not implemented")
}

func (UnimplementedListingServiceServer) Reconcile(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Reconcile not implemented")
}

// RegisterListingServiceServer registers srv on s.
func RegisterListingServiceServer(s grpc.ServiceRegistrar, srv ListingServiceServer) {
	s.RegisterService(&ListingServiceDesc, srv)
}

func unaryHandler(method string, call func(ListingServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ListingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ListingServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ListingServiceDesc is the grpc.ServiceDesc for the listing service.
var ListingServiceDesc = grpc.ServiceDesc{
	ServiceName: ListingServiceName,
	HandlerType: (*ListingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetAggregate",
			Handler:    unaryHandler(ListingServiceGetAggregateFullMethod, ListingServiceServer.GetAggregate),
		},
		{
			MethodName: "Recompute",
			Handler:    unaryHandler(ListingServiceRecomputeFullMethod, ListingServiceServer.Recompute),
		},
		{
			MethodName: "Reconcile",
			Handler:    unaryHandler(ListingServiceReconcileFullMethod, ListingServiceServer.Reconcile),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "listing/v1/listing.proto",
}
