package main

import (
	"context"
	"testing"

	"tourbook/gen"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeClient struct {
	recomputed *structpb.Struct
	reconciled *structpb.Struct
}

func (f *fakeClient) GetAggregate(context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error) {
	return &structpb.Struct{}, nil
}

func (f *fakeClient) Recompute(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	f.recomputed = in
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		gen.FieldFound:         structpb.NewBoolValue(true),
		gen.FieldAverageRating: structpb.NewNumberValue(4.5),
		gen.FieldReviewCount:   structpb.NewNumberValue(2),
	}}, nil
}

func (f *fakeClient) Reconcile(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	f.reconciled = in
	return &structpb.Struct{}, nil
}

func TestRunRecomputesSubject(t *testing.T) {
	c := &fakeClient{}
	require.NoError(t, run(context.Background(), c, "business/cafe", ""))
	require.NotNil(t, c.recomputed)
	assert.Equal(t, "business", c.recomputed.GetFields()[gen.FieldKind].GetStringValue())
	assert.Equal(t, "cafe", c.recomputed.GetFields()[gen.FieldID].GetStringValue())
	assert.Nil(t, c.reconciled)
}

func TestRunReconcilesKind(t *testing.T) {
	c := &fakeClient{}
	require.NoError(t, run(context.Background(), c, "", "event"))
	require.NotNil(t, c.reconciled)
	assert.Equal(t, "event", c.reconciled.GetFields()[gen.FieldKind].GetStringValue())
}

func TestRunRejectsMalformedSubject(t *testing.T) {
	assert.Error(t, run(context.Background(), &fakeClient{}, "business", ""))
}
