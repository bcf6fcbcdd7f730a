package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"tourbook/gen"
	"tourbook/internal/grpcutil"
	"tourbook/pkg/discovery/consul"
	"tourbook/pkg/logging"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "listing"

func main() {
	consulAddr := flag.String("consul", "localhost:8500", "consul address used to find the listing service")
	addr := flag.String("addr", "", "listing service address, skips service discovery when set")
	subject := flag.String("subject", "", "recompute a single subject given as kind/id")
	kind := flag.String("kind", "", "reconcile only subjects of this kind")
	cert := flag.String("cert", "", "TLS certificate file")
	key := flag.String("key", "", "TLS key file")
	timeout := flag.Duration("timeout", 5*time.Minute, "request timeout")
	flag.Parse()

	log, err := logging.New("reconcile", true)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if token := os.Getenv("LISTING_TOKEN"); token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}

	creds, err := grpcutil.TransportCredentials(*cert, *key)
	if err != nil {
		log.Fatal("Failed to load TLS credentials", zap.Error(err))
	}
	var conn *grpc.ClientConn
	if *addr != "" {
		conn, err = grpc.NewClient(*addr, grpc.WithTransportCredentials(creds))
	} else {
		registry, rerr := consul.NewRegistry(*consulAddr, log)
		if rerr != nil {
			log.Fatal("Failed to create consul registry", zap.Error(rerr))
		}
		conn, err = grpcutil.ServiceConnection(ctx, serviceName, registry, creds)
	}
	if err != nil {
		log.Fatal("Failed to connect", zap.Error(err))
	}
	defer conn.Close()

	client := gen.NewListingServiceClient(conn)
	if err := run(ctx, client, *subject, *kind); err != nil {
		log.Fatal("Reconcile failed", zap.Error(err))
	}
}

func run(ctx context.Context, client gen.ListingServiceClient, subject, kind string) error {
	if subject != "" {
		k, id, ok := strings.Cut(subject, "/")
		if !ok || k == "" || id == "" {
			return fmt.Errorf("subject must be given as kind/id, got %q", subject)
		}
		res, err := client.Recompute(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
			gen.FieldKind: structpb.NewStringValue(k),
			gen.FieldID:   structpb.NewStringValue(id),
		}})
		if err != nil {
			return err
		}
		fields := res.GetFields()
		if !fields[gen.FieldFound].GetBoolValue() {
			fmt.Printf("%s does not exist, nothing recomputed\n", subject)
			return nil
		}
		avg := "null"
		if v, ok := fields[gen.FieldAverageRating].GetKind().(*structpb.Value_NumberValue); ok {
			avg = fmt.Sprintf("%.2f", v.NumberValue)
		}
		fmt.Printf("%s: average %s over %d reviews\n", subject, avg, int(fields[gen.FieldReviewCount].GetNumberValue()))
		return nil
	}
	req := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	if kind != "" {
		req.Fields[gen.FieldKind] = structpb.NewStringValue(kind)
	}
	res, err := client.Reconcile(ctx, req)
	if err != nil {
		return err
	}
	fields := res.GetFields()
	fmt.Printf("checked %d subjects, corrected %d\n",
		int(fields[gen.FieldChecked].GetNumberValue()),
		int(fields[gen.FieldCorrected].GetNumberValue()))
	return nil
}
