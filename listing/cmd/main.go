package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tourbook/gen"
	"tourbook/internal/grpcutil"
	"tourbook/listing/configs"
	"tourbook/listing/internal/auth"
	"tourbook/listing/internal/controller/booking"
	"tourbook/listing/internal/controller/listing"
	"tourbook/listing/internal/controller/review"
	grpchandler "tourbook/listing/internal/handler/grpc"
	httphandler "tourbook/listing/internal/handler/http"
	"tourbook/listing/internal/identity"
	"tourbook/listing/internal/ingester/kafka"
	"tourbook/listing/internal/processor"
	"tourbook/pkg/discovery"
	"tourbook/pkg/discovery/consul"
	"tourbook/pkg/limiter"
	"tourbook/pkg/logging"
	"tourbook/pkg/metrics"
	"tourbook/pkg/tracing"

	"github.com/grpc-ecosystem/go-grpc-middleware/ratelimit"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

const serviceName = "listing"

func main() {
	configPath := flag.String("config", "defaults.yaml", "path to the service configuration")
	flag.Parse()

	cfg, err := configs.Load(*configPath)
	if err != nil {
		panic(err)
	}
	log, err := logging.New(serviceName, cfg.Development)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting the service", zap.Int(logging.FieldPort, cfg.API.Port), zap.String("database", cfg.DatabaseConfig.Driver))
	if cfg.Auth.Secret == "" {
		log.Fatal("Token secret is not configured, set LISTING_AUTH_SECRET")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := tracing.NewJaegerProvider(cfg.Jaeger.URL, serviceName)
	if err != nil {
		log.Fatal("Failed to initialize jaeger provider", zap.Error(err))
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn("Failed to shutdown jaeger provider", zap.Error(err))
		}
	}()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	registry, err := consul.NewRegistry(cfg.ServiceDiscovery.Consul.Address, log)
	if err != nil {
		panic(err)
	}
	instanceID := discovery.GenerateInstanceID(serviceName)
	if err := registry.Register(ctx, instanceID, serviceName, fmt.Sprintf("listing:%d", cfg.API.Port)); err != nil {
		panic(err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(1 * time.Second):
				if err := registry.ReportHealthyState(instanceID, serviceName); err != nil {
					log.Warn("Failed to report healthy state", zap.Error(err))
				}
			}
		}
	}()
	defer func() {
		if err := registry.Deregister(context.Background(), instanceID, serviceName); err != nil {
			log.Warn("Failed to deregister service", zap.Error(err))
		}
	}()

	scope, closer := metrics.NewMetricsReporter(log, serviceName, cfg.Prometheus.MetricsPort)
	defer func() {
		if err := closer.Close(); err != nil {
			log.Warn("Failed to close Prometheus reporter scope", zap.Error(err))
		}
	}()

	store, closeStore, err := openStore(ctx, cfg.DatabaseConfig, log)
	if err != nil {
		log.Fatal("Failed to open entity store", zap.Error(err))
	}
	defer closeStore()
	aggCache, closeCache, err := openCache(ctx, cfg.Cache.Redis, log)
	if err != nil {
		log.Fatal("Failed to open aggregate cache", zap.Error(err))
	}
	defer closeCache()

	ids, err := identity.New(cfg.Booking.Salt, cfg.Booking.MinLength, nil)
	if err != nil {
		log.Fatal("Failed to initialize booking numbers", zap.Error(err))
	}
	reviews := review.New(store, aggCache, ids, scope, log)
	listings := listing.New(store, aggCache, ids, log)
	bookings := booking.New(store, ids, log)
	secret := []byte(cfg.Auth.Secret)
	tokens := auth.NewTokens(func() []byte { return secret }, cfg.Auth.Issuer)

	if cfg.MessengerConfig.Kafka.Address != "" {
		kc := cfg.MessengerConfig.Kafka
		ingester, err := kafka.NewIngester(kc.Address, kc.GroupID, kc.Topic, log)
		if err != nil {
			log.Fatal("Failed to initialize ingester", zap.Error(err))
		}
		go func() {
			if err := reviews.StartIngestion(ctx, ingester); err != nil {
				log.Error("Moderation ingestion stopped", zap.Error(err))
			}
		}()
	}

	if cfg.Reconcile.Enabled {
		interval, err := time.ParseDuration(cfg.Reconcile.Interval)
		if err != nil {
			log.Fatal("Invalid reconcile interval", zap.Error(err))
		}
		p := processor.New(log, registry, reviews, interval)
		go func() {
			if err := p.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Reconcile processor stopped", zap.Error(err))
			}
		}()
	}

	creds, err := grpcutil.TransportCredentials(cfg.API.CertFile, cfg.API.KeyFile)
	if err != nil {
		log.Fatal("Failed to load TLS credentials", zap.Error(err))
	}
	lis, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", cfg.API.Port))
	if err != nil {
		log.Fatal("failed to listen", zap.Error(err))
	}
	l := limiter.New(log, cfg.RateLimit.Limit, cfg.RateLimit.Burst)
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			ratelimit.UnaryServerInterceptor(l),
			grpchandler.AuthInterceptor(tokens),
		),
		grpc.Creds(creds),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	gen.RegisterListingServiceServer(srv, grpchandler.New(reviews, log, scope))
	log.Info("Register reflection")
	reflection.Register(srv)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.HTTPPort),
		Handler:           httphandler.New(reviews, listings, bookings, tokens, scope, log).Routes(l),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Starting the HTTP server", zap.Int(logging.FieldPort, cfg.API.HTTPPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s := <-sigChan
		cancel()
		log.Info("Got signal, attempting graceful shutdown", zap.Stringer(logging.FieldSignal, s))
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("Failed to stop the HTTP server", zap.Error(err))
		}
		srv.GracefulStop()
		log.Info("Gracefully stopped the servers")
	}()

	if err := srv.Serve(lis); err != nil {
		panic(err)
	}
	wg.Wait()
}
