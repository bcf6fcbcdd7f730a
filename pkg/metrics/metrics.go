package metrics

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/uber-go/tally/v6"
	"github.com/uber-go/tally/v6/prometheus"
	"go.uber.org/zap"
)

// NewMetricsReporter creates a root scope reporting to Prometheus and
// serves it on /metrics at the given port.
func NewMetricsReporter(logger *zap.Logger, serviceName string, metricsPort int) (scope tally.Scope, closer io.Closer) {
	reporter := prometheus.NewReporter(prometheus.Options{})
	scope, closer = tally.NewRootScope(tally.ScopeOptions{
		Tags:            map[string]string{"service": serviceName},
		CachedReporter:  reporter,
		SanitizeOptions: &prometheus.DefaultSanitizerOpts,
	}, 10*time.Second)
	mux := http.NewServeMux()
	mux.Handle("/metrics", reporter.HTTPHandler())
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", metricsPort), mux); err != nil {
			logger.Fatal("Failed to start metrics handler", zap.Error(err))
		}
	}()

	scope.Counter("service_started").Inc(1)
	return scope, closer
}

// EndpointMetrics defines an endpoint metrics.
type EndpointMetrics struct {
	Calls                 tally.Counter
	InvalidArgumentErrors tally.Counter
	NotFoundErrors        tally.Counter
	PermissionErrors      tally.Counter
	InternalErrors        tally.Counter
	Successes             tally.Counter
}

// NewEndpointMetrics creates a new endpoint metrics.
func NewEndpointMetrics(scope tally.Scope, endpoint string) *EndpointMetrics {
	scope = scope.Tagged(map[string]string{
		"component": "handler",
		"endpoint":  endpoint,
	})
	return &EndpointMetrics{
		Calls: scope.Counter("calls"),
		InvalidArgumentErrors: scope.Tagged(map[string]string{
			"error": "invalid_argument",
		}).Counter("error"),
		NotFoundErrors: scope.Tagged(map[string]string{
			"error": "not_found",
		}).Counter("error"),
		PermissionErrors: scope.Tagged(map[string]string{
			"error": "permission_denied",
		}).Counter("error"),
		InternalErrors: scope.Tagged(map[string]string{
			"error": "internal",
		}).Counter("error"),
		Successes: scope.Counter("success"),
	}
}

// AggregateMetrics tracks derived rating maintenance.
type AggregateMetrics struct {
	Recomputes         tally.Counter
	DanglingReferences tally.Counter
	CacheHits          tally.Counter
	CacheMisses        tally.Counter
	RecomputeLatency   tally.Timer
}

// NewAggregateMetrics creates aggregate maintenance metrics.
func NewAggregateMetrics(scope tally.Scope) *AggregateMetrics {
	scope = scope.SubScope("aggregate")
	return &AggregateMetrics{
		Recomputes:         scope.Counter("recomputes"),
		DanglingReferences: scope.Counter("dangling_references"),
		CacheHits:          scope.Tagged(map[string]string{"result": "hit"}).Counter("cache"),
		CacheMisses:        scope.Tagged(map[string]string{"result": "miss"}).Counter("cache"),
		RecomputeLatency:   scope.Timer("recompute_latency"),
	}
}
