package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"tourbook/pkg/discovery"
	"tourbook/pkg/logging"

	"go.uber.org/zap"
)

// staleAfter is how long an instance may go without a health report
// before it is skipped by ServiceAddresses.
const staleAfter = 5 * time.Second

// Registry defines an in-memory service registry.
type Registry struct {
	sync.RWMutex
	serviceAddrs map[string]map[string]*serviceInstance
	locks        map[string]bool
	logger       *zap.Logger
}

type serviceInstance struct {
	hostPort   string
	lastActive time.Time
}

// NewRegistry creates a new in-memory service registry instance.
func NewRegistry(logger *zap.Logger) *Registry {
	logger = logger.With(
		zap.String(logging.FieldComponent, "discovery"),
		zap.String(logging.FieldType, "memory"),
	)
	return &Registry{
		serviceAddrs: map[string]map[string]*serviceInstance{},
		locks:        map[string]bool{},
		logger:       logger,
	}
}

// Register creates a service record in the registry.
func (r *Registry) Register(_ context.Context, instanceID string, serviceName string, hostPort string) error {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.serviceAddrs[serviceName]; !ok {
		r.serviceAddrs[serviceName] = map[string]*serviceInstance{}
	}
	r.serviceAddrs[serviceName][instanceID] = &serviceInstance{hostPort: hostPort, lastActive: time.Now()}
	return nil
}

// Deregister removes a service record from the registry.
func (r *Registry) Deregister(_ context.Context, instanceID string, serviceName string) error {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.serviceAddrs[serviceName]; !ok {
		return nil
	}
	delete(r.serviceAddrs[serviceName], instanceID)
	return nil
}

// ReportHealthyState is a push mechanism for reporting healthy state to the registry.
func (r *Registry) ReportHealthyState(instanceID string, serviceName string) error {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.serviceAddrs[serviceName]; !ok {
		return errors.New("service is not registered yet")
	}
	if _, ok := r.serviceAddrs[serviceName][instanceID]; !ok {
		return errors.New("instance " + instanceID + " of service " + serviceName + " is not registered yet")
	}
	r.serviceAddrs[serviceName][instanceID].lastActive = time.Now()
	return nil
}

// ServiceAddresses returns the list of addresses of active instances of the given service.
func (r *Registry) ServiceAddresses(_ context.Context, serviceName string) ([]string, error) {
	r.RLock()
	defer r.RUnlock()
	if len(r.serviceAddrs[serviceName]) == 0 {
		return nil, discovery.ErrNotFound
	}
	var res []string
	for instanceID, i := range r.serviceAddrs[serviceName] {
		if i.lastActive.Before(time.Now().Add(-staleAfter)) {
			r.logger.Debug("Skipping inactive instance", zap.String("instance", instanceID), zap.String("service", serviceName))
			continue
		}
		res = append(res, i.hostPort)
	}
	if len(res) == 0 {
		return nil, discovery.ErrNotFound
	}
	return res, nil
}

// Acquire takes a process-local lock on key. It reports false without
// error when the lock is already held.
func (r *Registry) Acquire(_ context.Context, key string) (bool, func() error, error) {
	r.Lock()
	defer r.Unlock()
	if r.locks[key] {
		return false, func() error { return nil }, nil
	}
	r.locks[key] = true
	return true, func() error {
		r.Lock()
		defer r.Unlock()
		delete(r.locks, key)
		return nil
	}, nil
}
