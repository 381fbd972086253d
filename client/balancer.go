package client

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrNoEndpoints is returned when the balancer has nothing to choose from
var ErrNoEndpoints = errors.New("no server endpoints configured")

// LoadBalancer picks endpoints round-robin, skipping unhealthy ones.
// When every endpoint is unhealthy all of them are given another chance.
type LoadBalancer struct {
	endpoints []*Endpoint
	index     atomic.Uint64
	mu        sync.RWMutex
}

// NewLoadBalancer creates a new LoadBalancer instance.
func NewLoadBalancer(endpoints ...*Endpoint) *LoadBalancer {
	return &LoadBalancer{endpoints: endpoints}
}

// Select returns the next healthy endpoint using round-robin selection.
func (lb *LoadBalancer) Select() (*Endpoint, error) {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if len(lb.endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	healthy := lb.healthyLocked()
	if len(healthy) == 0 {
		for _, e := range lb.endpoints {
			e.MarkHealthy()
		}
		healthy = lb.endpoints
	}

	idx := lb.index.Add(1) - 1
	return healthy[idx%uint64(len(healthy))], nil
}

// UpdateEndpoints replaces the endpoint list.
func (lb *LoadBalancer) UpdateEndpoints(endpoints []*Endpoint) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.endpoints = endpoints
}

// Endpoints returns all endpoints.
func (lb *LoadBalancer) Endpoints() []*Endpoint {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	out := make([]*Endpoint, len(lb.endpoints))
	copy(out, lb.endpoints)
	return out
}

// healthyLocked returns healthy endpoints (caller must hold lock).
func (lb *LoadBalancer) healthyLocked() []*Endpoint {
	var healthy []*Endpoint
	for _, e := range lb.endpoints {
		if e.IsHealthy() {
			healthy = append(healthy, e)
		}
	}
	return healthy
}

// HealthyCount returns the number of healthy endpoints.
func (lb *LoadBalancer) HealthyCount() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	return len(lb.healthyLocked())
}
