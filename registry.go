package gatekeeper

import (
	"fmt"
	"sync/atomic"
)

type routeKey struct {
	path string
	verb Verb
}

// Registry records declared endpoints for the lifetime of the process.
// Register before Start; after Start the registry is frozen and read
// concurrently without locking, so no endpoint may be added or removed
// while the pipeline is serving traffic.
type Registry struct {
	endpoints map[routeKey]*Endpoint
	order     []*Endpoint
	started   atomic.Bool
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[routeKey]*Endpoint)}
}

// Register records an endpoint declaration. It rejects duplicate
// (canonical path, verb) pairs and endpoints that declare PrivateOwnedData
// or PublicOwnedData without an ownership predicate: owned-data endpoints
// can't evaluate ResourceOwner without one. Register panics if called after
// Start: the registry is write-once.
func (reg *Registry) Register(e *Endpoint) error {
	if reg.started.Load() {
		panic("gatekeeper: Register called after Start; the registry is frozen")
	}
	if e.requiresOwnershipPredicate() {
		return fmt.Errorf("gatekeeper: endpoint %s declares owned-data characteristics without an ownership predicate", e.Name())
	}
	key := routeKey{path: e.path, verb: e.verb}
	if _, exists := reg.endpoints[key]; exists {
		return fmt.Errorf("gatekeeper: endpoint already registered for %s %s", e.verb, e.path)
	}
	reg.endpoints[key] = e
	reg.order = append(reg.order, e)
	return nil
}

// lookup resolves the endpoint bound to an inbound request's path and
// method, falling back to a verb-agnostic ALL registration.
func (reg *Registry) lookup(path string, method Verb) (*Endpoint, bool) {
	if e, ok := reg.endpoints[routeKey{path: path, verb: method}]; ok {
		return e, true
	}
	e, ok := reg.endpoints[routeKey{path: path, verb: ALL}]
	return e, ok
}

// Endpoints returns the registered endpoints in registration order.
func (reg *Registry) Endpoints() []*Endpoint {
	out := make([]*Endpoint, len(reg.order))
	copy(out, reg.order)
	return out
}

// freeze marks the registry read-only. Called by Pipeline.Start.
func (reg *Registry) freeze() error {
	if len(reg.order) == 0 {
		return fmt.Errorf("gatekeeper: cannot start with no registered endpoints")
	}
	reg.started.Store(true)
	return nil
}
