// Package directory implements the service directory collaborator: the
// mapping from service names to endpoints. Results travel in futures so
// local and remote directories look the same to callers.
package directory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dmerejkowsky/libqi/pkg/future"
)

// Directory maps service names to endpoints.
type Directory interface {
	// Register announces a service at an endpoint, replacing any previous
	// registration under the same name.
	Register(name, endpoint string) future.Future[future.Void]
	// Unregister withdraws a service.
	Unregister(name string) future.Future[future.Void]
	// Lookup resolves a service name to its endpoint.
	Lookup(name string) future.Future[string]
	// Services lists the registered service names.
	Services() future.Future[[]string]
}

// Memory is the in-process directory used by tests and single-process
// deployments.
type Memory struct {
	mu       sync.RWMutex
	services map[string]string
}

// NewMemory creates an empty in-process directory.
func NewMemory() *Memory {
	return &Memory{services: make(map[string]string)}
}

// Register implements Directory.
func (d *Memory) Register(name, endpoint string) future.Future[future.Void] {
	p := future.NewPromise[future.Void]()
	if name == "" {
		p.SetError("service name cannot be empty")
		return p.Future()
	}
	d.mu.Lock()
	d.services[name] = endpoint
	d.mu.Unlock()
	p.SetValue(future.Void{})
	return p.Future()
}

// Unregister implements Directory.
func (d *Memory) Unregister(name string) future.Future[future.Void] {
	p := future.NewPromise[future.Void]()
	d.mu.Lock()
	_, ok := d.services[name]
	delete(d.services, name)
	d.mu.Unlock()
	if !ok {
		p.SetError(fmt.Sprintf("service not found: %s", name))
		return p.Future()
	}
	p.SetValue(future.Void{})
	return p.Future()
}

// Lookup implements Directory.
func (d *Memory) Lookup(name string) future.Future[string] {
	p := future.NewPromise[string]()
	d.mu.RLock()
	endpoint, ok := d.services[name]
	d.mu.RUnlock()
	if !ok {
		p.SetError(fmt.Sprintf("service not found: %s", name))
		return p.Future()
	}
	p.SetValue(endpoint)
	return p.Future()
}

// Services implements Directory.
func (d *Memory) Services() future.Future[[]string] {
	p := future.NewPromise[[]string]()
	d.mu.RLock()
	names := make([]string, 0, len(d.services))
	for name := range d.services {
		names = append(names, name)
	}
	d.mu.RUnlock()
	sort.Strings(names)
	p.SetValue(names)
	return p.Future()
}

var _ Directory = (*Memory)(nil)
