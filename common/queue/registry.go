package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry owns every queue and worker in the process. It is built once at
// startup; there is no global registration.
type Registry struct {
	mu      sync.RWMutex
	queues  map[string]*Queue
	workers map[string]*Worker
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		queues:  make(map[string]*Queue),
		workers: make(map[string]*Worker),
	}
}

// Register adds a queue and its worker. Names must be unique.
func (r *Registry) Register(queue *Queue, worker *Worker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := queue.Config().Name
	if _, exists := r.queues[name]; exists {
		return fmt.Errorf("queue %s already registered", name)
	}
	r.queues[name] = queue
	r.workers[name] = worker
	return nil
}

// Queue looks up a queue by name
func (r *Registry) Queue(name string) (*Queue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[name]
	return q, ok
}

// QueueForProvider looks up the generation queue of a provider
func (r *Registry) QueueForProvider(provider string) (*Queue, bool) {
	return r.Queue(fmt.Sprintf("generation-%s", provider))
}

// Names returns the registered queue names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	return names
}

// StartAll starts every registered worker
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, worker := range r.workers {
		if worker == nil {
			continue
		}
		if err := worker.Start(ctx); err != nil {
			return fmt.Errorf("starting worker %s: %w", name, err)
		}
	}
	return nil
}

// Shutdown stops every worker, draining in-flight jobs
func (r *Registry) Shutdown() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, worker := range r.workers {
		if worker == nil {
			continue
		}
		log.Info().Str("queue", name).Msg("Stopping worker")
		worker.Stop()
	}
}
