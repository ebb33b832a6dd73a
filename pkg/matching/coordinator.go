package matching

import (
	"context"
	"sync"

	"github.com/arnavshah/dispatch-api-go/pkg/models"
)

// Coordinator tracks in-flight recommendation computations per request.
// Starting a new computation cancels the previous one, and a result is
// published only if no newer computation has started since.
type Coordinator struct {
	mu     sync.Mutex
	gens   map[string]uint64
	cancel map[string]context.CancelFunc
	latest map[string]models.Recommendation
}

// NewCoordinator creates an empty coordinator
func NewCoordinator() *Coordinator {
	return &Coordinator{
		gens:   make(map[string]uint64),
		cancel: make(map[string]context.CancelFunc),
		latest: make(map[string]models.Recommendation),
	}
}

func (c *Coordinator) begin(ctx context.Context, id string) (context.Context, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.cancel[id]; ok {
		prev()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.gens[id]++
	c.cancel[id] = cancel
	return ctx, c.gens[id]
}

func (c *Coordinator) publish(id string, gen uint64, rec models.Recommendation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[id] != gen {
		return false
	}
	c.latest[id] = rec
	if cancel, ok := c.cancel[id]; ok {
		cancel()
		delete(c.cancel, id)
	}
	return true
}

// Run computes a recommendation for id. The returned bool is false when
// the result was superseded by a newer Run and discarded.
func (c *Coordinator) Run(ctx context.Context, id string, compute func(context.Context) (models.Recommendation, error)) (models.Recommendation, bool, error) {
	ctx, gen := c.begin(ctx, id)
	rec, err := compute(ctx)
	if err != nil {
		c.mu.Lock()
		if c.gens[id] == gen {
			if cancel, ok := c.cancel[id]; ok {
				cancel()
				delete(c.cancel, id)
			}
		}
		c.mu.Unlock()
		return models.Recommendation{}, false, err
	}
	if !c.publish(id, gen, rec) {
		return models.Recommendation{}, false, nil
	}
	return rec, true, nil
}

// Latest returns the most recently published recommendation for id
func (c *Coordinator) Latest(id string) (models.Recommendation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.latest[id]
	return rec, ok
}

// Forget drops state for a request that no longer accepts recommendations
func (c *Coordinator) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.cancel[id]; ok {
		cancel()
	}
	c.gens[id]++
	delete(c.cancel, id)
	delete(c.latest, id)
}
