package wirespan

import (
	"sync"
)

// idPool manages a pool of pre-generated IDs to amortize crypto/rand overhead.
type idPool struct {
	factory func() string
	ids     chan string
	stopCh  chan struct{}
	mu      sync.Mutex
	closed  bool
}

// newIDPool creates a new ID pool with the specified capacity and starts its
// background refill goroutine.
func newIDPool(capacity int, factory func() string) *idPool {
	pool := &idPool{
		ids:     make(chan string, capacity),
		factory: factory,
		stopCh:  make(chan struct{}),
	}
	go pool.refill()
	return pool
}

// get retrieves an ID from the pool or generates one if the pool is empty.
func (p *idPool) get() string {
	select {
	case id := <-p.ids:
		return id
	default:
		// Pool empty, generate directly (fallback for burst load).
		return p.factory()
	}
}

// refill maintains the pool by generating IDs in the background.
func (p *idPool) refill() {
	for {
		select {
		case <-p.stopCh:
			return
		default:
			select {
			case p.ids <- p.factory():
			case <-p.stopCh:
				return
			}
		}
	}
}

// close shuts down the ID pool gracefully.
func (p *idPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		close(p.stopCh)
		p.closed = true
	}
}
