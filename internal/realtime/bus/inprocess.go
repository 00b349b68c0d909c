package bus

import (
	"context"
	"sync"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

// InProcessBus dispatches signals synchronously to subscribers in the same
// process. Single-node deployments and tests use this; multi-node
// deployments use the redis bus.
type InProcessBus struct {
	log *logger.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewInProcessBus(log *logger.Logger) *InProcessBus {
	return &InProcessBus{
		log:      log.With("service", "InProcessBus"),
		handlers: map[string][]Handler{},
	}
}

func (b *InProcessBus) Subscribe(name string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

func (b *InProcessBus) Publish(ctx context.Context, sig Signal) error {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[sig.Name]...)
	b.mu.RUnlock()
	for _, h := range hs {
		h(ctx, sig)
	}
	return nil
}
