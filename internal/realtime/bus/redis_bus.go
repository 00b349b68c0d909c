package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/envutil"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

// RedisBus carries signals over a redis pub/sub channel so learner events
// ingested on one node can trigger comparisons on the node running the
// scheduler.
type RedisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string

	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewRedisBus(log *logger.Logger) (*RedisBus, error) {
	addr := envutil.Str("REDIS_ADDR", "")
	if addr == "" {
		return nil, errors.New("missing REDIS_ADDR")
	}
	channel := envutil.Str("REDIS_CHANNEL", "graph-signals")

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &RedisBus{
		log:      log.With("service", "RedisBus"),
		rdb:      rdb,
		channel:  channel,
		handlers: map[string][]Handler{},
	}, nil
}

func (b *RedisBus) Subscribe(name string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

func (b *RedisBus) Publish(ctx context.Context, sig Signal) error {
	raw, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder subscribes to the redis channel and dispatches incoming
// signals to local handlers until ctx is cancelled.
func (b *RedisBus) StartForwarder(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var sig Signal
				if err := json.Unmarshal([]byte(m.Payload), &sig); err != nil {
					b.log.Warn("bad signal payload", "error", err)
					continue
				}
				b.mu.RLock()
				hs := append([]Handler(nil), b.handlers[sig.Name]...)
				b.mu.RUnlock()
				for _, h := range hs {
					h(ctx, sig)
				}
			}
		}
	}()
	return nil
}
