package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	publishQueueSize = 256
	publishTimeout   = 2 * time.Second
)

// RedisRelay shares events between server instances through a Redis
// pub/sub channel. Every instance publishes its events to the channel and
// delivers whatever arrives on it to its own hub, so local subscribers see
// events produced anywhere.
type RedisRelay struct {
	hub     *Hub
	rdb     *redis.Client
	channel string
	log     *zap.Logger

	// queue feeds the single publisher goroutine, which keeps events in
	// broadcast order.
	queue     chan outbound
	published chan struct{}

	mu     sync.Mutex
	closed bool
	pubsub *redis.PubSub
	done   chan struct{}
}

type outbound struct {
	event string
	frame []byte
}

// NewRedisRelay wraps hub with a relay on channel and starts its publisher.
// Close stops it.
func NewRedisRelay(hub *Hub, rdb *redis.Client, channel string, log *zap.Logger) *RedisRelay {
	if log == nil {
		log = zap.NewNop()
	}
	r := &RedisRelay{
		hub:       hub,
		rdb:       rdb,
		channel:   channel,
		log:       log,
		queue:     make(chan outbound, publishQueueSize),
		published: make(chan struct{}),
	}
	go r.publish()
	return r
}

func (r *RedisRelay) publish() {
	defer close(r.published)
	for out := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := r.rdb.Publish(ctx, r.channel, out.frame).Err()
		cancel()
		if err != nil {
			r.log.Warn("redis publish failed, delivering locally", zap.String("event", out.event), zap.Error(err))
			r.hub.deliver(out.frame)
		}
	}
}

// Start subscribes to the channel and forwards incoming frames to the hub
// until ctx is done or Close is called.
func (r *RedisRelay) Start(ctx context.Context) error {
	ps := r.rdb.Subscribe(ctx, r.channel)
	// Receive blocks until the subscription is confirmed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	r.mu.Lock()
	r.pubsub = ps
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go func() {
		defer close(done)
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.hub.deliver([]byte(msg.Payload))
			}
		}
	}()
	r.log.Info("redis relay subscribed", zap.String("channel", r.channel))
	return nil
}

// Broadcast queues the event for publishing to all instances and returns
// without waiting on Redis. If Redis is unreachable, or the queue is full or
// closed, the event still reaches this instance's subscribers.
func (r *RedisRelay) Broadcast(event string, payload any) {
	frame, err := Encode(event, payload)
	if err != nil {
		r.log.Error("encode event failed", zap.String("event", event), zap.Error(err))
		return
	}

	r.mu.Lock()
	queued := false
	if !r.closed {
		select {
		case r.queue <- outbound{event: event, frame: frame}:
			queued = true
		default:
			r.log.Warn("redis publish queue full, delivering locally", zap.String("event", event))
		}
	}
	r.mu.Unlock()
	if !queued {
		r.hub.deliver(frame)
	}
}

// Close drains the publish queue, stops the subscription and waits for both
// goroutines to exit.
func (r *RedisRelay) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	ps, done := r.pubsub, r.done
	r.pubsub = nil
	r.mu.Unlock()

	<-r.published
	if ps == nil {
		return nil
	}
	err := ps.Close()
	<-done
	return err
}
