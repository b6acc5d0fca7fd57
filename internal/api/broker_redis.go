package api

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	redis "github.com/redis/go-redis/v9"

	"tenanthooks/internal/logging"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so that every API
// replica sees every dispatch.
type RedisBroker struct {
	rdb *redis.Client

	mu   sync.Mutex
	subs map[chan ActivityEvent]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisBrokerFromClient(redis.NewClient(opt)), nil
}

func NewRedisBrokerFromClient(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb, subs: map[chan ActivityEvent]*redis.PubSub{}}
}

func (b *RedisBroker) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *RedisBroker) Close() error { return b.rdb.Close() }

func (b *RedisBroker) Subscribe(tenantID string) chan ActivityEvent {
	ch := make(chan ActivityEvent, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, chanName(tenantID))
	// initial consume to ensure subscription
	if _, err := ps.Receive(ctx); err != nil {
		logging.Warn().Err(err).Str("tenant_id", tenantID).Msg("redis activity subscribe failed")
	}
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()

	msgs := ps.Channel()
	go func() {
		for msg := range msgs {
			var evt ActivityEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				continue
			}
			b.mu.Lock()
			if _, live := b.subs[ch]; live {
				select {
				case ch <- evt:
				default:
				}
			}
			b.mu.Unlock()
		}
	}()
	return ch
}

func (b *RedisBroker) Unsubscribe(tenantID string, ch chan ActivityEvent) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	delete(b.subs, ch)
	if ok {
		close(ch)
	}
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(tenantID string, evt ActivityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, chanName(tenantID), data).Err(); err != nil {
		logging.Warn().Err(err).Str("tenant_id", tenantID).Msg("redis activity publish failed")
	}
}

func chanName(tenantID string) string { return "webhook-activity:" + tenantID }
