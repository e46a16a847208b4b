package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/roundtable/service/internal/logging"
)

// Channel is the pub/sub channel carrying notifications.
const Channel = "notifications"

// Message is the broker payload: a notification addressed to UserID.
type Message struct {
	UserID       string       `json:"userId"`
	Notification Notification `json:"notification"`
}

// Broker moves messages from publishers to the process that holds the
// recipient's socket.
type Broker interface {
	Publish(ctx context.Context, msg Message) error
	// Subscribe delivers every published message to deliver until ctx is done.
	Subscribe(ctx context.Context, deliver func(Message)) error
}

// LocalBroker delivers within the process.
type LocalBroker struct {
	ch chan Message
}

func NewLocalBroker(buffer int) *LocalBroker {
	return &LocalBroker{ch: make(chan Message, buffer)}
}

// Publish enqueues msg; it fails instead of blocking when the buffer is full.
func (b *LocalBroker) Publish(ctx context.Context, msg Message) error {
	select {
	case b.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("local broker: buffer full, dropping message for %s", msg.UserID)
	}
}

func (b *LocalBroker) Subscribe(ctx context.Context, deliver func(Message)) error {
	for {
		select {
		case msg := <-b.ch:
			deliver(msg)
		case <-ctx.Done():
			return nil
		}
	}
}

// RedisBroker fans messages out through Redis PUBLISH/SUBSCRIBE.
type RedisBroker struct {
	rdb *redis.Client
	log logging.Logger
}

// NewRedisBroker connects to the Redis server at url and pings it.
func NewRedisBroker(ctx context.Context, url string, log logging.Logger) (*RedisBroker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisBroker{rdb: rdb, log: log}, nil
}

// NewRedisBrokerFromClient wraps an existing client.
func NewRedisBrokerFromClient(rdb *redis.Client, log logging.Logger) *RedisBroker {
	return &RedisBroker{rdb: rdb, log: log}
}

func (b *RedisBroker) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := b.rdb.Publish(ctx, Channel, data).Err(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, deliver func(Message)) error {
	pubsub := b.rdb.Subscribe(ctx, Channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", Channel, err)
	}
	b.log.Info(ctx, "subscribed to redis channel", "channel", Channel)

	ch := pubsub.Channel()
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.log.Warn(ctx, "invalid notification payload", "error", err)
				continue
			}
			deliver(msg)
		case <-ctx.Done():
			return nil
		}
	}
}

// Close releases the Redis connection pool.
func (b *RedisBroker) Close() error {
	return b.rdb.Close()
}
