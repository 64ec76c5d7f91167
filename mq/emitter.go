// Package mq carries booking events off the process: Redis pub/sub for
// fan-out between API instances and RabbitMQ for downstream consumers.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/MS0C54073/CarWashApp-sub000/globals"
	"github.com/MS0C54073/CarWashApp-sub000/models"

	"github.com/redis/go-redis/v9"
)

// Publisher is satisfied by every event sink in this package and by the
// live hub.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

// RedisPublisher publishes booking events and notifications to Redis
// channels so every instance can push them to its own sockets.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, globals.BookingEventsChannel, data).Err()
}

func (p *RedisPublisher) Name() string { return "redis" }

// Deliver makes RedisPublisher a notification sink.
func (p *RedisPublisher) Deliver(ctx context.Context, n models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, globals.NotificationsChannel, data).Err()
}

// Multi publishes to every target and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev models.Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotificationDeliverer is what the relay hands notifications to.
type NotificationDeliverer interface {
	Deliver(ctx context.Context, n models.Notification) error
}

// Relay subscribes to the Redis channels and feeds the local hub. Run blocks
// until ctx is cancelled.
type Relay struct {
	client *redis.Client
	events Publisher
	notes  NotificationDeliverer
}

func NewRelay(client *redis.Client, events Publisher, notes NotificationDeliverer) *Relay {
	return &Relay{client: client, events: events, notes: notes}
}

func (r *Relay) Run(ctx context.Context) {
	sub := r.client.Subscribe(ctx, globals.BookingEventsChannel, globals.NotificationsChannel)
	defer sub.Close()
	ch := sub.Channel()

	log.Println("[Relay] Listening for booking events...")

	for {
		select {
		case <-ctx.Done():
			log.Println("[Relay] stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.dispatch(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}

func (r *Relay) dispatch(ctx context.Context, channel string, payload []byte) {
	switch channel {
	case globals.BookingEventsChannel:
		var ev models.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			log.Printf("[Relay] Failed to parse event: %v", err)
			return
		}
		if err := r.events.Publish(ctx, ev); err != nil {
			log.Printf("[Relay] push event for %s: %v", ev.BookingID, err)
		}
	case globals.NotificationsChannel:
		if r.notes == nil {
			return
		}
		var n models.Notification
		if err := json.Unmarshal(payload, &n); err != nil {
			log.Printf("[Relay] Failed to parse notification: %v", err)
			return
		}
		if err := r.notes.Deliver(ctx, n); err != nil {
			log.Printf("[Relay] push notification to %s: %v", n.UserID, err)
		}
	}
}
