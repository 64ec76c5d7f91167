package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/globals"
	"github.com/MS0C54073/CarWashApp-sub000/models"

	"github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher sends status events to a topic exchange keyed by status and
// location events to a fanout exchange.
type AMQPPublisher struct {
	conn *amqp091.Connection

	mu sync.Mutex
	ch *amqp091.Channel
}

func DialAMQP(url string) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	p := &AMQPPublisher{conn: conn, ch: ch}
	if err := p.declare(); err != nil {
		p.Close()
		return nil, err
	}
	log.Println("[AMQP] connected")
	return p, nil
}

func (p *AMQPPublisher) declare() error {
	exchanges := []struct{ name, kind string }{
		{globals.BookingTopicExchange, "topic"},
		{globals.LocationFanoutExchange, "fanout"},
	}
	for _, ex := range exchanges {
		if err := p.ch.ExchangeDeclare(ex.name, ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", ex.name, err)
		}
	}
	return nil
}

// Route picks the exchange and routing key for an event.
func Route(ev models.Event) (exchange, key string) {
	if ev.Type == models.EventLocation {
		return globals.LocationFanoutExchange, ""
	}
	status := "unknown"
	if m, ok := ev.Payload.(map[string]string); ok && m["status"] != "" {
		status = m["status"]
	}
	return globals.BookingTopicExchange, "booking.status." + status
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev models.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	exchange, key := Route(ev)

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (p *AMQPPublisher) Close() {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
