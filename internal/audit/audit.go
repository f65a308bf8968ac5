// Package audit publishes tamper alerts to RabbitMQ. Alerts are advisory:
// errors are logged and returned so callers can ignore a broker outage
// without interrupting the query flow, and a nil publisher is a no-op.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const queueName = "ehr.integrity.violation"

// TamperAlert describes rows that failed integrity verification on a read.
type TamperAlert struct {
	RowIDs     []string  `json:"rowIds"`
	Username   string    `json:"username"`
	DetectedAt time.Time `json:"detectedAt"`
}

// Publisher sends alerts to a RabbitMQ broker.
type Publisher struct {
	url string
}

// NewPublisher reads RABBITMQ_URL (or AMQP_URL). Returns nil when neither is
// set; a nil Publisher drops alerts silently.
func NewPublisher() *Publisher {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		url = os.Getenv("AMQP_URL")
	}
	if url == "" {
		return nil
	}
	return &Publisher{url: url}
}

// PublishTamperAlert delivers one alert. Messages are persistent; the queue
// is declared idempotently on every publish.
func (p *Publisher) PublishTamperAlert(ctx context.Context, alert TamperAlert) error {
	if p == nil {
		return nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("audit: rabbitmq dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("audit: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		log.Printf("audit: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(alert)
	if err != nil {
		log.Printf("audit: marshal alert failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		log.Printf("audit: publish failed: %v", err)
		return err
	}
	return nil
}
