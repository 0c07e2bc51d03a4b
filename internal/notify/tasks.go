// Package notify pushes order events to the establishment's webhook out of
// band, through an asynq task queue backed by Redis.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/comanda-app/backend-comanda/internal/db"
)

// Task types for order lifecycle notifications.
const (
	TaskOrderCreated       = "order:created"
	TaskOrderStatusChanged = "order:status_changed"
)

// QueueName is the asynq queue notifications are routed to.
const QueueName = "notify"

// OrderEvent is the webhook payload for an order lifecycle event.
type OrderEvent struct {
	EventID         string    `json:"eventId"`
	Topic           string    `json:"topic"`
	OrderID         uuid.UUID `json:"orderId"`
	EstablishmentID uuid.UUID `json:"establishmentId"`
	Ref             string    `json:"ref"`
	Status          string    `json:"status"`
	Fulfillment     string    `json:"fulfillment"`
	Total           string    `json:"total"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// NewOrderCreatedTask builds the asynq task for a freshly committed order.
func NewOrderCreatedTask(order db.Order, now time.Time) (*asynq.Task, error) {
	return newOrderTask(TaskOrderCreated, order, now)
}

// NewOrderStatusChangedTask builds the asynq task for a status transition.
func NewOrderStatusChangedTask(order db.Order, now time.Time) (*asynq.Task, error) {
	return newOrderTask(TaskOrderStatusChanged, order, now)
}

func newOrderTask(topic string, order db.Order, now time.Time) (*asynq.Task, error) {
	event := OrderEvent{
		EventID:         uuid.NewString(),
		Topic:           topic,
		OrderID:         order.ID,
		EstablishmentID: order.EstablishmentID,
		Ref:             order.Ref,
		Status:          order.Status,
		Fulfillment:     order.Fulfillment,
		Total:           order.Total.StringFixed(2),
		OccurredAt:      now.UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(topic, payload,
		asynq.Queue(QueueName),
		asynq.MaxRetry(6),
		asynq.Timeout(30*time.Second),
	), nil
}

// Enqueuer publishes order events to asynq. It satisfies the checkout
// service's Notifier.
type Enqueuer struct {
	Client *asynq.Client
	Now    func() time.Time
}

// OrderCreated enqueues the order:created task.
func (e *Enqueuer) OrderCreated(ctx context.Context, order db.Order) error {
	return e.enqueue(ctx, TaskOrderCreated, order)
}

// OrderStatusChanged enqueues the order:status_changed task.
func (e *Enqueuer) OrderStatusChanged(ctx context.Context, order db.Order) error {
	return e.enqueue(ctx, TaskOrderStatusChanged, order)
}

func (e *Enqueuer) enqueue(ctx context.Context, topic string, order db.Order) error {
	if e == nil || e.Client == nil {
		return nil
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	task, err := newOrderTask(topic, order, now())
	if err != nil {
		return err
	}
	_, err = e.Client.EnqueueContext(ctx, task)
	return err
}
