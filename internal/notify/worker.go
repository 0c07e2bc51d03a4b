package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Worker consumes notification tasks from asynq.
type Worker struct {
	Sender *WebhookSender
}

// Register attaches the worker's handlers to an asynq mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskOrderCreated, w.HandleOrderEvent)
	mux.HandleFunc(TaskOrderStatusChanged, w.HandleOrderEvent)
}

// HandleOrderEvent delivers order lifecycle webhooks; the payload topic
// tells receivers which event fired. Returning an error hands the task back
// to asynq for retry.
func (w *Worker) HandleOrderEvent(ctx context.Context, t *asynq.Task) error {
	var event OrderEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		// A malformed payload will never deliver; drop it.
		return fmt.Errorf("decode order event: %v: %w", err, asynq.SkipRetry)
	}
	logger := zerolog.Ctx(ctx).With().
		Str("event_id", event.EventID).
		Str("order_ref", event.Ref).
		Logger()
	if err := w.Sender.Send(logger.WithContext(ctx), event.EventID, t.Payload()); err != nil {
		logger.Warn().Err(err).Msg("webhook delivery failed")
		return err
	}
	return nil
}
