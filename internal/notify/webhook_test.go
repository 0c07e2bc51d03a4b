package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/comanda-app/backend-comanda/internal/db"
	"github.com/comanda-app/backend-comanda/internal/resilience"
)

func TestSendSignsPayload(t *testing.T) {
	const secret = "whsec-test"
	var (
		gotBody []byte
		gotSig  string
		gotTS   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(HeaderSignature)
		gotTS = r.Header.Get(HeaderTimestamp)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sender := &WebhookSender{URL: srv.URL, Secret: secret, AllowPrivate: true}
	body := []byte(`{"topic":"order:created"}`)
	require.NoError(t, sender.Send(context.Background(), "evt-1", body))

	require.Equal(t, body, gotBody)
	require.NotEmpty(t, gotTS)
	require.True(t, VerifySignature(secret, gotTS, gotBody, gotSig))
	require.False(t, VerifySignature("wrong-secret", gotTS, gotBody, gotSig))
}

func TestSendNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := &WebhookSender{URL: srv.URL, Secret: "s", AllowPrivate: true}
	err := sender.Send(context.Background(), "evt-1", []byte("{}"))
	require.Error(t, err)
}

func TestSendNoURLIsNoop(t *testing.T) {
	sender := &WebhookSender{Secret: "s"}
	require.NoError(t, sender.Send(context.Background(), "evt-1", []byte("{}")))
}

func TestSendOpenBreakerRejects(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := resilience.NewBreaker(2, 0.5, time.Minute)
	sender := &WebhookSender{URL: srv.URL, Secret: "s", Breaker: breaker, AllowPrivate: true}

	require.Error(t, sender.Send(context.Background(), "evt-1", []byte("{}")))
	require.Error(t, sender.Send(context.Background(), "evt-2", []byte("{}")))
	require.Equal(t, 2, calls)

	err := sender.Send(context.Background(), "evt-3", []byte("{}"))
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.Equal(t, 2, calls, "open breaker must not hit the endpoint")
}

func TestSendRejectsPrivateAddress(t *testing.T) {
	sender := &WebhookSender{URL: "http://127.0.0.1:9/hook", Secret: "s"}
	err := sender.Send(context.Background(), "evt-1", []byte("{}"))
	require.Error(t, err)
}

func TestOrderCreatedTaskPayload(t *testing.T) {
	order := db.Order{
		ID:              uuid.New(),
		EstablishmentID: uuid.New(),
		Ref:             "20260510-001",
		Status:          db.OrderStatusReceived,
		Fulfillment:     db.FulfillmentDelivery,
		Total:           decimal.RequireFromString("69"),
	}
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	task, err := NewOrderCreatedTask(order, now)
	require.NoError(t, err)
	require.Equal(t, TaskOrderCreated, task.Type())

	var event OrderEvent
	require.NoError(t, json.Unmarshal(task.Payload(), &event))
	require.Equal(t, order.Ref, event.Ref)
	require.Equal(t, "69.00", event.Total)
	require.Equal(t, now, event.OccurredAt)
	require.NotEmpty(t, event.EventID)
}

func TestWorkerDeliversAndRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	worker := &Worker{Sender: &WebhookSender{URL: srv.URL, Secret: "s", AllowPrivate: true}}
	order := db.Order{ID: uuid.New(), Ref: "20260510-001", Total: decimal.NewFromInt(10)}
	task, err := NewOrderCreatedTask(order, time.Now())
	require.NoError(t, err)

	require.Error(t, worker.HandleOrderEvent(context.Background(), task))
	require.NoError(t, worker.HandleOrderEvent(context.Background(), task))
	require.Equal(t, 2, calls)
}

func TestWorkerSkipsMalformedPayload(t *testing.T) {
	worker := &Worker{Sender: &WebhookSender{}}
	task := asynq.NewTask(TaskOrderCreated, []byte("not-json"))

	err := worker.HandleOrderEvent(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
