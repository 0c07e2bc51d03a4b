package order

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comanda-app/backend-comanda/internal/db"
)

func TestCanTransitionDeliveryFlow(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{db.OrderStatusReceived, db.OrderStatusPreparing, true},
		{db.OrderStatusPreparing, db.OrderStatusOutForDelivery, true},
		{db.OrderStatusOutForDelivery, db.OrderStatusDelivered, true},
		{db.OrderStatusDelivered, db.OrderStatusClosed, true},
		// no skipping steps
		{db.OrderStatusReceived, db.OrderStatusOutForDelivery, false},
		{db.OrderStatusReceived, db.OrderStatusDelivered, false},
		{db.OrderStatusPreparing, db.OrderStatusClosed, false},
		// no going back
		{db.OrderStatusDelivered, db.OrderStatusPreparing, false},
		// served belongs to the dine_in flow
		{db.OrderStatusPreparing, db.OrderStatusServed, false},
		{db.OrderStatusReceived, db.OrderStatusReceived, false},
	}
	for _, tc := range cases {
		got := CanTransition(db.FulfillmentDelivery, tc.from, tc.to)
		require.Equal(t, tc.want, got, "%s -> %s", tc.from, tc.to)
	}
}

func TestCanTransitionPickupSkipsCourier(t *testing.T) {
	require.True(t, CanTransition(db.FulfillmentPickup, db.OrderStatusPreparing, db.OrderStatusDelivered))
	require.False(t, CanTransition(db.FulfillmentPickup, db.OrderStatusPreparing, db.OrderStatusOutForDelivery))
}

func TestCanTransitionDineIn(t *testing.T) {
	require.True(t, CanTransition(db.FulfillmentDineIn, db.OrderStatusPreparing, db.OrderStatusServed))
	require.True(t, CanTransition(db.FulfillmentDineIn, db.OrderStatusServed, db.OrderStatusClosed))
	require.False(t, CanTransition(db.FulfillmentDineIn, db.OrderStatusPreparing, db.OrderStatusDelivered))
}

func TestCanTransitionCancellation(t *testing.T) {
	for _, from := range []string{db.OrderStatusReceived, db.OrderStatusPreparing, db.OrderStatusOutForDelivery, db.OrderStatusDelivered} {
		require.True(t, CanTransition(db.FulfillmentDelivery, from, db.OrderStatusCancelled), "cancel from %s", from)
	}
	require.False(t, CanTransition(db.FulfillmentDelivery, db.OrderStatusClosed, db.OrderStatusCancelled))
	require.False(t, CanTransition(db.FulfillmentDelivery, db.OrderStatusCancelled, db.OrderStatusCancelled))
	require.False(t, CanTransition(db.FulfillmentDelivery, db.OrderStatusCancelled, db.OrderStatusReceived))
}

func TestNextStatuses(t *testing.T) {
	require.Equal(t,
		[]string{db.OrderStatusPreparing, db.OrderStatusCancelled},
		NextStatuses(db.FulfillmentDelivery, db.OrderStatusReceived))
	require.Equal(t,
		[]string{db.OrderStatusServed, db.OrderStatusCancelled},
		NextStatuses(db.FulfillmentDineIn, db.OrderStatusPreparing))
	require.Nil(t, NextStatuses(db.FulfillmentDelivery, db.OrderStatusClosed))
}
