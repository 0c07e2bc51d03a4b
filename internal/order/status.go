// Package order exposes customer order tracking and the staff board.
package order

import (
	"errors"

	"github.com/comanda-app/backend-comanda/internal/db"
)

// ErrInvalidTransition is returned when the requested status move is not
// allowed by the order's fulfillment flow.
var ErrInvalidTransition = errors.New("invalid status transition")

// flows maps each fulfillment kind to its forward status sequence.
// cancelled is reachable from any non-final status and is handled separately.
var flows = map[string][]string{
	db.FulfillmentDelivery: {
		db.OrderStatusReceived,
		db.OrderStatusPreparing,
		db.OrderStatusOutForDelivery,
		db.OrderStatusDelivered,
		db.OrderStatusClosed,
	},
	db.FulfillmentPickup: {
		db.OrderStatusReceived,
		db.OrderStatusPreparing,
		db.OrderStatusDelivered,
		db.OrderStatusClosed,
	},
	db.FulfillmentDineIn: {
		db.OrderStatusReceived,
		db.OrderStatusPreparing,
		db.OrderStatusServed,
		db.OrderStatusClosed,
	},
}

// CanTransition reports whether an order in the given fulfillment flow may
// move from one status straight to another. Only single forward steps and
// cancellation of non-final orders are allowed.
func CanTransition(fulfillment, from, to string) bool {
	if from == to {
		return false
	}
	if to == db.OrderStatusCancelled {
		return !isFinal(from)
	}
	flow, ok := flows[fulfillment]
	if !ok {
		return false
	}
	for i := 0; i < len(flow)-1; i++ {
		if flow[i] == from {
			return flow[i+1] == to
		}
	}
	return false
}

// NextStatuses lists the statuses an order may move to from its current one.
func NextStatuses(fulfillment, current string) []string {
	var out []string
	flow, ok := flows[fulfillment]
	if ok {
		for i := 0; i < len(flow)-1; i++ {
			if flow[i] == current {
				out = append(out, flow[i+1])
				break
			}
		}
	}
	if !isFinal(current) {
		out = append(out, db.OrderStatusCancelled)
	}
	return out
}

func isFinal(status string) bool {
	return status == db.OrderStatusClosed || status == db.OrderStatusCancelled
}
