package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Establishment is one tenant of the platform: a restaurant with its own
// menu, staff, and PIX merchant profile.
type Establishment struct {
	ID              uuid.UUID
	Slug            string
	Name            string
	PixKey          string
	PixMerchantName string
	PixMerchantCity string
	DeliveryFee     decimal.Decimal
	Open            bool
	PlanID          *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Plan is a subscription tier managed by the master admin.
type Plan struct {
	ID           uuid.UUID
	Name         string
	PriceMonthly decimal.Decimal
	MaxProducts  int32
	Active       bool
	CreatedAt    time.Time
}

// StaffUser is a back-office login. Role is one of master, owner, staff.
// EstablishmentID is nil for master admins.
type StaffUser struct {
	ID              uuid.UUID
	EstablishmentID *uuid.UUID
	Name            string
	Email           string
	PasswordHash    string
	Role            string
	CreatedAt       time.Time
}

// Category groups menu products for display.
type Category struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	Name            string
	Position        int32
}

// Product is a menu entry. BasePrice applies when no variation is chosen.
type Product struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	CategoryID      *uuid.UUID
	Name            string
	Slug            string
	Description     string
	BasePrice       decimal.Decimal
	Available       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Variation is a size/flavour option that replaces the product base price.
type Variation struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Name      string
	Price     decimal.Decimal
}

// AddonOption is an optional extra priced per unit.
type AddonOption struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Name      string
	Price     decimal.Decimal
}

// Cart is an anonymous shopper session cart, scoped to an establishment.
type Cart struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	SessionID       string
	CouponCode      *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

// CartItemAddon is the snapshot of one selected add-on, stored as JSON on
// the item so later menu edits don't reprice existing carts.
type CartItemAddon struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// CartItem is one configured product selection in a cart.
type CartItem struct {
	ID          uuid.UUID
	CartID      uuid.UUID
	ProductID   uuid.UUID
	VariationID *uuid.UUID
	Name        string
	UnitPrice   decimal.Decimal
	Qty         int32
	Addons      []CartItemAddon
	Note        string
	CreatedAt   time.Time
}

// Coupon is a promotional code. Kind is fixed, percent, or free_delivery.
type Coupon struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	Code            string
	Kind            string
	Value           decimal.Decimal
	PercentBps      *int32
	MinSpend        decimal.Decimal
	UsageLimit      *int32
	UsedCount       int32
	ValidFrom       *time.Time
	ValidTo         *time.Time
	CreatedAt       time.Time
}

// Order statuses per fulfillment flow.
const (
	OrderStatusReceived       = "received"
	OrderStatusPreparing      = "preparing"
	OrderStatusOutForDelivery = "out_for_delivery"
	OrderStatusDelivered      = "delivered"
	OrderStatusServed         = "served"
	OrderStatusClosed         = "closed"
	OrderStatusCancelled      = "cancelled"
)

// ValidOrderStatus reports whether the value is a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusReceived, OrderStatusPreparing, OrderStatusOutForDelivery,
		OrderStatusDelivered, OrderStatusServed, OrderStatusClosed, OrderStatusCancelled:
		return true
	}
	return false
}

// Fulfillment kinds.
const (
	FulfillmentDelivery = "delivery"
	FulfillmentPickup   = "pickup"
	FulfillmentDineIn   = "dine_in"
)

// ValidFulfillment reports whether the value is a known fulfillment kind.
func ValidFulfillment(s string) bool {
	switch s {
	case FulfillmentDelivery, FulfillmentPickup, FulfillmentDineIn:
		return true
	}
	return false
}

// Order is a placed order with a frozen pricing breakdown.
type Order struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	Ref             string
	Status          string
	Fulfillment     string
	TableNumber     *int32
	CustomerName    string
	CustomerPhone   string
	Address         *string
	Subtotal        decimal.Decimal
	DeliveryFee     decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	CouponCode      *string
	PaymentMethod   string
	PixPayload      *string
	Note            string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem is a frozen copy of a cart item at checkout time.
type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Name      string
	UnitPrice decimal.Decimal
	Qty       int32
	Addons    []CartItemAddon
	Note      string
	Total     decimal.Decimal
}
