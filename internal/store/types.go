// SPDX-License-Identifier: MIT

// Package store provides the camp/registration/order data gateway consumed by
// the menu engine, plus its SQLite implementation.
package store

import (
	"time"

	"github.com/google/uuid"
)

// Camp is a registerable camp. Locations are loaded with the camp.
type Camp struct {
	UUID      uuid.UUID
	Name      string
	Category  string
	Locations []Location
}

// Location is a venue a camp runs at, carrying the fee and date range shown
// to the caller.
type Location struct {
	UUID     uuid.UUID
	CampUUID uuid.UUID
	Name     string
	Fee      float64
	Dates    string
}

// Activity is an optional per-camp activity track.
type Activity struct {
	UUID     uuid.UUID
	CampUUID uuid.UUID
	Name     string
}

// Registration is the participant record created at the end of the flow.
type Registration struct {
	UUID             uuid.UUID
	CampUUID         uuid.UUID
	ParticipantName  string
	ParticipantAge   int
	ParticipantPhone string
	GuardianPhone    string
	CreatedBy        string
	CreatedAt        time.Time
}

// OrderStatus is the payment lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderFailed    OrderStatus = "FAILED"
)

// Order tracks the payment owed for a registration. ReferenceCode is the
// caller-facing token used for M-Pesa reconciliation and support lookups.
type Order struct {
	UUID          uuid.UUID
	Registration  uuid.UUID
	ActivityUUID  uuid.UUID // zero when the camp has no activities
	LocationUUID  uuid.UUID
	Amount        float64
	ReferenceCode string
	Status        OrderStatus
	PaymentRef    string
	CreatedAt     time.Time
	PaidAt        time.Time
}
