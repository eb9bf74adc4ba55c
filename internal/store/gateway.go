// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a referenced entity does not exist. Menu
// handlers treat it as "reference data vanished between render and selection".
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateReference is returned when an order reference code collides.
// The caller regenerates and retries.
var ErrDuplicateReference = errors.New("store: duplicate reference code")

// Gateway is the read/write contract the menu engine depends on.
type Gateway interface {
	DistinctCampNames(ctx context.Context) ([]string, error)
	CampByName(ctx context.Context, name string) (*Camp, error)
	CampByUUID(ctx context.Context, id uuid.UUID) (*Camp, error)
	ActivitiesByCamp(ctx context.Context, campID uuid.UUID) ([]Activity, error)
	LocationByUUID(ctx context.Context, id uuid.UUID) (*Location, error)

	CreateRegistration(ctx context.Context, reg *Registration) error
	RegistrationByUUID(ctx context.Context, id uuid.UUID) (*Registration, error)
	RegistrationsByPhone(ctx context.Context, phone string) ([]Registration, error)

	CreateOrder(ctx context.Context, order *Order) error
	OrdersByRegistration(ctx context.Context, regID uuid.UUID) ([]Order, error)
	OrderByReference(ctx context.Context, ref string) (*Order, error)
	MarkOrderPaid(ctx context.Context, ref, paymentRef string) error
}
