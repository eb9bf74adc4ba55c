// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T) *SQLiteGateway {
	t.Helper()
	g, err := NewSQLiteGateway(filepath.Join(t.TempDir(), "camp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func seedCamp(t *testing.T, g *SQLiteGateway, name string) *Camp {
	t.Helper()
	ctx := context.Background()
	campID := uuid.New()
	_, err := g.DB.ExecContext(ctx,
		"INSERT INTO camps (uuid, name, category) VALUES (?, ?, ?)",
		campID.String(), name, "Adventure")
	require.NoError(t, err)
	_, err = g.DB.ExecContext(ctx,
		"INSERT INTO locations (uuid, camp_uuid, name, fee, dates) VALUES (?, ?, ?, ?, ?)",
		uuid.New().String(), campID.String(), "Karen", 5000.0, "Dec 1-5")
	require.NoError(t, err)

	camp, err := g.CampByUUID(ctx, campID)
	require.NoError(t, err)
	return camp
}

func TestDistinctCampNames(t *testing.T) {
	g := newTestGateway(t)
	seedCamp(t, g, "Zebra Camp")
	seedCamp(t, g, "Acacia Camp")

	names, err := g.DistinctCampNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Acacia Camp", "Zebra Camp"}, names)
}

func TestCampByNameLoadsLocations(t *testing.T) {
	g := newTestGateway(t)
	seedCamp(t, g, "Acacia Camp")

	camp, err := g.CampByName(context.Background(), "Acacia Camp")
	require.NoError(t, err)
	require.Len(t, camp.Locations, 1)
	assert.Equal(t, "Karen", camp.Locations[0].Name)
	assert.Equal(t, 5000.0, camp.Locations[0].Fee)
	assert.Equal(t, camp.UUID, camp.Locations[0].CampUUID)
}

func TestCampNotFound(t *testing.T) {
	g := newTestGateway(t)
	_, err := g.CampByName(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = g.CampByUUID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = g.LocationByUUID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistrationAndOrderLifecycle(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()
	camp := seedCamp(t, g, "Acacia Camp")

	reg := &Registration{
		CampUUID:         camp.UUID,
		ParticipantName:  "John Doe",
		ParticipantAge:   16,
		ParticipantPhone: "254712345678",
		GuardianPhone:    "254722000000",
	}
	require.NoError(t, g.CreateRegistration(ctx, reg))
	require.NotEqual(t, uuid.Nil, reg.UUID)

	order := &Order{
		Registration:  reg.UUID,
		LocationUUID:  camp.Locations[0].UUID,
		Amount:        5000,
		ReferenceCode: "CS-ABCD1234",
	}
	require.NoError(t, g.CreateOrder(ctx, order))
	assert.Equal(t, OrderPending, order.Status)

	loaded, err := g.RegistrationByUUID(ctx, reg.UUID)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", loaded.ParticipantName)
	assert.Equal(t, camp.UUID, loaded.CampUUID)

	_, err = g.RegistrationByUUID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	regs, err := g.RegistrationsByPhone(ctx, "254712345678")
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "John Doe", regs[0].ParticipantName)

	orders, err := g.OrdersByRegistration(ctx, reg.UUID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "CS-ABCD1234", orders[0].ReferenceCode)

	require.NoError(t, g.MarkOrderPaid(ctx, "CS-ABCD1234", "MPESA-XYZ"))
	paid, err := g.OrderByReference(ctx, "CS-ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, OrderPaid, paid.Status)
	assert.Equal(t, "MPESA-XYZ", paid.PaymentRef)
	assert.False(t, paid.PaidAt.IsZero())

	// Marking twice keeps the original payment reference.
	require.NoError(t, g.MarkOrderPaid(ctx, "CS-ABCD1234", "MPESA-OTHER"))
	paid, err = g.OrderByReference(ctx, "CS-ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, "MPESA-XYZ", paid.PaymentRef)
}

func TestDuplicateReferenceCode(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()
	camp := seedCamp(t, g, "Acacia Camp")

	reg := &Registration{CampUUID: camp.UUID, ParticipantName: "A", ParticipantAge: 10, ParticipantPhone: "254712345678"}
	require.NoError(t, g.CreateRegistration(ctx, reg))

	first := &Order{Registration: reg.UUID, Amount: 1, ReferenceCode: "CS-SAME0000"}
	require.NoError(t, g.CreateOrder(ctx, first))

	dup := &Order{Registration: reg.UUID, Amount: 1, ReferenceCode: "CS-SAME0000"}
	assert.ErrorIs(t, g.CreateOrder(ctx, dup), ErrDuplicateReference)
}

func TestMarkOrderPaidUnknownReference(t *testing.T) {
	g := newTestGateway(t)
	err := g.MarkOrderPaid(context.Background(), "CS-NOPE0000", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeedFromYAML(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	seedPath := filepath.Join(t.TempDir(), "seed.yaml")
	seedYAML := `camps:
  - name: Acacia Camp
    category: Adventure
    locations:
      - name: Karen
        fee: 5000
        dates: Dec 1-5
      - name: Naivasha
        fee: 7500
        dates: Dec 8-12
    activities:
      - Swimming
      - Archery
`
	require.NoError(t, os.WriteFile(seedPath, []byte(seedYAML), 0o600))
	require.NoError(t, g.Seed(ctx, seedPath))

	camp, err := g.CampByName(ctx, "Acacia Camp")
	require.NoError(t, err)
	assert.Len(t, camp.Locations, 2)

	activities, err := g.ActivitiesByCamp(ctx, camp.UUID)
	require.NoError(t, err)
	assert.Len(t, activities, 2)

	// Seeding again must be a no-op.
	require.NoError(t, g.Seed(ctx, seedPath))
	names, err := g.DistinctCampNames(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 1)
}
