// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sarafrika/camp-ussd/internal/persistence/sqlite"
)

const schemaVersion = 1

// SQLiteGateway implements Gateway against SQLite.
type SQLiteGateway struct {
	DB *sql.DB
}

// NewSQLiteGateway opens the database and applies the schema.
func NewSQLiteGateway(dbPath string) (*SQLiteGateway, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	g := &SQLiteGateway{DB: db}
	if err := g.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migration failed: %w", err)
	}
	return g, nil
}

func (g *SQLiteGateway) Close() error {
	return g.DB.Close()
}

func (g *SQLiteGateway) migrate() error {
	var currentVersion int
	if err := g.DB.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := g.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS camps (
		uuid TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS locations (
		uuid TEXT PRIMARY KEY,
		camp_uuid TEXT NOT NULL REFERENCES camps(uuid),
		name TEXT NOT NULL,
		fee REAL NOT NULL DEFAULT 0,
		dates TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_locations_camp ON locations(camp_uuid);

	CREATE TABLE IF NOT EXISTS activities (
		uuid TEXT PRIMARY KEY,
		camp_uuid TEXT NOT NULL REFERENCES camps(uuid),
		name TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activities_camp ON activities(camp_uuid);

	CREATE TABLE IF NOT EXISTS registrations (
		uuid TEXT PRIMARY KEY,
		camp_uuid TEXT NOT NULL REFERENCES camps(uuid),
		participant_name TEXT NOT NULL,
		participant_age INTEGER NOT NULL,
		participant_phone TEXT NOT NULL,
		guardian_phone TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT 'USSD_SYSTEM',
		created_at_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_registrations_phone ON registrations(participant_phone);

	CREATE TABLE IF NOT EXISTS orders (
		uuid TEXT PRIMARY KEY,
		registration_uuid TEXT NOT NULL REFERENCES registrations(uuid),
		activity_uuid TEXT,
		location_uuid TEXT,
		amount REAL NOT NULL,
		reference_code TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		payment_ref TEXT NOT NULL DEFAULT '',
		created_at_ms INTEGER NOT NULL,
		paid_at_ms INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_orders_registration ON orders(registration_uuid);
	`

	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Camps & reference data ---

func (g *SQLiteGateway) DistinctCampNames(ctx context.Context) ([]string, error) {
	rows, err := g.DB.QueryContext(ctx, "SELECT DISTINCT name FROM camps ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("store: list camp names: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (g *SQLiteGateway) CampByName(ctx context.Context, name string) (*Camp, error) {
	return g.campBy(ctx, "name = ?", name)
}

func (g *SQLiteGateway) CampByUUID(ctx context.Context, id uuid.UUID) (*Camp, error) {
	return g.campBy(ctx, "uuid = ?", id.String())
}

func (g *SQLiteGateway) campBy(ctx context.Context, where string, arg any) (*Camp, error) {
	var c Camp
	var id string
	err := g.DB.QueryRowContext(ctx,
		"SELECT uuid, name, category FROM camps WHERE "+where, arg).
		Scan(&id, &c.Name, &c.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load camp: %w", err)
	}
	c.UUID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("store: camp uuid: %w", err)
	}

	rows, err := g.DB.QueryContext(ctx,
		"SELECT uuid, name, fee, dates FROM locations WHERE camp_uuid = ? ORDER BY name", c.UUID.String())
	if err != nil {
		return nil, fmt.Errorf("store: load camp locations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var loc Location
		var locID string
		if err := rows.Scan(&locID, &loc.Name, &loc.Fee, &loc.Dates); err != nil {
			return nil, err
		}
		loc.UUID, _ = uuid.Parse(locID)
		loc.CampUUID = c.UUID
		c.Locations = append(c.Locations, loc)
	}
	return &c, rows.Err()
}

func (g *SQLiteGateway) ActivitiesByCamp(ctx context.Context, campID uuid.UUID) ([]Activity, error) {
	rows, err := g.DB.QueryContext(ctx,
		"SELECT uuid, name FROM activities WHERE camp_uuid = ? ORDER BY name", campID.String())
	if err != nil {
		return nil, fmt.Errorf("store: list activities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var activities []Activity
	for rows.Next() {
		var a Activity
		var id string
		if err := rows.Scan(&id, &a.Name); err != nil {
			return nil, err
		}
		a.UUID, _ = uuid.Parse(id)
		a.CampUUID = campID
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func (g *SQLiteGateway) LocationByUUID(ctx context.Context, id uuid.UUID) (*Location, error) {
	var loc Location
	var locID, campID string
	err := g.DB.QueryRowContext(ctx,
		"SELECT uuid, camp_uuid, name, fee, dates FROM locations WHERE uuid = ?", id.String()).
		Scan(&locID, &campID, &loc.Name, &loc.Fee, &loc.Dates)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load location: %w", err)
	}
	loc.UUID, _ = uuid.Parse(locID)
	loc.CampUUID, _ = uuid.Parse(campID)
	return &loc, nil
}

// --- Registrations ---

func (g *SQLiteGateway) CreateRegistration(ctx context.Context, reg *Registration) error {
	if reg.UUID == uuid.Nil {
		reg.UUID = uuid.New()
	}
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = time.Now().UTC()
	}
	if reg.CreatedBy == "" {
		reg.CreatedBy = "USSD_SYSTEM"
	}
	_, err := g.DB.ExecContext(ctx, `
		INSERT INTO registrations (uuid, camp_uuid, participant_name, participant_age,
			participant_phone, guardian_phone, created_by, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		reg.UUID.String(), reg.CampUUID.String(), reg.ParticipantName, reg.ParticipantAge,
		reg.ParticipantPhone, reg.GuardianPhone, reg.CreatedBy, reg.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("store: create registration: %w", err)
	}
	return nil
}

func (g *SQLiteGateway) RegistrationByUUID(ctx context.Context, id uuid.UUID) (*Registration, error) {
	var r Registration
	var regID, campID string
	var createdMs int64
	err := g.DB.QueryRowContext(ctx, `
		SELECT uuid, camp_uuid, participant_name, participant_age, participant_phone,
			guardian_phone, created_by, created_at_ms
		FROM registrations WHERE uuid = ?`, id.String()).
		Scan(&regID, &campID, &r.ParticipantName, &r.ParticipantAge,
			&r.ParticipantPhone, &r.GuardianPhone, &r.CreatedBy, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load registration: %w", err)
	}
	r.UUID, _ = uuid.Parse(regID)
	r.CampUUID, _ = uuid.Parse(campID)
	r.CreatedAt = time.UnixMilli(createdMs).UTC()
	return &r, nil
}

func (g *SQLiteGateway) RegistrationsByPhone(ctx context.Context, phone string) ([]Registration, error) {
	rows, err := g.DB.QueryContext(ctx, `
		SELECT uuid, camp_uuid, participant_name, participant_age, participant_phone,
			guardian_phone, created_by, created_at_ms
		FROM registrations WHERE participant_phone = ?
		ORDER BY created_at_ms DESC`, phone)
	if err != nil {
		return nil, fmt.Errorf("store: registrations by phone: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var regs []Registration
	for rows.Next() {
		var r Registration
		var id, campID string
		var createdMs int64
		if err := rows.Scan(&id, &campID, &r.ParticipantName, &r.ParticipantAge,
			&r.ParticipantPhone, &r.GuardianPhone, &r.CreatedBy, &createdMs); err != nil {
			return nil, err
		}
		r.UUID, _ = uuid.Parse(id)
		r.CampUUID, _ = uuid.Parse(campID)
		r.CreatedAt = time.UnixMilli(createdMs).UTC()
		regs = append(regs, r)
	}
	return regs, rows.Err()
}

// --- Orders ---

func (g *SQLiteGateway) CreateOrder(ctx context.Context, order *Order) error {
	if order.UUID == uuid.Nil {
		order.UUID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.Status == "" {
		order.Status = OrderPending
	}

	var activity, location any
	if order.ActivityUUID != uuid.Nil {
		activity = order.ActivityUUID.String()
	}
	if order.LocationUUID != uuid.Nil {
		location = order.LocationUUID.String()
	}

	_, err := g.DB.ExecContext(ctx, `
		INSERT INTO orders (uuid, registration_uuid, activity_uuid, location_uuid,
			amount, reference_code, status, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		order.UUID.String(), order.Registration.String(), activity, location,
		order.Amount, order.ReferenceCode, string(order.Status), order.CreatedAt.UnixMilli())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: orders.reference_code") {
			return ErrDuplicateReference
		}
		return fmt.Errorf("store: create order: %w", err)
	}
	return nil
}

func (g *SQLiteGateway) OrdersByRegistration(ctx context.Context, regID uuid.UUID) ([]Order, error) {
	rows, err := g.DB.QueryContext(ctx, `
		SELECT uuid, registration_uuid, activity_uuid, location_uuid, amount,
			reference_code, status, payment_ref, created_at_ms, paid_at_ms
		FROM orders WHERE registration_uuid = ? ORDER BY created_at_ms`, regID.String())
	if err != nil {
		return nil, fmt.Errorf("store: orders by registration: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (g *SQLiteGateway) OrderByReference(ctx context.Context, ref string) (*Order, error) {
	row := g.DB.QueryRowContext(ctx, `
		SELECT uuid, registration_uuid, activity_uuid, location_uuid, amount,
			reference_code, status, payment_ref, created_at_ms, paid_at_ms
		FROM orders WHERE reference_code = ?`, ref)
	o, err := scanOrder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: order by reference: %w", err)
	}
	return o, nil
}

func (g *SQLiteGateway) MarkOrderPaid(ctx context.Context, ref, paymentRef string) error {
	res, err := g.DB.ExecContext(ctx, `
		UPDATE orders SET status = ?, payment_ref = ?, paid_at_ms = ?
		WHERE reference_code = ? AND status != ?`,
		string(OrderPaid), paymentRef, time.Now().UTC().UnixMilli(), ref, string(OrderPaid))
	if err != nil {
		return fmt.Errorf("store: mark order paid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the reference is unknown or the order is already paid;
		// distinguish for the caller.
		if _, err := g.OrderByReference(ctx, ref); err != nil {
			return err
		}
		return nil
	}
	return nil
}

func scanOrder(scan func(dest ...any) error) (*Order, error) {
	var o Order
	var id, regID string
	var activityID, locationID sql.NullString
	var status string
	var createdMs int64
	var paidMs sql.NullInt64

	if err := scan(&id, &regID, &activityID, &locationID, &o.Amount,
		&o.ReferenceCode, &status, &o.PaymentRef, &createdMs, &paidMs); err != nil {
		return nil, err
	}
	o.UUID, _ = uuid.Parse(id)
	o.Registration, _ = uuid.Parse(regID)
	if activityID.Valid {
		o.ActivityUUID, _ = uuid.Parse(activityID.String)
	}
	if locationID.Valid {
		o.LocationUUID, _ = uuid.Parse(locationID.String)
	}
	o.Status = OrderStatus(status)
	o.CreatedAt = time.UnixMilli(createdMs).UTC()
	if paidMs.Valid {
		o.PaidAt = time.UnixMilli(paidMs.Int64).UTC()
	}
	return &o, nil
}
