// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML shape for bootstrapping reference data.
type seedFile struct {
	Camps []struct {
		Name      string `yaml:"name"`
		Category  string `yaml:"category"`
		Locations []struct {
			Name  string  `yaml:"name"`
			Fee   float64 `yaml:"fee"`
			Dates string  `yaml:"dates"`
		} `yaml:"locations"`
		Activities []string `yaml:"activities"`
	} `yaml:"camps"`
}

// Seed loads camps, locations and activities from a YAML file. It is a no-op
// when the camps table already has rows, so repeated boots are safe.
func (g *SQLiteGateway) Seed(ctx context.Context, path string) error {
	var count int
	if err := g.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM camps").Scan(&count); err != nil {
		return fmt.Errorf("store: seed precheck: %w", err)
	}
	if count > 0 {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("store: read seed file %s: %w", path, err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("store: parse seed file %s: %w", path, err)
	}

	tx, err := g.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, camp := range seed.Camps {
		campID := uuid.New()
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO camps (uuid, name, category) VALUES (?, ?, ?)",
			campID.String(), camp.Name, camp.Category); err != nil {
			return fmt.Errorf("store: seed camp %q: %w", camp.Name, err)
		}
		for _, loc := range camp.Locations {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO locations (uuid, camp_uuid, name, fee, dates) VALUES (?, ?, ?, ?, ?)",
				uuid.New().String(), campID.String(), loc.Name, loc.Fee, loc.Dates); err != nil {
				return fmt.Errorf("store: seed location %q: %w", loc.Name, err)
			}
		}
		for _, activity := range camp.Activities {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO activities (uuid, camp_uuid, name) VALUES (?, ?, ?)",
				uuid.New().String(), campID.String(), activity); err != nil {
				return fmt.Errorf("store: seed activity %q: %w", activity, err)
			}
		}
	}
	return tx.Commit()
}
