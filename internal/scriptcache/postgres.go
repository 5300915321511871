package scriptcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/database"
)

// PostgresStore keeps scripts in the correction_scripts and
// correction_script_costs tables.
type PostgresStore struct {
	db database.TxBeginner
}

// NewPostgresStore returns a store over db (a pool in production).
func NewPostgresStore(db database.TxBeginner) *PostgresStore {
	return &PostgresStore{db: db}
}

const lookupQuery = `
WITH hit AS (
    UPDATE correction_scripts
       SET use_count = use_count + 1
     WHERE fingerprint = $1
 RETURNING id, fingerprint, script, description, use_count, created_at, updated_at
)
SELECT hit.id::text, hit.fingerprint, hit.script, hit.description, hit.use_count,
       COALESCE((SELECT SUM(c.tokens) FROM correction_script_costs c WHERE c.script_id = hit.id), 0)::int,
       hit.created_at, hit.updated_at
  FROM hit`

func (s *PostgresStore) Lookup(ctx context.Context, fp string) (*Script, error) {
	var sc Script
	err := s.db.QueryRow(ctx, lookupQuery, fp).Scan(
		&sc.ID, &sc.Fingerprint, &sc.Text, &sc.Description, &sc.UseCount,
		&sc.TokenCost, &sc.CreatedAt, &sc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup script: %w", err)
	}
	return &sc, nil
}

const upsertQuery = `
INSERT INTO correction_scripts (id, fingerprint, script, description)
VALUES ($1::uuid, $2, $3, $4)
ON CONFLICT (fingerprint) DO UPDATE
   SET script = EXCLUDED.script,
       description = EXCLUDED.description,
       updated_at = now()
RETURNING id::text`

const costQuery = `INSERT INTO correction_script_costs (script_id, tokens) VALUES ($1::uuid, $2)`

func (s *PostgresStore) Save(ctx context.Context, fp, text, description string, tokenCost int) (string, error) {
	var id string
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, upsertQuery, uuid.NewString(), fp, text, description).Scan(&id); err != nil {
			return fmt.Errorf("upsert script: %w", err)
		}
		if _, err := tx.Exec(ctx, costQuery, id, tokenCost); err != nil {
			return fmt.Errorf("record script cost: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}
