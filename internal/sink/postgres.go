package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/database"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/table"
)

// contextCheckInterval is how many rows pass between cancellation checks.
const contextCheckInterval = 1000

var insertQuery = fmt.Sprintf(
	`INSERT INTO transacoes_financeiras (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id_transacao) DO NOTHING`,
	strings.Join(Columns, ", "))

// PostgresSink inserts into transacoes_financeiras inside one transaction,
// with a savepoint per row so one bad row does not abort the rest.
type PostgresSink struct {
	db database.TxBeginner
}

// NewPostgresSink returns a sink writing through db.
func NewPostgresSink(db database.TxBeginner) *PostgresSink {
	return &PostgresSink{db: db}
}

// Insert writes every row of t. The error return is reserved for failures
// of the transaction itself; row problems are reported in Result.
func (s *PostgresSink) Insert(ctx context.Context, t *table.Table) (*Result, error) {
	res := &Result{Total: t.Len()}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := 0; i < t.Len(); i++ {
		if i%contextCheckInterval == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		row, err := BuildTransaction(t, i)
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: i + 1, NaturalKey: row.ID.String, Message: err.Error()})
			continue
		}

		savepoint := fmt.Sprintf("sp_%d", i)
		if _, err := tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
			return nil, fmt.Errorf("create savepoint: %w", err)
		}

		tag, err := tx.Exec(ctx, insertQuery, row.Args()...)
		if err != nil {
			_, _ = tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint)
			res.Errors = append(res.Errors, RowError{Row: i + 1, NaturalKey: row.ID.String, Message: fmt.Sprintf("insert: %v", err)})
			continue
		}
		_, _ = tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint)

		if tag.RowsAffected() == 0 {
			res.Duplicates++
		} else {
			res.Inserted++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	slog.Info("transactions inserted",
		"inserted", res.Inserted,
		"duplicates", res.Duplicates,
		"errors", len(res.Errors),
		"total", res.Total,
	)
	return res, nil
}
