// Package sink writes corrected transaction tables to their destination.
//
// Every row is inserted on its own: a row that fails is recorded and the
// rest continue. Rows whose id_transacao already exists are counted as
// duplicates, not errors, so inserting the same file twice is harmless.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/table"
)

// Columns is the column list of transacoes_financeiras, in insert order.
var Columns = []string{
	"id_transacao",
	"data_transacao",
	"valor",
	"tipo",
	"categoria",
	"descricao",
	"conta_origem",
	"conta_destino",
	"status",
}

// RowError describes one row that could not be written.
type RowError struct {
	Row        int    `json:"row"` // 1-based data row
	NaturalKey string `json:"id_transacao"`
	Message    string `json:"message"`
}

// Result summarises an insertion.
type Result struct {
	Inserted   int        `json:"inserted"`
	Duplicates int        `json:"duplicates"`
	Total      int        `json:"total"`
	Errors     []RowError `json:"errors"`
}

// Outcome is the overall verdict of an insertion.
type Outcome string

const (
	OutcomeSuccess  Outcome = "SUCCESS"
	OutcomePartial  Outcome = "PARTIAL"
	OutcomeCritical Outcome = "CRITICAL"
)

// Classify grades r. Nothing written at all, not even as a duplicate, is
// critical; any row error short of that is partial.
func Classify(r *Result) Outcome {
	switch {
	case r == nil || (r.Inserted == 0 && r.Duplicates == 0):
		return OutcomeCritical
	case len(r.Errors) > 0:
		return OutcomePartial
	}
	return OutcomeSuccess
}

// Summary renders the first row errors for the next correction attempt.
func (r *Result) Summary(max int) string {
	msg := fmt.Sprintf("%d of %d rows failed to insert", len(r.Errors), r.Total)
	for i, e := range r.Errors {
		if i == max {
			msg += fmt.Sprintf("\n- ... %d more", len(r.Errors)-max)
			break
		}
		msg += fmt.Sprintf("\n- row %d (%s): %s", e.Row, e.NaturalKey, e.Message)
	}
	return msg
}

// Sink stores transactions.
type Sink interface {
	Insert(ctx context.Context, t *table.Table) (*Result, error)
}

// Transaction is one typed row of transacoes_financeiras.
type Transaction struct {
	ID          pgtype.Text
	Date        pgtype.Date
	Amount      pgtype.Numeric
	Kind        pgtype.Text
	Category    pgtype.Text
	Description pgtype.Text
	SourceAcct  pgtype.Text
	TargetAcct  pgtype.Text
	Status      string
}

// Args returns the insert parameters in Columns order.
func (tx Transaction) Args() []any {
	return []any{
		tx.ID, tx.Date, tx.Amount, tx.Kind, tx.Category,
		tx.Description, tx.SourceAcct, tx.TargetAcct, tx.Status,
	}
}

var errRequired = errors.New("value is required")

// BuildTransaction converts row i of t. It applies the same constraints
// as the table definition, so bad rows fail before reaching the database.
func BuildTransaction(t *table.Table, i int) (Transaction, error) {
	tx := Transaction{
		ID:          ToPgText(t.Cell(i, "id_transacao")),
		Date:        ToPgDate(t.Cell(i, "data_transacao")),
		Amount:      ToPgNumeric(t.Cell(i, "valor")),
		Kind:        ToPgText(t.Cell(i, "tipo")),
		Category:    ToPgText(t.Cell(i, "categoria")),
		Description: ToPgText(t.Cell(i, "descricao")),
		SourceAcct:  ToPgText(t.Cell(i, "conta_origem")),
		TargetAcct:  ToPgText(t.Cell(i, "conta_destino")),
		Status:      NormalizeStatus(t.Cell(i, "status")),
	}

	switch {
	case !tx.ID.Valid:
		return tx, fmt.Errorf("id_transacao: %w", errRequired)
	case !tx.Date.Valid:
		return tx, fmt.Errorf("data_transacao: invalid date %q", t.Cell(i, "data_transacao"))
	case !tx.Amount.Valid:
		return tx, fmt.Errorf("valor: invalid amount %q", t.Cell(i, "valor"))
	case tx.Kind.String != "CREDITO" && tx.Kind.String != "DEBITO":
		return tx, fmt.Errorf("tipo: %q is not CREDITO or DEBITO", t.Cell(i, "tipo"))
	case !tx.Category.Valid:
		return tx, fmt.Errorf("categoria: %w", errRequired)
	case !tx.SourceAcct.Valid:
		return tx, fmt.Errorf("conta_origem: %w", errRequired)
	}
	return tx, nil
}
