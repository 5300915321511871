package sink

// convert.go turns corrected cell text into pgtype values. Values that are
// empty or do not parse come back with Valid=false, which the row builder
// reports as a row error before the database sees them.

import (
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/table"
)

// numericRegex validates that a string is a plain decimal after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// dateLayouts are tried in order. Corrected files carry ISO dates; the
// day-first layouts cover files that were valid on arrival.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2006/01/02",
}

// ToPgText converts a string to pgtype.Text. Nulls are invalid.
func ToPgText(s string) pgtype.Text {
	if table.IsNull(s) {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: strings.TrimSpace(s), Valid: true}
}

// ToPgDate converts a string to pgtype.Date.
func ToPgDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if table.IsNull(s) {
		return pgtype.Date{Valid: false}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Date{Time: t, Valid: true}
		}
	}
	return pgtype.Date{Valid: false}
}

// ToPgNumeric converts a string to pgtype.Numeric. Currency signs and
// thousands commas are dropped and accounting negatives "(1.00)" are
// honoured.
func ToPgNumeric(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if table.IsNull(s) {
		return pgtype.Numeric{Valid: false}
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("R$", "", "$", "", "€", "", ",", "", " ", "").Replace(s)
	if negative {
		s = "-" + s
	}
	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// Transaction statuses.
const (
	StatusPending   = "PENDENTE"
	StatusCompleted = "CONCLUIDA"
	StatusCancelled = "CANCELADA"
)

// NormalizeStatus upper-cases a status and falls back to PENDENTE for
// nulls and anything unknown.
func NormalizeStatus(s string) string {
	if table.IsNull(s) {
		return StatusPending
	}
	switch up := strings.ToUpper(strings.TrimSpace(s)); up {
	case StatusPending, StatusCompleted, StatusCancelled:
		return up
	}
	return StatusPending
}
