package sink

import (
	"math"
	"testing"
	"time"
)

func TestToPgNumeric(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantValue float64
	}{
		{name: "integer", input: "123", wantValid: true, wantValue: 123},
		{name: "decimal", input: "1234.56", wantValid: true, wantValue: 1234.56},
		{name: "negative", input: "-10.5", wantValid: true, wantValue: -10.5},
		{name: "leading decimal point", input: ".99", wantValid: true, wantValue: 0.99},
		{name: "real sign", input: "R$ 1234.56", wantValid: true, wantValue: 1234.56},
		{name: "dollar with thousands", input: "$1,234.56", wantValid: true, wantValue: 1234.56},
		{name: "accounting negative", input: "(99.90)", wantValid: true, wantValue: -99.9},
		{name: "surrounded by whitespace", input: "  42  ", wantValid: true, wantValue: 42},

		{name: "empty", input: "", wantValid: false},
		{name: "textual null", input: "nan", wantValid: false},
		{name: "alphabetic", input: "abc", wantValid: false},
		{name: "multiple points", input: "12.34.56", wantValid: false},
		{name: "double negative", input: "--1", wantValid: false},
		{name: "scientific notation", input: "1.5e10", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToPgNumeric(tt.input)
			if result.Valid != tt.wantValid {
				t.Fatalf("ToPgNumeric(%q).Valid = %v, want %v", tt.input, result.Valid, tt.wantValid)
			}
			if !tt.wantValid {
				return
			}
			f, err := result.Float64Value()
			if err != nil {
				t.Fatalf("Float64Value() error: %v", err)
			}
			if math.Abs(f.Float64-tt.wantValue) > 1e-9 {
				t.Errorf("ToPgNumeric(%q) = %v, want %v", tt.input, f.Float64, tt.wantValue)
			}
		})
	}
}

func TestToPgDate(t *testing.T) {
	tests := []struct {
		input string
		want  string // empty means invalid
	}{
		{"2024-01-15", "2024-01-15"},
		{"2024-01-15 10:30:00", "2024-01-15"},
		{"15/01/2024", "2024-01-15"},
		{"03/02/2024", "2024-02-03"},
		{"15-01-2024", "2024-01-15"},
		{"15.01.2024", "2024-01-15"},
		{"2024/01/15", "2024-01-15"},
		{"", ""},
		{"null", ""},
		{"31/02/2024", ""},
		{"yesterday", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ToPgDate(tt.input)
			if tt.want == "" {
				if got.Valid {
					t.Errorf("ToPgDate(%q) = %v, want invalid", tt.input, got.Time)
				}
				return
			}
			if !got.Valid {
				t.Fatalf("ToPgDate(%q) invalid, want %s", tt.input, tt.want)
			}
			if s := got.Time.Format(time.DateOnly); s != tt.want {
				t.Errorf("ToPgDate(%q) = %s, want %s", tt.input, s, tt.want)
			}
		})
	}
}

func TestToPgText(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		want      string
	}{
		{"food", true, "food"},
		{"  padded  ", true, "padded"},
		{"", false, ""},
		{"   ", false, ""},
		{"N/A", false, ""},
		{"None", false, ""},
	}

	for _, tt := range tests {
		got := ToPgText(tt.input)
		if got.Valid != tt.wantValid || got.String != tt.want {
			t.Errorf("ToPgText(%q) = {%q %v}, want {%q %v}", tt.input, got.String, got.Valid, tt.want, tt.wantValid)
		}
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]string{
		"":            StatusPending,
		"nan":         StatusPending,
		"concluida":   StatusCompleted,
		" CANCELADA ": StatusCancelled,
		"PENDENTE":    StatusPending,
		"DONE":        StatusPending,
	}
	for in, want := range tests {
		if got := NormalizeStatus(in); got != want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
