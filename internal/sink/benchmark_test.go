package sink

import (
	"fmt"
	"testing"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/table"
)

// BenchmarkToPgNumeric covers the amount shapes seen after correction and
// the ones that still slip through from raw exports.
func BenchmarkToPgNumeric(b *testing.B) {
	testCases := []string{
		"123",
		"-456.78",
		"R$ 1.234,56",
		"(123.45)",
		"1,234,567.89",
		"  999.99  ",
		"€1234.56",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ToPgNumeric(tc)
		}
	}
}

func BenchmarkToPgNumeric_Simple(b *testing.B) {
	for i := 0; i < b.N; i++ {
		ToPgNumeric("12345.67")
	}
}

func BenchmarkToPgDate(b *testing.B) {
	testCases := []string{
		"2024-01-15",
		"15/01/2024",
		"15-01-2024",
		"15.01.2024",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ToPgDate(tc)
		}
	}
}

func BenchmarkToPgText(b *testing.B) {
	for i := 0; i < b.N; i++ {
		ToPgText("Supermercado")
		ToPgText("")
		ToPgText("N/A")
	}
}

// BenchmarkBuildTransaction measures row conversion on a 1000-row table.
func BenchmarkBuildTransaction(b *testing.B) {
	rows := make([][]string, 1000)
	for i := range rows {
		rows[i] = []string{
			fmt.Sprintf("TX%05d", i), "2024-03-01", "150.25", "DEBITO",
			"Mercado", "compra", "0001-1", "", "PENDENTE",
		}
	}
	t := table.New(Columns, rows)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for r := 0; r < t.Len(); r++ {
			if _, err := BuildTransaction(t, r); err != nil {
				b.Fatal(err)
			}
		}
	}
}
