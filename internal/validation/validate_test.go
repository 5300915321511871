package validation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/schema"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/table"
)

func mustTemplate(t *testing.T, cols []schema.Column) *schema.Template {
	t.Helper()
	tpl, err := schema.New(cols)
	require.NoError(t, err)
	return tpl
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		line string
		want rune
	}{
		{"a;b;c", ';'},
		{"a,b;c,d,e", ','},
		{"a\tb\tc", '\t'},
		{"a|b|c;d", '|'},
		{"single", ','},
		{"a;b,c", ','},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDelimiter(tt.line))
		})
	}
}

func TestDetectEncoding(t *testing.T) {
	latin, err := charmap.ISO8859_1.NewEncoder().String("descrição;valor\nsaída;10\n")
	require.NoError(t, err)
	cp1252, err := charmap.Windows1252.NewEncoder().String("descrição “aspas” €;valor\n")
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "utf-8"},
		{"ascii", []byte("a,b\n1,2\n"), "ascii"},
		{"utf-8", []byte("descrição,valor\n"), "utf-8"},
		{"utf-8 bom", append([]byte{0xEF, 0xBB, 0xBF}, "a,b"...), "utf-8-sig"},
		{"utf-16le bom", []byte{0xFF, 0xFE, 'a', 0}, "utf-16le"},
		{"utf-16be bom", []byte{0xFE, 0xFF, 0, 'a'}, "utf-16be"},
		{"utf-16le without bom", []byte{'a', 0, ',', 0, 'b', 0, '\n', 0}, "utf-16le"},
		{"latin-1", []byte(latin), "iso-8859-1"},
		{"windows-1252", []byte(cp1252), "windows-1252"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectEncoding(tt.data))
		})
	}
}

func TestDetectEncodingToleratesCutRune(t *testing.T) {
	// "ç" is two bytes; place it across the sample boundary.
	data := []byte(strings.Repeat("a", EncodingSampleSize-1) + "ç" + "tail")
	assert.Equal(t, "utf-8", DetectEncoding(data))
}

func TestLoadTable(t *testing.T) {
	latin, err := charmap.ISO8859_1.NewEncoder().String("descrição;valor\nsaída;10,50\n")
	require.NoError(t, err)

	loaded, err := LoadTable([]byte(latin))
	require.NoError(t, err)
	assert.Equal(t, "iso-8859-1", loaded.Encoding)
	assert.Equal(t, ';', loaded.Delimiter)
	assert.Equal(t, []string{"descrição", "valor"}, loaded.Table.Columns())
	assert.Equal(t, "saída", loaded.Table.Cell(0, "descrição"))

	_, err = LoadTable([]byte("\n\n"))
	assert.ErrorIs(t, err, table.ErrEmptyFile)
}

func TestSuggestRenames(t *testing.T) {
	tpl := schema.Default()

	got := SuggestRenames([]string{"id_transacao", "Data", "amount", "extra", "origem", "other"}, tpl)
	assert.False(t, got.OK)
	assert.Equal(t, map[string]string{
		"Data":   "data_transacao",
		"amount": "valor",
		"origem": "conta_origem",
	}, got.RenameMap)
	assert.Equal(t, []string{"extra", "other"}, got.Unknown)

	clean := SuggestRenames(tpl.Names(), tpl)
	assert.True(t, clean.OK)
	assert.Empty(t, clean.RenameMap)
}

func TestCheckRequiredColumns(t *testing.T) {
	tpl := schema.Default()

	got := CheckRequiredColumns([]string{"Data", "valor", "tipo"}, tpl)
	assert.False(t, got.OK)
	assert.Equal(t, []string{"id_transacao", "categoria", "conta_origem"}, got.Missing,
		"aliases satisfy required columns and missing names keep template order")
}

func TestDetectDuplicateTargets(t *testing.T) {
	tpl := mustTemplate(t, []schema.Column{
		{Name: "data_transacao", Required: true, Aliases: []string{"data", "Data"}},
		{Name: "valor", Required: true},
	})
	columns := []string{"data", "Data", "valor"}

	renames := SuggestRenames(columns, tpl)
	conflicts := DetectDuplicateTargets(renames.RenameMap, columns)
	assert.Equal(t, map[string][]string{"data_transacao": {"data", "Data"}}, conflicts)

	withCanonical := []string{"Data", "data_transacao", "valor"}
	renames = SuggestRenames(withCanonical, tpl)
	conflicts = DetectDuplicateTargets(renames.RenameMap, withCanonical)
	assert.Equal(t, map[string][]string{"data_transacao": {"Data", "data_transacao"}}, conflicts,
		"an existing canonical column is a contender")

	res := NewValidator(tpl).Validate(table.New(columns, [][]string{{"2024-01-01", "", "1.00"}}))
	require.True(t, res.Has(KindDuplicateColumnConflict))
}

func TestValidateDateFormat(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		ok     bool
		format string
	}{
		{"iso", []string{"2024-01-15", "2024-02-01"}, true, ISODate},
		{"day first slash", []string{"15/01/2024", "01/02/2024"}, false, "DD/MM/YYYY"},
		{"day first dash", []string{"15-01-2024", "01-02-2024"}, false, "DD-MM-YYYY"},
		{"nulls ignored", []string{"2024-01-15", "", "nan", "None"}, true, ISODate},
		{"majority wins", []string{"2024-01-15", "2024-01-16", "15/01/2024"}, true, ISODate},
		{"no format", []string{"yesterday", "today"}, false, ""},
		{"all null", []string{"", "null"}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateDateFormat(tt.values)
			assert.Equal(t, tt.ok, got.OK)
			assert.Equal(t, tt.format, got.DetectedFormat)
		})
	}

	assert.Equal(t, []int{2}, ValidateDateFormat([]string{"2024-01-15", "2024-01-16", "15/01/2024"}).InvalidRows)
}

func TestValidateValueFormat(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		ok     bool
		format string
	}{
		{"decimal", []string{"10.50", "-3", "1234.56"}, true, FormatDecimal},
		{"currency", []string{"R$ 1.234,56", "10.00"}, false, FormatBRLCurrency},
		{"comma decimal", []string{"1234,56", "10"}, false, FormatBRLDecimalSep},
		{"garbage", []string{"10.00", "abc"}, false, FormatDecimal},
		{"nulls ignored", []string{"10.00", ""}, true, FormatDecimal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateValueFormat(tt.values)
			assert.Equal(t, tt.ok, got.OK)
			assert.Equal(t, tt.format, got.DetectedFormat)
		})
	}
}

func TestParseAmount(t *testing.T) {
	for in, want := range map[string]float64{
		"1234.56":     1234.56,
		"R$ 1.234,56": 1234.56,
		"10,5":        10.5,
		" -7 ":        -7,
	} {
		got, ok := ParseAmount(in)
		require.True(t, ok, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}
	_, ok := ParseAmount("ten")
	assert.False(t, ok)

	// A bare "1.500" is read as a plain decimal here; columns known to be
	// Brazilian go through ParseBRLAmount instead.
	got, ok := ParseAmount("1.500")
	require.True(t, ok)
	assert.InDelta(t, 1.5, got, 1e-9)
}

func TestParseBRLAmount(t *testing.T) {
	for in, want := range map[string]float64{
		"R$ 1.234,56": 1234.56,
		"1.500":       1500,
		"12,5":        12.5,
		" 7 ":         7,
	} {
		got, ok := ParseBRLAmount(in)
		require.True(t, ok, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}
	_, ok := ParseBRLAmount("abc")
	assert.False(t, ok)
}

func TestValidateEnumTiers(t *testing.T) {
	rule := &schema.EnumRule{
		PermittedValues: []string{"CREDITO", "DEBITO"},
		Mapping:         map[string]string{"credit": "CREDITO"},
	}

	got := ValidateEnum([]string{"CREDITO", "Credit", "debito", "PIX", "PIX", ""}, rule)
	assert.False(t, got.OK)
	assert.Equal(t, map[string]string{
		"Credit": "CREDITO",
		"debito": "DEBITO",
	}, got.SuggestedMapping)
	assert.Equal(t, []string{"PIX"}, got.InvalidValues)

	clean := ValidateEnum([]string{"CREDITO", "DEBITO"}, rule)
	assert.True(t, clean.OK)
}

func TestValidateCompleteness(t *testing.T) {
	tpl := mustTemplate(t, []schema.Column{
		{Name: "id_transacao", Required: true},
		{Name: "categoria", Required: true},
		{Name: "data_transacao", Required: true, Aliases: []string{"Data"}},
		{Name: "valor", Required: true},
	})
	tbl := table.New([]string{"Data", "valor"}, [][]string{
		{"15/01/2024", "10.00"},
		{"16/01/2024", "20.00"},
	})

	res := NewValidator(tpl).Validate(tbl)

	assert.False(t, res.Valid)
	assert.Equal(t, 3, res.ErrorCount)
	assert.Equal(t, StageInvalid, res.Stage)
	assert.Equal(t, []ErrorKind{KindMissingColumns, KindColumnNameMismatch, KindDateFormat}, res.Kinds())
	assert.Equal(t, MissingColumns{Columns: []string{"id_transacao", "categoria"}}, res.Errors[0])
	assert.Equal(t, DateFormatError{Column: "data_transacao", DetectedFormat: "DD/MM/YYYY"}, res.Errors[2])
}

func TestValidateEndToEnd(t *testing.T) {
	tpl := mustTemplate(t, []schema.Column{
		{Name: "id_transacao", Required: true},
		{Name: "data_transacao", Required: true, Aliases: []string{"Data"}},
		{Name: "valor", Required: true, Aliases: []string{"Valor"}},
		{Name: "tipo", Required: true},
		{Name: "categoria", Required: true},
		{Name: "conta_origem", Required: true, Aliases: []string{"origem"}},
	})
	tbl := table.New(
		[]string{"id", "Data", "Valor", "tipo", "categoria", "origem"},
		[][]string{{"1", "2024-01-15", "10.50", "CREDITO", "food", "acc-1"}},
	)

	res := NewValidator(tpl).Validate(tbl)

	assert.False(t, res.Valid)
	assert.Equal(t, 2, res.ErrorCount)
	assert.Equal(t, []ErrorRecord{
		MissingColumns{Columns: []string{"id_transacao"}},
		ColumnNameMismatch{RenameMap: map[string]string{
			"Data":   "data_transacao",
			"Valor":  "valor",
			"origem": "conta_origem",
		}},
	}, res.Errors)
}

func TestValidateEnumRecord(t *testing.T) {
	tpl := schema.Default()
	tbl := table.New(tpl.Names(), [][]string{
		{"1", "2024-01-15", "10.00", "credit", "food", "", "acc", "", "PENDENTE"},
		{"2", "2024-01-16", "12.00", "PIX", "food", "", "acc", "", ""},
	})

	res := NewValidator(tpl).Validate(tbl)

	require.Equal(t, 1, res.ErrorCount)
	rec, ok := res.Errors[0].(InvalidEnumValues)
	require.True(t, ok)
	assert.Equal(t, "tipo", rec.Column)
	assert.Equal(t, []string{"PIX"}, rec.InvalidValues)
	assert.Equal(t, map[string]string{"credit": "CREDITO"}, rec.SuggestedMapping)
	assert.Equal(t, []string{"CREDITO", "DEBITO"}, rec.PermittedValues)
}

func TestValidateValidFile(t *testing.T) {
	tpl := schema.Default()
	data := "id_transacao,data_transacao,valor,tipo,categoria,conta_origem\n" +
		"1,2024-01-15,10.50,CREDITO,food,acc-1\n"

	out := NewValidator(tpl).ValidateBytes([]byte(data))

	require.NotNil(t, out.Table)
	assert.True(t, out.Result.Valid)
	assert.Equal(t, 0, out.Result.ErrorCount)
	assert.Equal(t, StageValid, out.Result.Stage)
	assert.Equal(t, NoDivergences, Report(out.Result))
}

func TestValidateBytesReadError(t *testing.T) {
	out := NewValidator(schema.Default()).ValidateBytes([]byte("   \n\n"))

	assert.Nil(t, out.Table)
	require.Equal(t, 1, out.Result.ErrorCount)
	assert.Equal(t, KindReadError, out.Result.Errors[0].Kind())
}

func TestErrorRecordJSON(t *testing.T) {
	b, err := json.Marshal(DateFormatError{Column: "data_transacao", DetectedFormat: "DD/MM/YYYY"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"date_format","column":"data_transacao","detected_format":"DD/MM/YYYY"}`, string(b))

	res := newResult([]ErrorRecord{MissingColumns{Columns: []string{"a"}}})
	b, err = json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"valid": false,
		"error_count": 1,
		"stage": "INVALID",
		"errors": [{"type": "missing_columns", "columns": ["a"]}]
	}`, string(b))
}

func TestReport(t *testing.T) {
	res := newResult([]ErrorRecord{
		MissingColumns{Columns: []string{"id_transacao", "categoria"}},
		ColumnNameMismatch{RenameMap: map[string]string{"Data": "data_transacao"}},
		ValueFormatError{Column: "valor", DetectedFormat: FormatBRLCurrency},
	})

	got := Report(res)

	assert.Contains(t, got, "MISSING REQUIRED COLUMNS (2 columns):")
	assert.Contains(t, got, "COLUMNS WITH DIFFERENT NAMES (1 column):")
	assert.Contains(t, got, "  - 'Data' -> 'data_transacao'")
	assert.Contains(t, got, "Detected: brasileiro (R$)")
	assert.True(t, strings.HasSuffix(got, "Total problems: 3"))
}

func BenchmarkValidate(b *testing.B) {
	tpl := schema.Default()
	rows := make([][]string, 5000)
	for i := range rows {
		rows[i] = []string{"1", "15/01/2024", "R$ 1.234,56", "credit", "food", "", "acc", "", "pending"}
	}
	tbl := table.New([]string{
		"id_transacao", "Data", "Valor", "tipo", "categoria", "descricao", "origem", "conta_destino", "status",
	}, rows)
	v := NewValidator(tpl)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v.Validate(tbl)
	}
}
