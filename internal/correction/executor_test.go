package correction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/table"
)

func TestExecutorOps(t *testing.T) {
	tests := []struct {
		name     string
		in       *table.Table
		op       Op
		wantCols []string
		wantRows [][]string
	}{
		{
			name:     "rename",
			in:       table.New([]string{"Data", "x"}, [][]string{{"1", "2"}}),
			op:       Op{Op: OpRename, From: "Data", To: "data_transacao"},
			wantCols: []string{"data_transacao", "x"},
			wantRows: [][]string{{"1", "2"}},
		},
		{
			name:     "rename replaces existing",
			in:       table.New([]string{"a", "b"}, [][]string{{"1", "2"}}),
			op:       Op{Op: OpRename, From: "a", To: "b"},
			wantCols: []string{"b"},
			wantRows: [][]string{{"1"}},
		},
		{
			name:     "rename missing is skipped",
			in:       table.New([]string{"a"}, [][]string{{"1"}}),
			op:       Op{Op: OpRename, From: "zz", To: "b"},
			wantCols: []string{"a"},
			wantRows: [][]string{{"1"}},
		},
		{
			name:     "drop",
			in:       table.New([]string{"a", "b"}, [][]string{{"1", "2"}}),
			op:       Op{Op: OpDrop, Column: "a"},
			wantCols: []string{"b"},
			wantRows: [][]string{{"2"}},
		},
		{
			name:     "coalesce keeps target priority",
			in:       table.New([]string{"data_transacao", "data", "Data"}, [][]string{{"2024-01-01", "x", "y"}, {"", "", "2024-02-02"}}),
			op:       Op{Op: OpCoalesce, Target: "data_transacao", Sources: []string{"data", "Data"}},
			wantCols: []string{"data_transacao"},
			wantRows: [][]string{{"2024-01-01"}, {"2024-02-02"}},
		},
		{
			name:     "coalesce without target promotes first source",
			in:       table.New([]string{"data", "Data"}, [][]string{{"", "b"}, {"a", "c"}}),
			op:       Op{Op: OpCoalesce, Target: "data_transacao", Sources: []string{"data", "Data"}},
			wantCols: []string{"data_transacao"},
			wantRows: [][]string{{"b"}, {"a"}},
		},
		{
			name:     "add column",
			in:       table.New([]string{"a"}, [][]string{{"1"}, {"2"}}),
			op:       Op{Op: OpAddColumn, Column: "status", Value: "PENDENTE"},
			wantCols: []string{"a", "status"},
			wantRows: [][]string{{"1", "PENDENTE"}, {"2", "PENDENTE"}},
		},
		{
			name:     "fill default",
			in:       table.New([]string{"status"}, [][]string{{""}, {"nan"}, {"CONCLUIDA"}}),
			op:       Op{Op: OpFillDefault, Column: "status", Value: "PENDENTE"},
			wantCols: []string{"status"},
			wantRows: [][]string{{"PENDENTE"}, {"PENDENTE"}, {"CONCLUIDA"}},
		},
		{
			name:     "cast decimal",
			in:       table.New([]string{"valor"}, [][]string{{"R$ 1.234,56"}, {"10,5"}, {"42.10"}, {"abc"}, {""}}),
			op:       Op{Op: OpCast, Column: "valor", To: CastDecimal},
			wantCols: []string{"valor"},
			wantRows: [][]string{{"1234.56"}, {"10.5"}, {"42.1"}, {""}, {""}},
		},
		{
			name:     "cast decimal brasileiro",
			in:       table.New([]string{"valor"}, [][]string{{"R$ 1.234,56"}, {"1.500"}, {"nan"}}),
			op:       Op{Op: OpCast, Column: "valor", To: CastDecimal, Format: NotationBRL},
			wantCols: []string{"valor"},
			wantRows: [][]string{{"1234.56"}, {"1500"}, {""}},
		},
		{
			name:     "cast date",
			in:       table.New([]string{"d"}, [][]string{{"15/01/2024"}, {"16-01-2024"}, {"2024-01-17"}, {"03/02/2024"}, {"soon"}}),
			op:       Op{Op: OpCast, Column: "d", To: CastDate},
			wantCols: []string{"d"},
			wantRows: [][]string{{"2024-01-15"}, {"2024-01-16"}, {"2024-01-17"}, {"2024-02-03"}, {""}},
		},
		{
			name:     "regex replace",
			in:       table.New([]string{"conta"}, [][]string{{"acc 001"}, {"acc-002"}}),
			op:       Op{Op: OpRegexReplace, Column: "conta", Pattern: `acc[ -](\d+)`, Replacement: "ACC$1"},
			wantCols: []string{"conta"},
			wantRows: [][]string{{"ACC001"}, {"ACC002"}},
		},
		{
			name: "map values with default",
			in:   table.New([]string{"tipo"}, [][]string{{"credit"}, {"DEBITO"}, {"PIX"}, {""}}),
			op: Op{Op: OpMapValues, Column: "tipo", Mapping: map[string]string{"credit": "CREDITO"},
				Default: "DEBITO", Keep: []string{"CREDITO", "DEBITO"}},
			wantCols: []string{"tipo"},
			wantRows: [][]string{{"CREDITO"}, {"DEBITO"}, {"DEBITO"}, {""}},
		},
		{
			name:     "drop unknown",
			in:       table.New([]string{"a", "junk", "b"}, [][]string{{"1", "x", "2"}}),
			op:       Op{Op: OpDropUnknown, Keep: []string{"a", "b"}},
			wantCols: []string{"a", "b"},
			wantRows: [][]string{{"1", "2"}},
		},
		{
			name:     "dedupe columns",
			in:       table.New([]string{"a", "a", "b"}, [][]string{{"1", "2", "3"}}),
			op:       Op{Op: OpDedupeColumns},
			wantCols: []string{"a", "b"},
			wantRows: [][]string{{"1", "3"}},
		},
	}

	exec := NewExecutor(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := exec.Apply(tt.in, &Script{Ops: []Op{tt.op}})
			require.NoError(t, err)
			assert.Equal(t, tt.wantCols, out.Columns())
			for i, want := range tt.wantRows {
				assert.Equal(t, want, out.Row(i), "row %d", i)
			}
		})
	}
}

func TestExecutorLeavesInputUntouched(t *testing.T) {
	in := table.New([]string{"Data"}, [][]string{{"15/01/2024"}})

	out, err := NewExecutor(0).Apply(in, &Script{Ops: []Op{
		{Op: OpRename, From: "Data", To: "data_transacao"},
		{Op: OpCast, Column: "data_transacao", To: CastDate},
	}})
	require.NoError(t, err)

	assert.Equal(t, []string{"Data"}, in.Columns())
	assert.Equal(t, "15/01/2024", in.Cell(0, "Data"))
	assert.Equal(t, "2024-01-15", out.Cell(0, "data_transacao"))
}

func TestExecutorFailures(t *testing.T) {
	tbl := table.New([]string{"a"}, [][]string{{"1"}, {"2"}, {"3"}})

	t.Run("missing column", func(t *testing.T) {
		_, err := NewExecutor(0).Apply(tbl, &Script{Ops: []Op{
			{Op: OpDedupeColumns},
			{Op: OpCast, Column: "valor", To: CastDecimal},
		}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrExecution))

		var se *ScriptError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, 1, se.Op)
		assert.Equal(t, OpCast, se.Kind)
	})

	t.Run("too many rows", func(t *testing.T) {
		_, err := NewExecutor(2).Apply(tbl, &Script{})
		assert.True(t, errors.Is(err, ErrExecution))
	})

	t.Run("too many ops", func(t *testing.T) {
		ops := make([]Op, DefaultMaxOps+1)
		for i := range ops {
			ops[i] = Op{Op: OpDedupeColumns}
		}
		_, err := NewExecutor(0).Apply(tbl, &Script{Ops: ops})
		assert.True(t, errors.Is(err, ErrExecution))
	})

	t.Run("nil script", func(t *testing.T) {
		_, err := NewExecutor(0).Apply(tbl, nil)
		assert.True(t, errors.Is(err, ErrExecution))
	})
}
