package correction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScript(t *testing.T) {
	text := "```json\n" + `{
		"version": 1,
		"description": "rename and cast",
		"ops": [
			{"op": "rename", "from": "Data", "to": "data_transacao"},
			{"op": "cast", "column": "data_transacao", "to": "date"},
			{"op": "dedupe_columns"}
		]
	}` + "\n```"

	s, err := ParseScript(text)
	require.NoError(t, err)
	assert.Equal(t, ScriptVersion, s.Version)
	assert.Equal(t, "rename and cast", s.Description)
	require.Len(t, s.Ops, 3)
	assert.Equal(t, Op{Op: OpRename, From: "Data", To: "data_transacao"}, s.Ops[0])
}

func TestParseScriptDefaultsVersion(t *testing.T) {
	s, err := ParseScript(`{"ops": [{"op": "dedupe_columns"}]}`)
	require.NoError(t, err)
	assert.Equal(t, ScriptVersion, s.Version)
}

func TestParseScriptRejects(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"empty", "  ", ErrInvalidScript},
		{"not json", "df = df.rename(columns={})", ErrInvalidScript},
		{"unknown field", `{"ops": [{"op": "drop", "column": "a", "inplace": true}]}`, ErrInvalidScript},
		{"unknown op", `{"ops": [{"op": "exec", "value": "rm -rf /"}]}`, ErrInvalidScript},
		{"rename without target", `{"ops": [{"op": "rename", "from": "a"}]}`, ErrInvalidScript},
		{"cast to int", `{"ops": [{"op": "cast", "column": "a", "to": "int"}]}`, ErrInvalidScript},
		{"unknown cast format", `{"ops": [{"op": "cast", "column": "a", "to": "decimal", "format": "us"}]}`, ErrInvalidScript},
		{"date with decimal format", `{"ops": [{"op": "cast", "column": "a", "to": "date", "format": "brasileiro"}]}`, ErrInvalidScript},
		{"bad regex", `{"ops": [{"op": "regex_replace", "column": "a", "pattern": "(unclosed"}]}`, ErrInvalidScript},
		{"empty map", `{"ops": [{"op": "map_values", "column": "a"}]}`, ErrInvalidScript},
		{"future version", `{"version": 9, "ops": []}`, ErrInvalidScript},
		{"trailing data", `{"ops": []} {"ops": []}`, ErrInvalidScript},
		{"sql literal", `{"ops": [{"op": "fill_default", "column": "a", "value": "'; DROP TABLE transacoes_financeiras--"}]}`, ErrUnsafeScript},
		{"markup literal", `{"ops": [{"op": "add_column", "column": "a", "value": "<script>alert(1)</script>"}]}`, ErrUnsafeScript},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript(tt.text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestParseScriptErrorNamesOp(t *testing.T) {
	_, err := ParseScript(`{"ops": [{"op": "dedupe_columns"}, {"op": "drop"}]}`)

	var se *ScriptError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Op)
	assert.Equal(t, OpDrop, se.Kind)
	assert.Contains(t, err.Error(), "op 2 (drop)")
}

func TestScriptStringRoundTrips(t *testing.T) {
	s := &Script{Version: 1, Description: "d", Ops: []Op{
		{Op: OpMapValues, Column: "tipo", Mapping: map[string]string{"credit": "CREDITO"}, Keep: []string{"CREDITO"}},
	}}

	back, err := ParseScript(s.String())
	require.NoError(t, err)
	assert.Equal(t, s, back)
}
