package correction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/llm"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/schema"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/table"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/validation"
)

// SampleRows is how many rows of the table are shown to the model.
const SampleRows = 3

// Attempt is a correction that did not work, fed back to the planner.
type Attempt struct {
	Script  string `json:"script"`
	Message string `json:"message"`
}

// PlanRequest is everything a planner may look at.
type PlanRequest struct {
	Table    *table.Table
	Result   *validation.Result
	Previous *Attempt
}

// Plan is a freshly written script and what it cost.
type Plan struct {
	Script      *Script
	Text        string
	TokensSpent int
}

// Planner writes correction scripts.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (*Plan, error)
}

// SystemPrompt is sent with every model request.
const SystemPrompt = "You write table correction scripts as a single JSON object. Reply with the JSON only, without Markdown."

// LLMPlanner asks a language model for a script.
type LLMPlanner struct {
	client      llm.Client
	tpl         *schema.Template
	Temperature float64
	MaxTokens   int
}

// NewLLMPlanner returns a planner using client for template tpl.
func NewLLMPlanner(client llm.Client, tpl *schema.Template) *LLMPlanner {
	return &LLMPlanner{
		client:      client,
		tpl:         tpl,
		Temperature: llm.DefaultTemperature,
		MaxTokens:   llm.DefaultMaxTokens,
	}
}

// Plan builds the prompt, calls the model and parses the reply. When the
// reply is not a usable script the returned Plan still carries the raw text
// and the tokens spent, alongside the error.
func (p *LLMPlanner) Plan(ctx context.Context, req PlanRequest) (*Plan, error) {
	out, err := p.client.Complete(ctx, llm.Request{
		System:      SystemPrompt,
		Prompt:      BuildPrompt(req, p.tpl),
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate script: %w", err)
	}

	plan := &Plan{Text: stripFences(out.Content), TokensSpent: out.TotalTokens}
	script, err := ParseScript(out.Content)
	if err != nil {
		return plan, err
	}
	plan.Script = script
	return plan, nil
}

// BuildPrompt renders the model prompt for req.
func BuildPrompt(req PlanRequest, tpl *schema.Template) string {
	var b strings.Builder

	cols, _ := json.Marshal(req.Table.Columns())
	sample, _ := json.MarshalIndent(req.Table.Records(SampleRows), "", "  ")
	names, _ := json.Marshal(tpl.Names())

	b.WriteString("You are a senior data engineer. Write a correction script that makes the table below conform to the template.\n\n")

	b.WriteString("DATA CONTEXT:\n")
	fmt.Fprintf(&b, "- Current columns: %s\n", cols)
	fmt.Fprintf(&b, "- Sample (first %d rows):\n%s\n\n", SampleRows, sample)

	if req.Previous != nil {
		b.WriteString("THE PREVIOUS ATTEMPT FAILED WITH:\n")
		b.WriteString(req.Previous.Message)
		b.WriteString("\n\nSCRIPT THAT FAILED:\n")
		b.WriteString(req.Previous.Script)
		b.WriteString("\n\n")
	}

	b.WriteString("REQUIRED TASKS (from the detected errors):\n")
	b.WriteString(NumberInstructions(BuildInstructions(req.Result, tpl)))
	b.WriteString("\n\n")

	b.WriteString("GENERAL RULES:\n")
	fmt.Fprintf(&b, "1. Only remove columns outside the template %s at the end, with a single drop_unknown op, after every rename and merge.\n", names)
	b.WriteString("2. End the script with a dedupe_columns op.\n")
	b.WriteString("3. Ops run in order on the whole table. Reply with the JSON object only.\n\n")

	b.WriteString(scriptContract)
	return b.String()
}

const scriptContract = `SCRIPT FORMAT:
{"version": 1, "description": "<one line>", "ops": [ ... ]}
Each op is one of:
{"op": "rename", "from": "<column>", "to": "<column>"}
{"op": "drop", "column": "<column>"}
{"op": "coalesce", "target": "<column>", "sources": ["<column>", ...]}
{"op": "add_column", "column": "<column>", "value": "<text>"}
{"op": "fill_default", "column": "<column>", "value": "<text>"}
{"op": "cast", "column": "<column>", "to": "decimal" | "date", "format": "brasileiro" (decimal only, optional)}
{"op": "regex_replace", "column": "<column>", "pattern": "<RE2>", "replacement": "<text>"}
{"op": "map_values", "column": "<column>", "mapping": {"<from>": "<to>"}, "default": "<text>", "keep": ["<value>", ...]}
{"op": "drop_unknown", "keep": ["<column>", ...]}
{"op": "dedupe_columns"}
`

// RulePlanner derives a script from the error records alone. It spends no
// tokens and handles every defect the validator can describe except enum
// values with neither a mapping nor a default.
type RulePlanner struct {
	tpl *schema.Template
}

// NewRulePlanner returns a rule planner for tpl.
func NewRulePlanner(tpl *schema.Template) *RulePlanner {
	return &RulePlanner{tpl: tpl}
}

func (p *RulePlanner) Plan(_ context.Context, req PlanRequest) (*Plan, error) {
	script := RuleScript(req.Result, p.tpl)
	return &Plan{Script: script, Text: script.String()}, nil
}

// RuleScript builds the deterministic script for result.
func RuleScript(result *validation.Result, tpl *schema.Template) *Script {
	var structure, data []Op
	contested := make(map[string]bool)

	for _, rec := range result.Errors {
		c, ok := rec.(validation.DuplicateColumnConflict)
		if !ok {
			continue
		}
		for _, dest := range sortedKeys(c.Conflicts) {
			contested[dest] = true
			var sources []string
			for _, s := range c.Conflicts[dest] {
				if s != dest {
					sources = append(sources, s)
				}
			}
			structure = append(structure, Op{Op: OpCoalesce, Target: dest, Sources: sources})
		}
	}

	for _, rec := range result.Errors {
		switch e := rec.(type) {
		case validation.ColumnNameMismatch:
			for _, from := range sortedKeys(e.RenameMap) {
				if to := e.RenameMap[from]; !contested[to] {
					structure = append(structure, Op{Op: OpRename, From: from, To: to})
				}
			}
		case validation.ValueFormatError:
			op := Op{Op: OpCast, Column: e.Column, To: CastDecimal}
			if e.DetectedFormat != validation.FormatDecimal {
				op.Format = NotationBRL
			}
			data = append(data, op)
		case validation.DateFormatError:
			data = append(data, Op{Op: OpCast, Column: e.Column, To: CastDate})
		case validation.InvalidEnumValues:
			op := Op{Op: OpMapValues, Column: e.Column, Mapping: e.SuggestedMapping, Keep: e.PermittedValues, Default: e.Default}
			if len(op.Mapping) > 0 || op.Default != "" {
				data = append(data, op)
			}
		}
	}

	// Missing columns are created after renames, which may already supply them.
	for _, rec := range result.Errors {
		if m, ok := rec.(validation.MissingColumns); ok {
			for _, col := range m.Columns {
				structure = append(structure, Op{Op: OpAddColumn, Column: col})
			}
		}
	}

	ops := append(structure, data...)
	ops = append(ops,
		Op{Op: OpDropUnknown, Keep: tpl.Names()},
		Op{Op: OpDedupeColumns},
	)
	return &Script{
		Version:     ScriptVersion,
		Description: fmt.Sprintf("rule-based fix for %s", describeKinds(result)),
		Ops:         ops,
	}
}

func describeKinds(result *validation.Result) string {
	kinds := result.Kinds()
	if len(kinds) == 0 {
		return "a valid file"
	}
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}
