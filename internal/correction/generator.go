package correction

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/fingerprint"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/scriptcache"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/table"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/validation"
)

// Request asks for a script that fixes Result on Table.
type Request struct {
	Table       *table.Table
	Result      *validation.Result
	IgnoreCache bool
	Previous    *Attempt
}

// Generation is a script ready to apply, with its provenance and cost.
type Generation struct {
	Script        *Script `json:"-"`
	ScriptText    string  `json:"script"`
	Description   string  `json:"description"`
	UsedCache     bool    `json:"used_cache"`
	Fingerprint   string  `json:"fingerprint"`
	CacheScriptID string  `json:"cache_script_id,omitempty"`
	UseCount      int     `json:"use_count"`
	TokensSpent   int     `json:"tokens_spent"`
	TokensSaved   int     `json:"tokens_saved"`
}

// CachingGenerator looks scripts up by structural fingerprint and asks the
// planner only on a miss.
type CachingGenerator struct {
	store   scriptcache.Store
	planner Planner
	group   singleflight.Group
}

// NewCachingGenerator returns a generator. store may be nil, which disables
// caching.
func NewCachingGenerator(store scriptcache.Store, planner Planner) *CachingGenerator {
	return &CachingGenerator{store: store, planner: planner}
}

// Generate returns a script for req. A cache hit costs nothing and reports
// the tokens it saved. On a miss the planner runs; concurrent misses for
// the same fingerprint share one planner call.
//
// When the planner's reply is not a usable script, the error is returned
// together with a Generation carrying the raw text and tokens spent.
func (g *CachingGenerator) Generate(ctx context.Context, req Request) (*Generation, error) {
	fp := fingerprint.Compute(req.Table.Columns(), req.Result.Errors)
	log := slog.With("fingerprint", fp[:12])

	if !req.IgnoreCache {
		if gen := g.lookup(ctx, fp, log); gen != nil {
			return gen, nil
		}
	}

	plan, err := g.plan(ctx, fp, req)
	if plan == nil {
		return nil, err
	}
	gen := &Generation{
		Script:      plan.Script,
		ScriptText:  plan.Text,
		Fingerprint: fp,
		TokensSpent: plan.TokensSpent,
	}
	if plan.Script != nil {
		gen.Description = plan.Script.Description
	}
	if err != nil {
		return gen, err
	}

	log.Info("correction script generated", "tokens", plan.TokensSpent, "ops", len(plan.Script.Ops))
	return gen, nil
}

func (g *CachingGenerator) lookup(ctx context.Context, fp string, log *slog.Logger) *Generation {
	if g.store == nil {
		return nil
	}
	cached, err := g.store.Lookup(ctx, fp)
	if err != nil {
		log.Warn("script cache lookup failed", "error", err)
		return nil
	}
	if cached == nil {
		return nil
	}

	script, err := ParseScript(cached.Text)
	if err != nil {
		log.Warn("cached script no longer parses, regenerating", "script_id", cached.ID, "error", err)
		return nil
	}

	log.Info("correction script served from cache", "script_id", cached.ID, "use_count", cached.UseCount)
	return &Generation{
		Script:        script,
		ScriptText:    cached.Text,
		Description:   cached.Description,
		UsedCache:     true,
		Fingerprint:   fp,
		CacheScriptID: cached.ID,
		UseCount:      cached.UseCount,
		TokensSaved:   cached.TokenCost,
	}
}

func (g *CachingGenerator) plan(ctx context.Context, fp string, req Request) (*Plan, error) {
	preq := PlanRequest{Table: req.Table, Result: req.Result, Previous: req.Previous}

	// A retry carries its own failure context, so it never shares a call.
	if req.Previous != nil || req.IgnoreCache {
		return g.planner.Plan(ctx, preq)
	}

	v, err, _ := g.group.Do(fp, func() (any, error) {
		plan, err := g.planner.Plan(ctx, preq)
		return planResult{plan, err}, nil
	})
	if err != nil {
		return nil, err
	}
	res := v.(planResult)
	return res.plan, res.err
}

type planResult struct {
	plan *Plan
	err  error
}

// Remember stores an AI-written script after it passed re-validation.
// Cached scripts are already stored; failures are logged and dropped.
func (g *CachingGenerator) Remember(ctx context.Context, gen *Generation) {
	if g.store == nil || gen == nil || gen.UsedCache || gen.Script == nil {
		return
	}
	text := gen.Script.String()
	id, err := g.store.Save(ctx, gen.Fingerprint, text, gen.Description, gen.TokensSpent)
	if err != nil {
		slog.Warn("script cache save failed", "fingerprint", gen.Fingerprint, "error", err)
		return
	}
	gen.CacheScriptID = id
	slog.Info("correction script cached", "script_id", id, "tokens", gen.TokensSpent)
}

// IsScriptError reports whether err means the script itself was unusable,
// as opposed to the model or the cache failing.
func IsScriptError(err error) bool {
	return errors.Is(err, ErrInvalidScript) || errors.Is(err, ErrUnsafeScript) || errors.Is(err, ErrExecution)
}
