package rules

import (
	"fmt"

	"github.com/desertthunder/coaster/internal/models"
	"github.com/desertthunder/coaster/internal/shared"
)

// Verdict is the aggregate result of evaluating a rule chain against a track.
//
// On failure, Rule names the first rule that failed and Reason carries its
// explanation; on success, ArtistsToQueue lists the track's artists whose
// top tracks should be queued.
type Verdict struct {
	Pass           bool
	Rule           string
	Reason         string
	ArtistsToQueue []models.Artist
}

// Engine evaluates an ordered rule chain with AND semantics.
//
// Evaluation runs rules in exactly the configured order and short-circuits
// on the first failure. The default chain puts the cheap structural check
// before the index lookup, but order is a caller choice, never an engine
// assumption.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine with the default rule chain for the given
// scraping configuration: minimum-artists, then no-known-artists.
func NewEngine(cfg shared.ScrapingConfig) *Engine {
	return NewEngineWithRules(
		NewMinimumArtistsRule(cfg.MinArtists),
		NewNoKnownArtistsRule(cfg.SkipKnownArtists),
	)
}

// NewEngineWithRules creates an engine evaluating the given rules in order.
func NewEngineWithRules(rules ...Rule) *Engine {
	return &Engine{rules: rules}
}

// Add appends a rule to the end of the chain.
func (e *Engine) Add(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Remove deletes the first rule with the given name.
// Returns true if a rule was found and removed.
func (e *Engine) Remove(name string) bool {
	for i, rule := range e.rules {
		if rule.Name() == name {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Names returns the active rule names in evaluation order.
func (e *Engine) Names() []string {
	names := make([]string, len(e.rules))
	for i, rule := range e.rules {
		names[i] = rule.Name()
	}
	return names
}

// Rules returns the active rules in evaluation order.
func (e *Engine) Rules() []Rule {
	return e.rules
}

// Evaluate runs the rule chain against the context.
//
// The first failing rule decides the verdict. When every rule passes, the
// artists to queue are the track's artists absent from the known set; a
// track whose artists are all known yields a failing verdict even though
// each individual rule passed.
func (e *Engine) Evaluate(ctx *Context) Verdict {
	for _, rule := range e.rules {
		passed, reason := rule.Evaluate(ctx)
		if !passed {
			return Verdict{
				Pass:   false,
				Rule:   rule.Name(),
				Reason: reason,
			}
		}
	}

	unknown := ctx.UnknownArtists()
	if len(unknown) == 0 {
		return Verdict{
			Pass:   false,
			Reason: "all artists already known, none to queue",
		}
	}

	return Verdict{
		Pass:           true,
		Reason:         fmt.Sprintf("all %d rules passed", len(e.rules)),
		ArtistsToQueue: unknown,
	}
}
