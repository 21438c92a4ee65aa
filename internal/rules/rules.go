// package rules decides when a newly liked track should trigger top-track queueing
package rules

import (
	"fmt"
	"strings"
)

// Rule is a single predicate over an evaluation [Context].
//
// Evaluate returns whether the rule passed along with a human-readable
// reason for reporting; rules must not mutate the context.
type Rule interface {
	// Name returns the stable rule name used in verdicts.
	Name() string

	// Describe returns a one-line description for listings.
	Describe() string

	// Evaluate applies the rule to the context.
	Evaluate(ctx *Context) (bool, string)
}

// MinimumArtistsRule passes when the track is credited to at least the
// configured number of artists (the collaboration check).
type MinimumArtistsRule struct {
	threshold int
}

// NewMinimumArtistsRule creates the collaboration rule with the given threshold.
func NewMinimumArtistsRule(threshold int) *MinimumArtistsRule {
	return &MinimumArtistsRule{threshold: threshold}
}

func (r *MinimumArtistsRule) Name() string {
	return "MinimumArtistsRule"
}

func (r *MinimumArtistsRule) Describe() string {
	return fmt.Sprintf("track must have >= %d artists", r.threshold)
}

func (r *MinimumArtistsRule) Evaluate(ctx *Context) (bool, string) {
	count := len(ctx.Track.Artists)
	if count >= r.threshold {
		return true, fmt.Sprintf("track has %d artists (>= %d)", count, r.threshold)
	}
	return false, fmt.Sprintf("track has only %d artist(s), need >= %d", count, r.threshold)
}

// NoKnownArtistsRule passes when none of the track's artists are in the
// known-artist set. With skipKnown false the check is disabled and the rule
// always passes.
type NoKnownArtistsRule struct {
	skipKnown bool
}

// NewNoKnownArtistsRule creates the known-artist rule.
func NewNoKnownArtistsRule(skipKnown bool) *NoKnownArtistsRule {
	return &NoKnownArtistsRule{skipKnown: skipKnown}
}

func (r *NoKnownArtistsRule) Name() string {
	return "NoKnownArtistsRule"
}

func (r *NoKnownArtistsRule) Describe() string {
	if !r.skipKnown {
		return "known artist check disabled"
	}
	return "no artist on the track may already be known"
}

func (r *NoKnownArtistsRule) Evaluate(ctx *Context) (bool, string) {
	if !r.skipKnown {
		return true, "known artist check disabled"
	}

	known := ctx.KnownArtists()
	if len(known) > 0 {
		names := make([]string, len(known))
		for i, a := range known {
			names[i] = a.Name
		}
		return false, fmt.Sprintf("already known artist(s): %s", strings.Join(names, ", "))
	}
	return true, "no known artists on this track"
}

// PredicateRule wraps an injected predicate function, allowing callers to
// extend the engine without modifying the built-in rules.
type PredicateRule struct {
	predicate   func(ctx *Context) bool
	name        string
	description string
}

// NewPredicateRule creates a rule from a predicate function.
func NewPredicateRule(predicate func(ctx *Context) bool, name, description string) *PredicateRule {
	return &PredicateRule{predicate: predicate, name: name, description: description}
}

func (r *PredicateRule) Name() string {
	return r.name
}

func (r *PredicateRule) Describe() string {
	return r.description
}

func (r *PredicateRule) Evaluate(ctx *Context) (bool, string) {
	if r.predicate == nil {
		return false, fmt.Sprintf("%s: no predicate configured", r.name)
	}

	passed := r.predicate(ctx)
	reason := r.description
	if reason == "" {
		reason = fmt.Sprintf("%s: %v", r.name, passed)
	}
	return passed, reason
}

// NewTimeOfDayRule creates a rule that only allows queueing between
// startHour (inclusive) and endHour (exclusive), handling overnight ranges
// like 22-6.
func NewTimeOfDayRule(startHour, endHour int) *PredicateRule {
	predicate := func(ctx *Context) bool {
		hour := ctx.Now.Hour()
		if startHour <= endHour {
			return startHour <= hour && hour < endHour
		}
		return hour >= startHour || hour < endHour
	}

	return NewPredicateRule(
		predicate,
		fmt.Sprintf("TimeOfDay(%02d:00-%02d:00)", startHour, endHour),
		fmt.Sprintf("only queue between %d:00 and %d:00", startHour, endHour),
	)
}
