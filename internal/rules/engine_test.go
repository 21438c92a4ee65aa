package rules

import (
	"testing"
	"time"

	"github.com/desertthunder/coaster/internal/shared"
)

func defaultConfig() shared.ScrapingConfig {
	return shared.ScrapingConfig{
		MinArtists:       2,
		TopTracksLimit:   1,
		SkipKnownArtists: true,
	}
}

func TestEngineEvaluate(t *testing.T) {
	known := stubSet{"a1": true}

	t.Run("solo track fails the collaboration check", func(t *testing.T) {
		engine := NewEngine(defaultConfig())
		ctx := NewContext(collab(artist("a9", "Solo")), known, time.Time{})

		verdict := engine.Evaluate(ctx)
		if verdict.Pass {
			t.Fatal("Evaluate() passed, want failure")
		}
		if verdict.Rule != "MinimumArtistsRule" {
			t.Errorf("verdict.Rule = %v, want MinimumArtistsRule", verdict.Rule)
		}
		if len(verdict.ArtistsToQueue) != 0 {
			t.Errorf("ArtistsToQueue = %v, want empty on failure", verdict.ArtistsToQueue)
		}
	})

	t.Run("collaboration with a known artist fails the index check", func(t *testing.T) {
		engine := NewEngine(defaultConfig())
		track := collab(artist("a1", "Familiar"), artist("a2", "Fresh"))

		verdict := engine.Evaluate(NewContext(track, known, time.Time{}))
		if verdict.Pass {
			t.Fatal("Evaluate() passed, want failure")
		}
		if verdict.Rule != "NoKnownArtistsRule" {
			t.Errorf("verdict.Rule = %v, want NoKnownArtistsRule", verdict.Rule)
		}
	})

	t.Run("all-unknown collaboration queues every artist", func(t *testing.T) {
		engine := NewEngine(defaultConfig())
		track := collab(artist("a2", "Fresh"), artist("a3", "Newer"))

		verdict := engine.Evaluate(NewContext(track, known, time.Time{}))
		if !verdict.Pass {
			t.Fatalf("Evaluate() failed: %s", verdict.Reason)
		}
		if len(verdict.ArtistsToQueue) != 2 {
			t.Fatalf("ArtistsToQueue = %d artists, want 2", len(verdict.ArtistsToQueue))
		}
		if verdict.ArtistsToQueue[0].ID != "a2" || verdict.ArtistsToQueue[1].ID != "a3" {
			t.Errorf("ArtistsToQueue order = %v, want credit order [a2 a3]", verdict.ArtistsToQueue)
		}
	})

	t.Run("disabled known check still queues only unknown artists", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.SkipKnownArtists = false
		engine := NewEngine(cfg)
		track := collab(artist("a1", "Familiar"), artist("a2", "Fresh"))

		verdict := engine.Evaluate(NewContext(track, known, time.Time{}))
		if !verdict.Pass {
			t.Fatalf("Evaluate() failed: %s", verdict.Reason)
		}
		if len(verdict.ArtistsToQueue) != 1 || verdict.ArtistsToQueue[0].ID != "a2" {
			t.Errorf("ArtistsToQueue = %v, want only the unknown artist", verdict.ArtistsToQueue)
		}
	})

	t.Run("all artists known yields nothing to queue", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.SkipKnownArtists = false
		engine := NewEngine(cfg)
		allKnown := stubSet{"a1": true, "a2": true}
		track := collab(artist("a1", "One"), artist("a2", "Two"))

		verdict := engine.Evaluate(NewContext(track, allKnown, time.Time{}))
		if verdict.Pass {
			t.Error("Evaluate() passed with no artists to queue")
		}
	})
}

func TestEngineShortCircuit(t *testing.T) {
	known := stubSet{"a1": true}
	var evaluated []string

	spy := func(name string, result bool) Rule {
		return NewPredicateRule(func(ctx *Context) bool {
			evaluated = append(evaluated, name)
			return result
		}, name, "")
	}

	t.Run("stops at the first failing rule", func(t *testing.T) {
		evaluated = nil
		engine := NewEngineWithRules(spy("first", true), spy("second", false), spy("third", true))
		track := collab(artist("a2", "Fresh"), artist("a3", "Newer"))

		verdict := engine.Evaluate(NewContext(track, known, time.Time{}))
		if verdict.Pass {
			t.Fatal("Evaluate() passed, want failure")
		}
		if verdict.Rule != "second" {
			t.Errorf("verdict.Rule = %v, want second", verdict.Rule)
		}
		if len(evaluated) != 2 {
			t.Errorf("evaluated %v, want the third rule skipped", evaluated)
		}
	})

	t.Run("runs rules in registration order", func(t *testing.T) {
		evaluated = nil
		engine := NewEngineWithRules(spy("a", true), spy("b", true), spy("c", true))
		track := collab(artist("a2", "Fresh"), artist("a3", "Newer"))

		engine.Evaluate(NewContext(track, known, time.Time{}))
		want := []string{"a", "b", "c"}
		for i, name := range want {
			if i >= len(evaluated) || evaluated[i] != name {
				t.Fatalf("evaluation order = %v, want %v", evaluated, want)
			}
		}
	})
}

func TestEngineEvaluateIsIdempotent(t *testing.T) {
	engine := NewEngine(defaultConfig())
	known := stubSet{"a1": true}
	track := collab(artist("a2", "Fresh"), artist("a3", "Newer"))
	ctx := NewContext(track, known, time.Time{})

	first := engine.Evaluate(ctx)
	second := engine.Evaluate(ctx)

	if first.Pass != second.Pass || first.Rule != second.Rule || first.Reason != second.Reason {
		t.Errorf("verdicts differ: %+v vs %+v", first, second)
	}
	if len(first.ArtistsToQueue) != len(second.ArtistsToQueue) {
		t.Errorf("ArtistsToQueue differ: %v vs %v", first.ArtistsToQueue, second.ArtistsToQueue)
	}
}

func TestEngineChainManagement(t *testing.T) {
	engine := NewEngine(defaultConfig())

	t.Run("default chain order", func(t *testing.T) {
		names := engine.Names()
		if len(names) != 2 || names[0] != "MinimumArtistsRule" || names[1] != "NoKnownArtistsRule" {
			t.Errorf("Names() = %v, want [MinimumArtistsRule NoKnownArtistsRule]", names)
		}
	})

	t.Run("add appends to the end", func(t *testing.T) {
		engine.Add(NewTimeOfDayRule(9, 17))
		names := engine.Names()
		if len(names) != 3 || names[2] != "TimeOfDay(09:00-17:00)" {
			t.Errorf("Names() = %v after Add", names)
		}
	})

	t.Run("remove by name", func(t *testing.T) {
		if !engine.Remove("TimeOfDay(09:00-17:00)") {
			t.Fatal("Remove() = false, want true")
		}
		if engine.Remove("NoSuchRule") {
			t.Error("Remove() = true for missing rule")
		}
		if got := len(engine.Names()); got != 2 {
			t.Errorf("len(Names()) = %d after removal, want 2", got)
		}
	})
}
