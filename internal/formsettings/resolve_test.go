package formsettings

import (
	"encoding/json"
	"testing"
	"time"
)

func TestResolveAbsentOverrideReturnsDefaults(t *testing.T) {
	for _, raw := range []string{"", "null", "  "} {
		got, err := Resolve(DefaultRateLimit, json.RawMessage(raw))
		if err != nil {
			t.Fatalf("Resolve(%q): %v", raw, err)
		}
		if got != DefaultRateLimit {
			t.Fatalf("Resolve(%q) = %+v, want defaults", raw, got)
		}
	}
}

func TestResolvePartialOverrideKeepsOtherLeaves(t *testing.T) {
	got, err := Resolve(DefaultRateLimit, json.RawMessage(`{"enabled":true,"maxSubmissions":3}`))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !got.Enabled || got.MaxSubmissions != 3 {
		t.Fatalf("override not applied: %+v", got)
	}
	if got.TimeWindow != DefaultRateLimit.TimeWindow || got.BlockDuration != DefaultRateLimit.BlockDuration || got.Message != DefaultRateLimit.Message {
		t.Fatalf("unspecified leaves changed: %+v", got)
	}
}

func TestResolveDoesNotMutateDefaults(t *testing.T) {
	before := DefaultProfanityFilter.CustomWords
	got, err := Resolve(DefaultProfanityFilter, json.RawMessage(`{"customWords":["darn"]}`))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got.CustomWords) != 1 || got.CustomWords[0] != "darn" {
		t.Fatalf("custom words not applied: %+v", got.CustomWords)
	}
	if len(DefaultProfanityFilter.CustomWords) != len(before) {
		t.Fatalf("defaults mutated: %+v", DefaultProfanityFilter.CustomWords)
	}
}

func TestResolveMalformedOverrideFallsBack(t *testing.T) {
	got, err := Resolve(DefaultResponseLimit, json.RawMessage(`{"maxResponses":"lots"}`))
	if err == nil {
		t.Fatalf("expected error for malformed override")
	}
	if got != DefaultResponseLimit {
		t.Fatalf("expected defaults on error, got %+v", got)
	}
}

func TestResolveAllNormalizesNonPositiveLimits(t *testing.T) {
	settings := Settings{
		Title:               "Feedback",
		ResponseLimit:       json.RawMessage(`{"enabled":true,"maxResponses":0}`),
		RateLimit:           json.RawMessage(`{"enabled":true,"maxSubmissions":-2,"timeWindow":0}`),
		DuplicatePrevention: json.RawMessage(`{"enabled":true,"strategy":"fingerprint","mode":"forever"}`),
	}
	eff, err := ResolveAll(settings)
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if eff.ResponseLimit.MaxResponses != 100 {
		t.Fatalf("maxResponses = %d, want 100", eff.ResponseLimit.MaxResponses)
	}
	if eff.RateLimit.MaxSubmissions != 5 || eff.RateLimit.Window() != 10*time.Minute {
		t.Fatalf("rate limit not normalized: %+v", eff.RateLimit)
	}
	if eff.DuplicatePrevention.Strategy != StrategyCombined || eff.DuplicatePrevention.Mode != ModeTimeBased {
		t.Fatalf("duplicate prevention not normalized: %+v", eff.DuplicatePrevention)
	}
	if eff.Title != "Feedback" {
		t.Fatalf("title = %q", eff.Title)
	}
}

func TestResolveAllReportsFirstMalformedPolicy(t *testing.T) {
	eff, err := ResolveAll(Settings{BotProtection: json.RawMessage(`[1,2]`)})
	if err == nil {
		t.Fatalf("expected error")
	}
	if eff.BotProtection != DefaultBotProtection {
		t.Fatalf("bot protection = %+v, want defaults", eff.BotProtection)
	}
}

func TestDuplicateWindowOneTimeIsZero(t *testing.T) {
	dp := DefaultDuplicatePrevention
	dp.Mode = ModeOneTime
	if dp.Window() != 0 {
		t.Fatalf("one-time window = %s, want 0", dp.Window())
	}
	dp.Mode = ModeTimeBased
	if dp.Window() != 24*time.Hour {
		t.Fatalf("time-based window = %s, want 24h", dp.Window())
	}
}

func TestParseSchema(t *testing.T) {
	raw := []byte(`{"fields":[{"id":"email","type":"email","label":"Email","required":true,"layout":{"w":2}}],"settings":{"title":"Signup","rateLimit":{"enabled":true}}}`)
	schema, err := ParseSchema(raw)
	if err != nil {
		t.Fatalf("ParseSchema: %v", err)
	}
	field, ok := schema.FieldByID("email")
	if !ok || field.Label != "Email" || !field.Required {
		t.Fatalf("unexpected field %+v", field)
	}
	if string(schema.Settings.RateLimit) != `{"enabled":true}` {
		t.Fatalf("raw rateLimit = %s", schema.Settings.RateLimit)
	}
	if _, err := ParseSchema([]byte(`{`)); err == nil {
		t.Fatalf("expected parse error")
	}
}
