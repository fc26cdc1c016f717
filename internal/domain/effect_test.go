package domain

import (
	"errors"
	"testing"
)

func TestParseEffect(t *testing.T) {
	for _, e := range AllEffects {
		got, ok := ParseEffect(string(e))
		if !ok || got != e {
			t.Errorf("ParseEffect(%q) = %s, %v", e, got, ok)
		}
	}
	if _, ok := ParseEffect("deleted"); ok {
		t.Error("expected unknown effect to be rejected")
	}
}

func TestEffectPriority(t *testing.T) {
	order := []Effect{
		EffectAddition,
		EffectGeometricModification,
		EffectDescriptiveModification,
		EffectConfirmation,
		EffectRetirement,
	}
	for i := 1; i < len(order); i++ {
		if order[i-1].Priority() <= order[i].Priority() {
			t.Errorf("expected %s to outrank %s", order[i-1], order[i])
		}
	}
}

func TestEffectCarriesNID(t *testing.T) {
	tests := []struct {
		effect Effect
		want   bool
	}{
		{EffectAddition, false},
		{EffectRetirement, false},
		{EffectConfirmation, true},
		{EffectDescriptiveModification, true},
		{EffectGeometricModification, true},
	}
	for _, tt := range tests {
		if got := tt.effect.CarriesNID(); got != tt.want {
			t.Errorf("Effect(%s).CarriesNID() = %v, want %v", tt.effect, got, tt.want)
		}
	}
}

func TestEffectChangeLogName(t *testing.T) {
	tests := map[Effect]string{
		EffectAddition:                "added",
		EffectRetirement:              "retired",
		EffectDescriptiveModification: "modified",
		EffectGeometricModification:   "modified",
		EffectConfirmation:            "confirmed",
	}
	for effect, want := range tests {
		if got := effect.ChangeLogName(); got != want {
			t.Errorf("Effect(%s).ChangeLogName() = %s, want %s", effect, got, want)
		}
	}
}

func TestParseComparisonMethod(t *testing.T) {
	tests := []struct {
		input string
		want  ComparisonMethod
		ok    bool
	}{
		{"vertex", MethodVertex, true},
		{"junction", MethodJunction, true},
		{"topological", MethodTopological, true},
		{"nearest", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseComparisonMethod(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseComparisonMethod(%q) = %s, %v, want %s, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTypedErrorsUnwrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"conflict", &ConflictError{NID: "abc", Key: "k2", Existing: "k1"}, ErrIdentifierConflict},
		{"lifecycle", &LifecycleError{NID: "abc", Effect: EffectAddition, Reason: "already added"}, ErrLifecycleViolation},
		{"ambiguity", &AmbiguityError{Key: "k1", Reason: "no prior element"}, ErrAmbiguousCorrespondence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("expected %v to unwrap to %v", tt.err, tt.sentinel)
			}
			if tt.err.Error() == "" {
				t.Error("expected a message")
			}
		})
	}
}
