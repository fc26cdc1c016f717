package domain

// Effect classifies what happened to an object between two snapshots
type Effect string

const (
	EffectAddition                Effect = "addition"
	EffectRetirement              Effect = "retirement"
	EffectDescriptiveModification Effect = "descriptive_modification"
	EffectGeometricModification   Effect = "geometric_modification"
	EffectConfirmation            Effect = "confirmation"
)

// AllEffects lists every effect in reporting order
var AllEffects = []Effect{
	EffectAddition,
	EffectRetirement,
	EffectDescriptiveModification,
	EffectGeometricModification,
	EffectConfirmation,
}

// ParseEffect converts a string to an Effect
func ParseEffect(s string) (Effect, bool) {
	for _, e := range AllEffects {
		if string(e) == s {
			return e, true
		}
	}
	return "", false
}

// Valid reports whether e is one of the known effects
func (e Effect) Valid() bool {
	_, ok := ParseEffect(string(e))
	return ok
}

// CarriesNID reports whether the effect keeps the previous NID
func (e Effect) CarriesNID() bool {
	switch e {
	case EffectConfirmation, EffectDescriptiveModification, EffectGeometricModification:
		return true
	default:
		return false
	}
}

// IsModification reports whether the effect is one of the two modification kinds
func (e Effect) IsModification() bool {
	return e == EffectDescriptiveModification || e == EffectGeometricModification
}

// Priority ranks effects for collapsing several into one (higher wins).
// Retirement ranks lowest; it never wins against a surviving effect.
func (e Effect) Priority() int {
	switch e {
	case EffectAddition:
		return 4
	case EffectGeometricModification:
		return 3
	case EffectDescriptiveModification:
		return 2
	case EffectConfirmation:
		return 1
	default:
		return 0
	}
}

// ChangeLogName returns the change log bucket the effect is reported in
func (e Effect) ChangeLogName() string {
	switch e {
	case EffectAddition:
		return "added"
	case EffectRetirement:
		return "retired"
	case EffectDescriptiveModification, EffectGeometricModification:
		return "modified"
	case EffectConfirmation:
		return "confirmed"
	default:
		return "unknown"
	}
}
