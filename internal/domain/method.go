package domain

// ComparisonMethod selects how geometric change is detected for a dataset.
// It is chosen once per provider, never per record.
type ComparisonMethod string

const (
	MethodVertex      ComparisonMethod = "vertex"      // any vertex change breaks continuity
	MethodJunction    ComparisonMethod = "junction"    // bounding junction positions decide
	MethodTopological ComparisonMethod = "topological" // neighboring elements decide
)

// ParseComparisonMethod converts a string to a ComparisonMethod
func ParseComparisonMethod(s string) (ComparisonMethod, bool) {
	switch s {
	case "vertex":
		return MethodVertex, true
	case "junction":
		return MethodJunction, true
	case "topological":
		return MethodTopological, true
	default:
		return "", false
	}
}

// Valid reports whether m is a known method
func (m ComparisonMethod) Valid() bool {
	_, ok := ParseComparisonMethod(string(m))
	return ok
}
