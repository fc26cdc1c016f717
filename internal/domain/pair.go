package domain

// Pair is one comparison candidate: an old element key, a new element key,
// or both. Pairs are produced by a matching step and consumed once.
type Pair struct {
	Old string `json:"old,omitempty" yaml:"old,omitempty"`
	New string `json:"new,omitempty" yaml:"new,omitempty"`
}

// Matched reports whether both sides are present
func (p Pair) Matched() bool {
	return p.Old != "" && p.New != ""
}

// Empty reports whether neither side is present
func (p Pair) Empty() bool {
	return p.Old == "" && p.New == ""
}
