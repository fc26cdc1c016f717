// Package domain defines the core types for nvdiff, the change detection core
// of a national vector dataset (road and hydrographic network) pipeline.
//
// This package contains the entities and value objects shared by every stage
// of a comparison cycle: geometry, network objects, effects and errors.
//
// # Core Types
//
// LinearElement is the principal versioned object, a network edge (road
// segment, watercourse) between two Junctions. It carries a persistent NID,
// its geometry and a map of descriptive attributes.
//
// Junction is a network node. Its position is stable within a tolerance and it
// is typed (Intersection, DeadEnd, Ferry, NatProvTer).
//
// Segment is a homogeneous-attribute run of a LinearElement in datasets that
// store attributes per segment.
//
// Snapshot is one delivered vintage of a dataset.
//
// # Effects
//
// Effect names the outcome of comparing an object across two snapshots:
// addition, retirement, descriptive_modification, geometric_modification or
// confirmation. Only addition issues a NID; retirement ends the life cycle but
// the record and its NID are kept.
//
// # Comparison Methods
//
// ComparisonMethod selects how geometric change is judged (vertex, junction,
// topological). It is a provider-level setting.
//
// # Errors
//
// ErrIdentifierConflict, ErrLifecycleViolation and ErrAmbiguousCorrespondence
// form the error taxonomy. All of them are scoped to one object except the
// lifecycle violation, which flags the whole cycle.
//
// # Design Principles
//
// - Immutable inputs; cycles clone before annotating
// - No database or external dependencies
// - Junctions reference elements by key only, no back-pointers
package domain
