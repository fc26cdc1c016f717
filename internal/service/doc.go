// Package service runs comparison cycles end to end.
//
// A cycle takes the previous snapshot (whose records already carry NIDs) and
// the incoming one, pairs their elements, classifies every object with the
// configured comparison method, and commits one ledger entry per object. The
// incoming records are returned annotated with NID and effect, together with
// the change logs for the cycle.
//
// # Failure handling
//
// Objects that fail to bind with an identifier conflict are reported on the
// cycle and skipped; the rest of the cycle commits. A lifecycle violation
// means the previous snapshot disagrees with the ledger. The whole batch is
// discarded and the cycle is returned flagged with ErrCycleFlagged.
//
// # Event System
//
// ChangeService publishes events via EventBus when cycles commit or are
// flagged and when a baseline is imported.
package service
