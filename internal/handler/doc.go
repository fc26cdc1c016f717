// Package handler implements the read-only HTTP API served in watch mode.
//
// # Endpoints
//
//	GET /healthz                          liveness and ledger size
//	GET /api/nids/{nid}?as_of=            object state at a point in time
//	GET /api/nids/{nid}/history           every ledger entry of an object
//	GET /api/datasets/{dataset}?as_of=    the dataset rebuilt at a point in time
//	GET /api/datasets/{dataset}/last      the last committed cycle
//
// as_of accepts RFC 3339 or YYYY-MM-DD and defaults to now.
//
// # Response Format
//
// Success responses return JSON. Error responses return JSON with an
// {error, details} structure and 400, 404 or 500.
package handler
