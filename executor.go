package relq

import "context"

// =====================================
// Executor Boundary
// =====================================

// Executor runs a rendered command against a live connection. The result
// shape hints what rows the command should produce: all matching rows for
// selects, generated keys for inserts, or none. Execution failures are
// surfaced to callers unmodified; this layer never retries or suppresses
// them.
type Executor interface {
	Execute(ctx context.Context, command string, args []interface{}, shape ResultShape) ([]Record, error)
}
