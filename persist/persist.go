// Package persist stores completed runs. Persistence is best-effort
// and decoupled from the decision path: a failed save is logged by the
// caller and never rolls back or mutates the plan already returned.
package persist

import (
	"context"

	"github.com/c360studio/irops/aggregate"
	"github.com/c360studio/irops/audit"
)

// Store persists one completed run: the final plan plus its audit
// trail. Implementations classify failures as persistence errors; they
// never panic and never mutate their arguments.
type Store interface {
	Save(ctx context.Context, plan *aggregate.FinalPlan, trail []audit.Entry) error
}

// Noop discards everything. The default for library embedding, where
// the caller owns the returned plan and nothing needs to outlive the
// process.
type Noop struct{}

// Save does nothing and always succeeds.
func (Noop) Save(context.Context, *aggregate.FinalPlan, []audit.Entry) error {
	return nil
}
