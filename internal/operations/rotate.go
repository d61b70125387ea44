package operations

import (
	"context"

	"go.uber.org/multierr"

	"github.com/kebairia/bacli/internal/report"
	"github.com/kebairia/bacli/internal/rotation"
)

// Rotate enumerates the targets present under the backup root and runs the
// rotation engine over them. Declared targets whose directory is unusable
// count as failed.
func (om *OperationManager) Rotate(ctx context.Context) rotation.Result {
	targets, err := om.Enumerator().Enumerate()
	res := om.Engine().Rotate(ctx, targets)
	for _, e := range multierr.Errors(err) {
		om.log.Error("target skipped", "error", e.Error())
		res.Targets++
		res.FailedTargets++
		res.Errors = append(res.Errors, e)
	}
	return res
}

// ListAges reports how old the newest finest-tier artifact of every
// declared target is.
func (om *OperationManager) ListAges() ([]report.Age, error) {
	return om.AgeReporter().ListAges()
}
