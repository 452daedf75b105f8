// Package analysis defines the external AI analyze/plan client port.
//
// The port is a pure capability interface: one call in, one structured
// result out, no retry and no persistence. The pipeline owns the retry
// wrapping and the capture of results into events; tests inject a
// deterministic double.
package analysis

import (
	"context"

	"github.com/triagehq/triage/internal/types"
)

// Client produces triage decisions for an issue snapshot.
type Client interface {
	// Analyze returns labels, an assignee suggestion, a confidence score
	// and a priority for the issue.
	Analyze(ctx context.Context, issue *types.Issue) (*types.Analysis, error)
	// PlanFix returns a remediation plan for the issue.
	PlanFix(ctx context.Context, issue *types.Issue) (*types.Plan, error)
}
