package linkvalidator

import (
	"context"

	"github.com/gns3mcp/gns3-mcp-server/pkg/errs"
	"github.com/gns3mcp/gns3-mcp-server/pkg/gns3"
)

// Completed describes one operation applied during phase 2.
type Completed struct {
	Index     int    `json:"index"`
	Kind      OpKind `json:"kind"`
	LinkID    string `json:"link_id,omitempty"`
	Endpoints [2]ResolvedEndpoint `json:"endpoints,omitempty"`
}

// Failed describes the operation phase 2 stopped at.
type Failed struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ExecResult is phase 2's output (spec §4.4: "If an API call fails
// mid-batch, execution stops at that operation and returns
// { completed: [...], failed: {index, reason} }").
type ExecResult struct {
	Completed []Completed `json:"completed"`
	Failed    *Failed     `json:"failed,omitempty"`
}

// Execute runs phase 2: apply resolved ops to the GNS3 peer in order via
// client, stopping at the first failure. Per the spec's design rationale
// (§4.4), this never rolls back: the GNS3 REST API has no transaction, and
// a rollback attempt could itself fail and leave a worse state than a
// well-reported partial failure. Ordering is preserved exactly (spec §5:
// "the result's completed array reflects that order").
func Execute(ctx context.Context, client *gns3.Client, projectID string, ops []ResolvedOp) ExecResult {
	var result ExecResult
	for i, op := range ops {
		switch op.Kind {
		case OpConnect:
			endpoints := make([]gns3.LinkEndpoint, 2)
			for j, ep := range op.Endpoints {
				endpoints[j] = gns3.LinkEndpoint{
					NodeID:        ep.NodeID,
					AdapterNumber: ep.AdapterNumber,
					PortNumber:    ep.PortNumber,
				}
			}
			link, err := client.CreateLink(ctx, projectID, endpoints)
			if err != nil {
				result.Failed = &Failed{Index: i, Reason: err.Error()}
				return result
			}
			result.Completed = append(result.Completed, Completed{
				Index: i, Kind: OpConnect, LinkID: link.ID, Endpoints: op.Endpoints,
			})

		case OpDisconnect:
			if err := client.DeleteLink(ctx, projectID, op.LinkID); err != nil {
				result.Failed = &Failed{Index: i, Reason: err.Error()}
				return result
			}
			result.Completed = append(result.Completed, Completed{
				Index: i, Kind: OpDisconnect, LinkID: op.LinkID,
			})
		}
	}
	return result
}

// FailedEnvelope converts a mid-batch execution failure into the C7
// envelope shape used when the dispatcher has nothing better to report.
func FailedEnvelope(r ExecResult) *errs.Envelope {
	if r.Failed == nil {
		return nil
	}
	return errs.New(errs.CodePartialBatchError, "batch execution failed partway through").
		WithContext(map[string]any{
			"operation_index": r.Failed.Index,
			"reason":          r.Failed.Reason,
			"completed":       r.Completed,
		})
}
