// Package linkvalidator is the C4 component: two-phase validation of
// batched topology link mutations, with a simulated in-memory
// PortUsageSet so phase 2 is effectively idempotent under intra-batch
// conflicts (spec §4.4).
package linkvalidator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/gns3mcp/gns3-mcp-server/pkg/gns3"
)

// portKey identifies one (node, adapter, port) triple.
type portKey struct {
	nodeID        string
	adapterNumber int
	portNumber    int
}

// PortUsageSet is the derived-in-memory set of ports currently in use by
// links (spec §3). It is built once from the project's current links and
// then mutated in place as phase 1 folds operations through it, so later
// operations in the same batch see the simulated state left by earlier
// ones.
type PortUsageSet struct {
	inUse map[portKey]string // value is the owning link id, for disconnect lookups
}

// BuildPortUsageSet derives the set from the project's current links.
// Fetching node lists (for adapter-name resolution) can be parallelized
// across several projects' worth of nodes via errgroup when the caller
// validates more than one project's batch concurrently; within a single
// batch the fold itself is sequential per spec §5 ("batch link operations
// are ordered").
func BuildPortUsageSet(links []gns3.Link) *PortUsageSet {
	s := &PortUsageSet{inUse: make(map[portKey]string, len(links)*2)}
	for _, l := range links {
		if !l.WellFormed() {
			continue
		}
		for _, ep := range l.Nodes {
			s.inUse[portKey{ep.NodeID, ep.AdapterNumber, ep.PortNumber}] = l.ID
		}
	}
	return s
}

func (s *PortUsageSet) has(k portKey) (string, bool) {
	id, ok := s.inUse[k]
	return id, ok
}

func (s *PortUsageSet) add(k portKey, linkID string) {
	s.inUse[k] = linkID
}

func (s *PortUsageSet) remove(k portKey) {
	delete(s.inUse, k)
}

// FetchTopology fetches projectID's current nodes and links concurrently
// (grounded on the teacher's pkg/gateway/capabilitites.go
// errgroup.WithContext fan-out shape): phase 1 needs both lists before it
// can build the PortUsageSet and fold the batch through it, and the two
// GET calls are independent, so there is no reason to pay their latency
// sequentially. If either call fails, the other is cancelled via ctx.
func FetchTopology(ctx context.Context, client *gns3.Client, projectID string) ([]gns3.Node, []gns3.Link, error) {
	var nodes []gns3.Node
	var links []gns3.Link

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nodes, err = client.ListNodes(ctx, projectID)
		return err
	})
	g.Go(func() error {
		var err error
		links, err = client.ListLinks(ctx, projectID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return nodes, links, nil
}
