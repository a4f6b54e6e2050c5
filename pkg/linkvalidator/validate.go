package linkvalidator

import (
	"fmt"
	"strconv"

	"github.com/gns3mcp/gns3-mcp-server/pkg/errs"
	"github.com/gns3mcp/gns3-mcp-server/pkg/gns3"
)

// OpKind is the kind of batched mutation (spec §4.4).
type OpKind string

const (
	OpConnect    OpKind = "connect"
	OpDisconnect OpKind = "disconnect"
)

// Endpoint identifies one side of a connect operation. Adapter may be
// given by name ("eth0", "GigabitEthernet0/0") or by number; exactly one
// of AdapterName/AdapterNumber should be set by the caller, and the
// validator resolves whichever is missing against the node's port list
// (spec §4.4).
type Endpoint struct {
	NodeName      string
	AdapterName   string
	AdapterNumber int
	PortNumber    int
}

// Op is one element of the batch passed to set_connection.
type Op struct {
	Kind       OpKind
	Endpoints  [2]Endpoint // used for OpConnect
	LinkID     string      // used for OpDisconnect
}

// ResolvedEndpoint is an endpoint after adapter-name resolution, carrying
// both forms so the response can echo them back (spec §6: "each op
// includes adapter by name or number; the response echoes both").
type ResolvedEndpoint struct {
	NodeID        string
	NodeName      string
	AdapterNumber int
	AdapterName   string
	PortNumber    int
}

// ResolvedOp is one validated operation, ready for phase 2 execution.
type ResolvedOp struct {
	Kind      OpKind
	Endpoints [2]ResolvedEndpoint
	LinkID    string
}

// Result is phase 1's output: either a fully resolved, conflict-free plan,
// or a veto envelope naming the first failing operation (spec §4.4: "if
// any operation fails, the result is an error; the caller performs no
// side effects").
type Result struct {
	Ops   []ResolvedOp
	Error *errs.Envelope
}

// Validate runs phase 1: fold ops through the port usage set derived from
// the project's current links, failing fast on the first conflict. This
// function is pure — it never calls the GNS3 peer and has no side
// effects, satisfying spec §8 testable property 2.
func Validate(nodes []gns3.Node, links []gns3.Link, ops []Op) Result {
	byName := make(map[string]gns3.Node, len(nodes))
	for _, n := range nodes {
		byName[n.Name] = n
	}

	usage := BuildPortUsageSet(links)
	byID := make(map[string]gns3.Link, len(links))
	for _, l := range links {
		byID[l.ID] = l
	}

	resolved := make([]ResolvedOp, 0, len(ops))

	for i, op := range ops {
		switch op.Kind {
		case OpConnect:
			r, envelope := validateConnect(byName, usage, op)
			if envelope != nil {
				return veto(envelope, i)
			}
			resolved = append(resolved, r)

		case OpDisconnect:
			link, ok := byID[op.LinkID]
			if !ok {
				return veto(
					errs.New(errs.CodeLinkNotFound, fmt.Sprintf("link %q not found", op.LinkID)).
						WithContext(map[string]any{"link_id": op.LinkID}),
					i)
			}
			for _, ep := range link.Nodes {
				usage.remove(portKey{ep.NodeID, ep.AdapterNumber, ep.PortNumber})
			}
			resolved = append(resolved, ResolvedOp{Kind: OpDisconnect, LinkID: op.LinkID})

		default:
			return veto(
				errs.New(errs.CodeInvalidParameter, fmt.Sprintf("unknown operation kind %q", op.Kind)),
				i)
		}
	}

	return Result{Ops: resolved}
}

func validateConnect(byName map[string]gns3.Node, usage *PortUsageSet, op Op) (ResolvedOp, *errs.Envelope) {
	var out ResolvedOp
	out.Kind = OpConnect

	for side, ep := range op.Endpoints {
		node, ok := byName[ep.NodeName]
		if !ok {
			available := make([]string, 0, len(byName))
			for name := range byName {
				available = append(available, name)
			}
			return out, errs.New(errs.CodeNodeNotFound, fmt.Sprintf("node %q not found", ep.NodeName)).
				WithContext(map[string]any{"available_nodes": available})
		}

		adapterNum, adapterName, err := resolveAdapter(node, ep)
		if err != nil {
			return out, err
		}

		if adapterNum < 0 || adapterNum >= len(node.Ports) {
			return out, errs.New(errs.CodeInvalidAdapter, fmt.Sprintf("adapter %d out of range for node %q", adapterNum, ep.NodeName)).
				WithContext(map[string]any{"node": ep.NodeName, "adapter_number": adapterNum})
		}
		if ep.PortNumber < 0 {
			return out, errs.New(errs.CodeInvalidPort, fmt.Sprintf("port %d invalid for node %q", ep.PortNumber, ep.NodeName)).
				WithContext(map[string]any{"node": ep.NodeName, "port_number": ep.PortNumber})
		}

		key := portKey{node.ID, adapterNum, ep.PortNumber}
		if linkID, inUse := usage.has(key); inUse {
			return out, errs.New(errs.CodePortInUse, fmt.Sprintf("port %d/%d on node %q is already in use", adapterNum, ep.PortNumber, ep.NodeName)).
				WithContext(map[string]any{
					"node": ep.NodeName, "adapter_number": adapterNum, "port_number": ep.PortNumber,
					"existing_link_id": linkID,
				})
		}

		out.Endpoints[side] = ResolvedEndpoint{
			NodeID: node.ID, NodeName: node.Name,
			AdapterNumber: adapterNum, AdapterName: adapterName,
			PortNumber: ep.PortNumber,
		}
	}

	// Commit to the simulated state only after both endpoints validated,
	// so a failure on endpoint 2 doesn't leave endpoint 1 phantom-reserved.
	for _, re := range out.Endpoints {
		usage.add(portKey{re.NodeID, re.AdapterNumber, re.PortNumber}, "")
	}

	return out, nil
}

// resolveAdapter resolves ep's adapter by name or number against node's
// port list, and returns both forms (spec §4.4: "the validator resolves
// names against the node's port list and records both forms"). Resolution
// is an involution: resolving by number and looking up that port's name
// agrees with resolving the same name directly (spec §8 round-trip
// property).
func resolveAdapter(node gns3.Node, ep Endpoint) (number int, name string, envErr *errs.Envelope) {
	if ep.AdapterName != "" {
		for _, p := range node.Ports {
			if p.Name == ep.AdapterName {
				return p.AdapterNumber, p.Name, nil
			}
		}
		return 0, "", errs.New(errs.CodeInvalidAdapter, fmt.Sprintf("adapter %q not found on node %q", ep.AdapterName, node.Name)).
			WithContext(map[string]any{"node": node.Name, "adapter": ep.AdapterName})
	}

	for _, p := range node.Ports {
		if p.AdapterNumber == ep.AdapterNumber {
			return p.AdapterNumber, p.Name, nil
		}
	}
	// No declared port has this name set; fall back to the bare number
	// with its string form so the response still has something to echo.
	return ep.AdapterNumber, strconv.Itoa(ep.AdapterNumber), nil
}

func veto(e *errs.Envelope, index int) Result {
	e.WithContext(map[string]any{"operation_index": index})
	return Result{Error: e}
}
