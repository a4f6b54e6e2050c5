package linkvalidator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gns3mcp/gns3-mcp-server/pkg/errs"
	"github.com/gns3mcp/gns3-mcp-server/pkg/gns3"
)

func nodesABC() []gns3.Node {
	mk := func(id, name string) gns3.Node {
		return gns3.Node{
			ID: id, Name: name,
			Ports: []gns3.Port{
				{AdapterNumber: 0, PortNumber: 0, Name: "eth0"},
				{AdapterNumber: 0, PortNumber: 1, Name: "eth1"},
			},
		}
	}
	return []gns3.Node{mk("a-id", "A"), mk("b-id", "B"), mk("c-id", "C")}
}

func TestValidateVetoesPortInUseAtCorrectIndex(t *testing.T) {
	nodes := nodesABC()
	links := []gns3.Link{
		{ID: "L1", Nodes: []gns3.LinkEndpoint{
			{NodeID: "a-id", AdapterNumber: 0, PortNumber: 0},
			{NodeID: "b-id", AdapterNumber: 0, PortNumber: 0},
		}},
	}

	ops := []Op{
		{Kind: OpConnect, Endpoints: [2]Endpoint{
			{NodeName: "A", AdapterNumber: 0, PortNumber: 1},
			{NodeName: "C", AdapterNumber: 0, PortNumber: 0},
		}},
		{Kind: OpConnect, Endpoints: [2]Endpoint{
			{NodeName: "A", AdapterNumber: 0, PortNumber: 0}, // conflicts with L1
			{NodeName: "C", AdapterNumber: 0, PortNumber: 1},
		}},
	}

	result := Validate(nodes, links, ops)
	require.NotNil(t, result.Error)
	assert.Equal(t, errs.CodePortInUse, result.Error.ErrorCode)
	assert.Equal(t, 1, result.Error.Context["operation_index"])
}

func TestValidateIntraBatchConflictIsVetoed(t *testing.T) {
	nodes := nodesABC()
	ops := []Op{
		{Kind: OpConnect, Endpoints: [2]Endpoint{
			{NodeName: "A", AdapterNumber: 0, PortNumber: 0},
			{NodeName: "B", AdapterNumber: 0, PortNumber: 0},
		}},
		{Kind: OpConnect, Endpoints: [2]Endpoint{
			{NodeName: "A", AdapterNumber: 0, PortNumber: 0}, // same A port again
			{NodeName: "C", AdapterNumber: 0, PortNumber: 0},
		}},
	}

	result := Validate(nodes, nil, ops)
	require.NotNil(t, result.Error)
	assert.Equal(t, errs.CodePortInUse, result.Error.ErrorCode)
	assert.Equal(t, 1, result.Error.Context["operation_index"])
}

func TestValidateNodeNotFoundListsAvailable(t *testing.T) {
	nodes := nodesABC()
	ops := []Op{
		{Kind: OpConnect, Endpoints: [2]Endpoint{
			{NodeName: "ZZZ", AdapterNumber: 0, PortNumber: 0},
			{NodeName: "B", AdapterNumber: 0, PortNumber: 0},
		}},
	}

	result := Validate(nodes, nil, ops)
	require.NotNil(t, result.Error)
	assert.Equal(t, errs.CodeNodeNotFound, result.Error.ErrorCode)
	assert.NotNil(t, result.Error.Context["available_nodes"])
}

func TestValidateSuccessResolvesAdapterNames(t *testing.T) {
	nodes := nodesABC()
	ops := []Op{
		{Kind: OpConnect, Endpoints: [2]Endpoint{
			{NodeName: "A", AdapterName: "eth1"},
			{NodeName: "B", AdapterName: "eth0"},
		}},
	}

	result := Validate(nodes, nil, ops)
	require.Nil(t, result.Error)
	require.Len(t, result.Ops, 1)
	assert.Equal(t, 0, result.Ops[0].Endpoints[0].AdapterNumber)
	assert.Equal(t, 1, result.Ops[0].Endpoints[0].PortNumber)
}

func TestAdapterResolutionIsInvolution(t *testing.T) {
	nodes := nodesABC()
	byNumber, byName := Endpoint{NodeName: "A", AdapterNumber: 0, PortNumber: 1}, Endpoint{NodeName: "A", AdapterName: "eth1", PortNumber: 1}

	num1, name1, err1 := resolveAdapter(nodes[0], byNumber)
	require.Nil(t, err1)
	num2, name2, err2 := resolveAdapter(nodes[0], byName)
	require.Nil(t, err2)

	assert.Equal(t, num1, num2)
	assert.Equal(t, name1, name2)
}

func TestDisconnectMissingLinkVetoes(t *testing.T) {
	nodes := nodesABC()
	ops := []Op{{Kind: OpDisconnect, LinkID: "does-not-exist"}}

	result := Validate(nodes, nil, ops)
	require.NotNil(t, result.Error)
	assert.Equal(t, errs.CodeLinkNotFound, result.Error.ErrorCode)
}
