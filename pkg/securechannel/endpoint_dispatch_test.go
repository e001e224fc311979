package securechannel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/codec"
	"github.com/opcuacore/opcuacore/pkg/registry"
	"github.com/opcuacore/opcuacore/pkg/ua"
)

type dispatchPing struct {
	Message string
}

func registerDispatchPingType(t *testing.T, ns string) *registry.TypeRegistry {
	t.Helper()
	reg := registry.NewTypeRegistry()
	require.NoError(t, reg.Register(&registry.EncodeableType{
		NamespaceURI:         ns,
		BinaryEncodingTypeID: 42,
		Encode: func(buf *buffer.Buffer, v any) error {
			return codec.EncodeString(buf, v.(*dispatchPing).Message)
		},
		Decode: func(buf *buffer.Buffer, maxLen int) (any, error) {
			s, _, err := codec.DecodeString(buf, maxLen)
			if err != nil {
				return nil, err
			}
			return &dispatchPing{Message: s}, nil
		},
	}))
	return reg
}

func TestDecodeDispatchObjectResolvesRegisteredTypeByNamespaceURI(t *testing.T) {
	const ns = "urn:example:dispatch"
	reg := registerDispatchPingType(t, ns)

	buf := buffer.New(256)
	typeID := ua.ExpandedNodeId{
		NodeId:          ua.NodeId{Type: ua.IdentifierNumeric, Numeric: 42},
		NamespaceURI:    ns,
		HasNamespaceURI: true,
	}
	require.NoError(t, ua.EncodeExpandedNodeId(buf, typeID))
	require.NoError(t, codec.EncodeString(buf, "hello"))

	gotType, obj, err := decodeDispatchObject(buf.Bytes(), reg, nil)
	require.NoError(t, err)
	assert.Equal(t, ns, gotType.NamespaceURI)
	req, ok := obj.(*dispatchPing)
	require.True(t, ok)
	assert.Equal(t, "hello", req.Message)
}

func TestDecodeDispatchObjectResolvesNamespaceIndexThroughTable(t *testing.T) {
	const ns = "urn:example:dispatch-indexed"
	reg := registerDispatchPingType(t, ns)

	table := registry.NewNamespaceTable()
	idx, err := table.Append(ns)
	require.NoError(t, err)

	buf := buffer.New(256)
	typeID := ua.ExpandedNodeId{
		NodeId: ua.NodeId{Type: ua.IdentifierNumeric, Namespace: idx, Numeric: 42},
	}
	require.NoError(t, ua.EncodeExpandedNodeId(buf, typeID))
	require.NoError(t, codec.EncodeString(buf, "hi there"))

	gotType, obj, err := decodeDispatchObject(buf.Bytes(), reg, table)
	require.NoError(t, err)
	assert.Equal(t, idx, gotType.NodeId.Namespace)
	req, ok := obj.(*dispatchPing)
	require.True(t, ok)
	assert.Equal(t, "hi there", req.Message)
}

func TestDecodeDispatchObjectErrorsWhenTypeUnregistered(t *testing.T) {
	reg := registry.NewTypeRegistry()

	buf := buffer.New(64)
	typeID := ua.ExpandedNodeId{
		NodeId:          ua.NodeId{Type: ua.IdentifierNumeric, Numeric: 99},
		NamespaceURI:    "urn:example:unknown",
		HasNamespaceURI: true,
	}
	require.NoError(t, ua.EncodeExpandedNodeId(buf, typeID))

	_, _, err := decodeDispatchObject(buf.Bytes(), reg, nil)
	assert.Error(t, err)
}

func TestDecodeDispatchObjectErrorsWhenNamespaceIndexHasNoTable(t *testing.T) {
	reg := registry.NewTypeRegistry()

	buf := buffer.New(64)
	typeID := ua.ExpandedNodeId{NodeId: ua.NodeId{Type: ua.IdentifierNumeric, Namespace: 2, Numeric: 42}}
	require.NoError(t, ua.EncodeExpandedNodeId(buf, typeID))

	_, _, err := decodeDispatchObject(buf.Bytes(), reg, nil)
	assert.Error(t, err)
}
