package ua

import (
	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/codec"
)

// QualifiedName pairs a name with the namespace index that scopes it
// (Part 3 §8.3).
type QualifiedName struct {
	NamespaceIndex uint16
	Name           string
}

// EncodeQualifiedName writes NamespaceIndex then Name.
func EncodeQualifiedName(buf *buffer.Buffer, q QualifiedName) error {
	if err := codec.EncodeUInt16(buf, q.NamespaceIndex); err != nil {
		return err
	}
	return codec.EncodeString(buf, q.Name)
}

// DecodeQualifiedName reads NamespaceIndex then Name.
func DecodeQualifiedName(buf *buffer.Buffer, maxLen int) (QualifiedName, error) {
	var q QualifiedName
	if err := codec.DecodeUInt16(buf, &q.NamespaceIndex); err != nil {
		return QualifiedName{}, err
	}
	name, _, err := codec.DecodeString(buf, maxLen)
	if err != nil {
		return QualifiedName{}, err
	}
	q.Name = name
	return q, nil
}
