// Package ua implements the OPC UA built-in structured types — NodeId,
// ExpandedNodeId, QualifiedName, LocalizedText, DiagnosticInfo,
// ExtensionObject, Variant, DataValue — and their arrays/matrices, on top
// of the scalar primitives in pkg/codec.
package ua

import "fmt"

// BuiltInID identifies one of the 25 OPC UA built-in types inside a
// Variant's encoding byte (Part 6 §5.2.2.16, Table 14). Id 24
// ("Variant") is only legal as an array/matrix element type, never as a
// scalar Variant's own BuiltInID.
type BuiltInID byte

const (
	BuiltInBoolean BuiltInID = iota + 1
	BuiltInSByte
	BuiltInByte
	BuiltInInt16
	BuiltInUInt16
	BuiltInInt32
	BuiltInUInt32
	BuiltInInt64
	BuiltInUInt64
	BuiltInFloat
	BuiltInDouble
	BuiltInString
	BuiltInDateTime
	BuiltInGuid
	BuiltInByteString
	BuiltInXmlElement
	BuiltInNodeId
	BuiltInExpandedNodeId
	BuiltInStatusCode
	BuiltInQualifiedName
	BuiltInLocalizedText
	BuiltInExtensionObject
	BuiltInDataValue
	BuiltInVariant
	BuiltInDiagnosticInfo
)

// maxBuiltInID is the highest id assignable to a scalar value; BuiltInID
// 24 (Variant-as-element) is only legal inside an array or matrix.
const maxBuiltInID = BuiltInDiagnosticInfo

func (id BuiltInID) valid() bool {
	return id >= BuiltInBoolean && id <= maxBuiltInID
}

func (id BuiltInID) String() string {
	names := [...]string{
		"Boolean", "SByte", "Byte", "Int16", "UInt16", "Int32", "UInt32",
		"Int64", "UInt64", "Float", "Double", "String", "DateTime", "Guid",
		"ByteString", "XmlElement", "NodeId", "ExpandedNodeId", "StatusCode",
		"QualifiedName", "LocalizedText", "ExtensionObject", "DataValue",
		"Variant", "DiagnosticInfo",
	}
	if id.valid() {
		return names[id-1]
	}
	return fmt.Sprintf("BuiltInID(%d)", byte(id))
}
