package registry

import "testing"

func TestNamespaceTable_AppendAndLookup(t *testing.T) {
	tbl := NewNamespaceTable()

	uri, ok := tbl.URI(0)
	if !ok || uri != opcFoundationNamespaceURI {
		t.Fatalf("index 0 = %q, %v; want %q, true", uri, ok, opcFoundationNamespaceURI)
	}

	idx, err := tbl.Append("urn:example:server")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if idx != 1 {
		t.Errorf("Append index = %d, want 1", idx)
	}

	got, ok := tbl.Index("urn:example:server")
	if !ok || got != 1 {
		t.Errorf("Index(urn:example:server) = %d, %v; want 1, true", got, ok)
	}

	if _, ok := tbl.Index("urn:unknown"); ok {
		t.Error("Index of unregistered URI should return false")
	}
}

func TestNamespaceTable_SealRejectsAppend(t *testing.T) {
	tbl := NewNamespaceTable()
	tbl.Seal()

	if _, err := tbl.Append("urn:too:late"); err == nil {
		t.Error("Append after Seal should fail")
	}
}

func TestTypeRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewTypeRegistry()
	const ns = "urn:example:types"

	et := &EncodeableType{
		NamespaceURI:         ns,
		TypeID:               1,
		BinaryEncodingTypeID: 1,
	}
	if err := reg.Register(et); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, ok := reg.Lookup(ns, 1)
	if !ok || got != et {
		t.Fatalf("Lookup = %v, %v; want original type, true", got, ok)
	}

	if err := reg.Register(et); err == nil {
		t.Error("Register of a duplicate (namespace, binary_encoding_id) should fail")
	}

	if _, ok := reg.Lookup(ns, 2); ok {
		t.Error("Lookup of unregistered binary_encoding_id should return false")
	}
}

func TestResolveNamespace(t *testing.T) {
	tbl := NewNamespaceTable()
	idx, _ := tbl.Append("urn:example:server")

	uri, err := ResolveNamespace(tbl, idx)
	if err != nil {
		t.Fatalf("ResolveNamespace: %v", err)
	}
	if uri != "urn:example:server" {
		t.Errorf("uri = %q, want %q", uri, "urn:example:server")
	}

	if _, err := ResolveNamespace(tbl, 99); err == nil {
		t.Error("ResolveNamespace of an unknown index should fail")
	}
}
