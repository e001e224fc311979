package ua_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opcuacore/opcuacore/pkg/ua"
)

func TestBuiltInIDStringNames(t *testing.T) {
	assert.Equal(t, "Boolean", ua.BuiltInBoolean.String())
	assert.Equal(t, "DiagnosticInfo", ua.BuiltInDiagnosticInfo.String())
}

func TestBuiltInIDStringUnknown(t *testing.T) {
	unknown := ua.BuiltInID(200)
	assert.Contains(t, unknown.String(), "BuiltInID(200)")
}
