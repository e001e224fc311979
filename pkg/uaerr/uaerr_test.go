package uaerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcuacore/opcuacore/pkg/ua"
	"github.com/opcuacore/opcuacore/pkg/uaerr"
)

func TestNewUsesDefaultStatusForKind(t *testing.T) {
	err := uaerr.New(uaerr.KindTimeout, "waited too long")
	assert.Equal(t, uaerr.KindTimeout, err.Kind())
	assert.Equal(t, ua.BadTimeout, err.Status())
	assert.Equal(t, uint32(ua.BadTimeout), err.Code())
	assert.Equal(t, "waited too long", err.Message())
}

func TestWithStatusOverridesDefault(t *testing.T) {
	err := uaerr.New(uaerr.KindTooLarge, "body exceeds limit").WithStatus(ua.BadResponseTooLarge)
	assert.Equal(t, uaerr.KindTooLarge, err.Kind())
	assert.Equal(t, ua.BadResponseTooLarge, err.Status())
}

func TestWrapCarriesCause(t *testing.T) {
	cause := errors.New("short read")
	err := uaerr.Wrap(uaerr.KindDecodingError, "decode header", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "short read")
	assert.Contains(t, err.Error(), "decode header")
}

func TestErrorStringWithoutCauseOmitsColon(t *testing.T) {
	err := uaerr.New(uaerr.KindInvalidState, "channel already closed")
	assert.Equal(t, fmt.Sprintf("uaerr: %s (%s): channel already closed", uaerr.KindInvalidState, ua.BadInvalidState), err.Error())
}

func TestIsMatchesOnKindNotMessageOrCause(t *testing.T) {
	a := uaerr.New(uaerr.KindTimeout, "first message")
	b := uaerr.Wrap(uaerr.KindTimeout, "different message", errors.New("different cause"))
	assert.True(t, errors.Is(a, b))
	assert.True(t, errors.Is(b, a))
}

func TestIsRejectsDifferentKind(t *testing.T) {
	a := uaerr.New(uaerr.KindTimeout, "x")
	b := uaerr.New(uaerr.KindDisconnected, "x")
	assert.False(t, errors.Is(a, b))
}

func TestIsRejectsNonStatusError(t *testing.T) {
	a := uaerr.New(uaerr.KindTimeout, "x")
	assert.False(t, errors.Is(a, errors.New("plain error")))
}

func TestAsUnwrapsToStatusError(t *testing.T) {
	err := uaerr.Wrap(uaerr.KindEncodingError, "encode body", errors.New("boom"))
	var se *uaerr.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, uaerr.KindEncodingError, se.Kind())
}

func TestKindStringKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "timeout", uaerr.KindTimeout.String())
	assert.Equal(t, "Kind(99)", uaerr.Kind(99).String())
}

func TestEachKindHasADistinctDefaultStatus(t *testing.T) {
	kinds := []uaerr.Kind{
		uaerr.KindInvalidParameters,
		uaerr.KindInvalidState,
		uaerr.KindInvalidReceivedParameter,
		uaerr.KindEncodingError,
		uaerr.KindDecodingError,
		uaerr.KindTooLarge,
		uaerr.KindCertificateValidationFailed,
		uaerr.KindTimeout,
		uaerr.KindDisconnected,
	}
	seen := make(map[ua.StatusCode]uaerr.Kind, len(kinds))
	for _, k := range kinds {
		status := uaerr.New(k, "").Status()
		if other, ok := seen[status]; ok {
			t.Fatalf("kinds %s and %s share default status %s", k, other, status)
		}
		seen[status] = k
	}
}
