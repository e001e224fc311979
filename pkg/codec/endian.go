// Package codec implements the OPC UA Part 6 §5.2 binary encoding for the
// built-in scalar and string types. Every Encode*/Decode* function reads or
// writes through a *buffer.Buffer; the wire format is always little-endian
// regardless of host byte order.
//
// Host endianness is detected once at process start (mirroring the
// once-initialised process singletons the source models for global module
// state) and multi-byte values are byte-swapped in place when the host is
// big-endian. Encoding/decoding on a host of unknown endianness fails
// deterministically rather than guessing.
package codec

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"
)

type endianness int

const (
	endianUnknown endianness = iota
	endianLittle
	endianBig
)

var (
	hostOnce  sync.Once
	hostOrder endianness
)

// Init detects and caches host endianness. It is safe to call repeatedly
// and from multiple goroutines; detection runs exactly once.
func Init() {
	hostOnce.Do(detectHostEndianness)
}

func init() { Init() }

func detectHostEndianness() {
	var i uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&i))
	switch {
	case b[0] == 1:
		hostOrder = endianLittle
	case b[1] == 1:
		hostOrder = endianBig
	default:
		hostOrder = endianUnknown
	}
}

// ErrEndiannessUnknown is returned by every Encode/Decode call made before
// Init has run, or on a host whose byte order could not be determined.
var ErrEndiannessUnknown = fmt.Errorf("codec: host endianness not initialised")

func requireHostOrder() error {
	if hostOrder == endianLittle || hostOrder == endianBig {
		return nil
	}
	return ErrEndiannessUnknown
}

// hostIsBigEndian reports whether multi-byte values need swapping before
// they can be treated as the little-endian wire format.
func hostIsBigEndian() bool { return hostOrder == endianBig }

// wireOrder is the binary.ByteOrder OPC UA always uses on the wire.
var wireOrder binary.ByteOrder = binary.LittleEndian
