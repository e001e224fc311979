package ua

// StatusCode is the 32-bit result code carried by DataValue.Status and by
// every operation that can fail across the wire (Part 4 §7.34, Part 6
// §5.2.2.17). The high two bits classify severity: 00=Good, 01=Uncertain,
// 10=Bad; only the handful this module actually raises are enumerated
// here — the service layer owns the rest of the table.
type StatusCode uint32

const (
	Good StatusCode = 0x00000000

	BadTcpMessageTypeInvalid     StatusCode = 0x807E0000
	BadTcpEndpointURLInvalid     StatusCode = 0x807D0000
	BadTcpNotEnoughResources     StatusCode = 0x807C0000
	BadTcpInternalError          StatusCode = 0x807B0000
	BadTcpServerTooBusy          StatusCode = 0x807A0000
	BadSecurityChecksFailed      StatusCode = 0x80130000
	BadCertificateInvalid       StatusCode = 0x80120000
	BadRequestTooLarge           StatusCode = 0x80B80000
	BadResponseTooLarge          StatusCode = 0x80B90000
	BadDecodingError             StatusCode = 0x80060000
	BadEncodingError             StatusCode = 0x80070000
	BadInvalidState              StatusCode = 0x80330000
	BadInvalidArgument           StatusCode = 0x80AB0000
	BadSecureChannelIDInvalid    StatusCode = 0x80230000
	BadSecureChannelClosed       StatusCode = 0x80310000
	BadSequenceNumberInvalid     StatusCode = 0x80280000
	BadSequenceNumberUnknown     StatusCode = 0x80D50000
	BadCommunicationError        StatusCode = 0x80050000
	BadTimeout                   StatusCode = 0x800A0000
	BadConnectionClosed          StatusCode = 0x80AE0000
	BadOutOfMemory                StatusCode = 0x80010000
)

// IsGood reports whether the code is the canonical success value.
func (s StatusCode) IsGood() bool { return s == Good }

// IsBad reports whether the high two bits classify the code as an error.
func (s StatusCode) IsBad() bool { return s&0xC0000000 == 0x80000000 }
