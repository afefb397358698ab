package rpc

import (
	"encoding/binary"
)

// ErrorCode is drawn from the closed set specified in spec §3. Senders
// must not invent new strings; receivers map anything unrecognised to
// Unknown.
type ErrorCode string

const (
	CodeBadArg           ErrorCode = "BadArg"
	CodeCodecError       ErrorCode = "CodecError"
	CodeCASFailed        ErrorCode = "CASFailed"
	CodeCapabilityDenied ErrorCode = "CapabilityDenied"
	CodeTimeout          ErrorCode = "Timeout"
	CodeDriverError      ErrorCode = "DriverError"
	CodeCryptoError      ErrorCode = "CryptoError"
	CodeNotAvailable     ErrorCode = "NotAvailable"
	CodeNotReady         ErrorCode = "NotReady"
	CodePayloadTooLarge  ErrorCode = "PayloadTooLarge"
	CodeClosed           ErrorCode = "Closed"
	CodeDestroyed        ErrorCode = "Destroyed"
	CodeUnknown          ErrorCode = "Unknown"
)

var knownCodes = map[ErrorCode]struct{}{
	CodeBadArg: {}, CodeCodecError: {}, CodeCASFailed: {}, CodeCapabilityDenied: {},
	CodeTimeout: {}, CodeDriverError: {}, CodeCryptoError: {}, CodeNotAvailable: {},
	CodeNotReady: {}, CodePayloadTooLarge: {}, CodeClosed: {}, CodeDestroyed: {},
	CodeUnknown: {},
}

// NormalizeCode maps any string outside the closed set to Unknown.
func NormalizeCode(s string) ErrorCode {
	c := ErrorCode(s)
	if _, ok := knownCodes[c]; ok {
		return c
	}
	return CodeUnknown
}

// Envelope is the universal ok/err result container carried as the
// payload of a Response frame.
type Envelope struct {
	OK      bool
	Value   []byte
	MetaKey []byte
	Code    ErrorCode
	Message string
}

// OKEnvelope constructs a successful envelope.
func OKEnvelope(value, metaKey []byte) Envelope {
	return Envelope{OK: true, Value: value, MetaKey: metaKey}
}

// Fail constructs a failure envelope, normalizing code to the closed
// set.
func Fail(code ErrorCode, message string) Envelope {
	return Envelope{OK: false, Code: NormalizeCode(string(code)), Message: message}
}

// EncodeEnvelope serializes e. Success envelopes carry a u32-prefixed
// value and an optional u32-prefixed meta key; failure envelopes carry
// u16-prefixed code and message strings.
func EncodeEnvelope(e Envelope) []byte {
	if e.OK {
		hasMeta := byte(0)
		if e.MetaKey != nil {
			hasMeta = 1
		}
		buf := make([]byte, 0, 1+4+len(e.Value)+1+4+len(e.MetaKey))
		buf = append(buf, 1)
		buf = appendU32Bytes(buf, e.Value)
		buf = append(buf, hasMeta)
		if hasMeta == 1 {
			buf = appendU32Bytes(buf, e.MetaKey)
		}
		return buf
	}

	code := string(NormalizeCode(string(e.Code)))
	buf := make([]byte, 0, 1+2+len(code)+2+len(e.Message))
	buf = append(buf, 0)
	buf = appendU16String(buf, code)
	buf = appendU16String(buf, e.Message)
	return buf
}

// DecodeEnvelope parses the wire form produced by EncodeEnvelope.
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) < 1 {
		return Envelope{}, ErrBadFrame
	}
	ok := b[0] != 0
	b = b[1:]

	if ok {
		value, rest, err := readU32Bytes(b)
		if err != nil {
			return Envelope{}, err
		}
		if len(rest) < 1 {
			return Envelope{}, ErrBadFrame
		}
		hasMeta := rest[0]
		rest = rest[1:]
		var metaKey []byte
		if hasMeta == 1 {
			metaKey, rest, err = readU32Bytes(rest)
			if err != nil {
				return Envelope{}, err
			}
		}
		_ = rest
		return Envelope{OK: true, Value: value, MetaKey: metaKey}, nil
	}

	code, rest, err := readU16String(b)
	if err != nil {
		return Envelope{}, err
	}
	msg, rest, err := readU16String(rest)
	if err != nil {
		return Envelope{}, err
	}
	_ = rest
	return Envelope{OK: false, Code: NormalizeCode(code), Message: msg}, nil
}

func appendU32Bytes(buf []byte, v []byte) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(v)))
	buf = append(buf, tmp[:]...)
	return append(buf, v...)
}

func readU32Bytes(b []byte) (value, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, ErrBadFrame
	}
	n := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < n {
		return nil, nil, ErrBadFrame
	}
	return b[:n], b[n:], nil
}

func appendU16String(buf []byte, s string) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], uint16(len(s)))
	buf = append(buf, tmp[:]...)
	return append(buf, s...)
}

func readU16String(b []byte) (value string, rest []byte, err error) {
	if len(b) < 2 {
		return "", nil, ErrBadFrame
	}
	n := binary.LittleEndian.Uint16(b[:2])
	b = b[2:]
	if uint16(len(b)) < n {
		return "", nil, ErrBadFrame
	}
	return string(b[:n]), b[n:], nil
}

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func readBool(b []byte) (value bool, rest []byte, err error) {
	if len(b) < 1 {
		return false, nil, ErrBadFrame
	}
	return b[0] != 0, b[1:], nil
}
