package rpc

import (
	"encoding/binary"
)

// FrameType discriminates the three frame shapes carried as multiplex
// messages, one logical frame per message (spec §4.4).
type FrameType uint8

const (
	FrameRequest  FrameType = 0
	FrameResponse FrameType = 1
	FrameCancel   FrameType = 2
)

// MethodID identifies which store operation a frame concerns.
type MethodID uint8

const (
	MethodGet    MethodID = 0
	MethodPut    MethodID = 1
	MethodDel    MethodID = 2
	MethodScan   MethodID = 3
	MethodAppend MethodID = 4
)

func (m MethodID) String() string {
	switch m {
	case MethodGet:
		return "get"
	case MethodPut:
		return "put"
	case MethodDel:
		return "del"
	case MethodScan:
		return "scan"
	case MethodAppend:
		return "append"
	default:
		return "unknown"
	}
}

// Frame is the decoded form of one wire message. More is only
// meaningful on FrameResponse: true means the stream continues, false
// means this is the terminal response for RID.
type Frame struct {
	Type    FrameType
	RID     uint32
	Method  MethodID
	More    bool
	Payload []byte
}

// EncodeRequest produces a Request frame: type=0, rid, method, payload.
func EncodeRequest(rid uint32, method MethodID, payload []byte) []byte {
	buf := make([]byte, 6+len(payload))
	buf[0] = byte(FrameRequest)
	binary.LittleEndian.PutUint32(buf[1:5], rid)
	buf[5] = byte(method)
	copy(buf[6:], payload)
	return buf
}

// EncodeResponse produces a Response frame: type=1, rid, method, more,
// payload.
func EncodeResponse(rid uint32, method MethodID, more bool, payload []byte) []byte {
	buf := make([]byte, 7+len(payload))
	buf[0] = byte(FrameResponse)
	binary.LittleEndian.PutUint32(buf[1:5], rid)
	buf[5] = byte(method)
	if more {
		buf[6] = 1
	}
	copy(buf[7:], payload)
	return buf
}

// EncodeCancel produces a Cancel frame: type=2, rid, method, no payload.
func EncodeCancel(rid uint32, method MethodID) []byte {
	buf := make([]byte, 6)
	buf[0] = byte(FrameCancel)
	binary.LittleEndian.PutUint32(buf[1:5], rid)
	buf[5] = byte(method)
	return buf
}

// Decode parses any of the three frame shapes from a raw message.
func Decode(b []byte) (Frame, error) {
	if len(b) < 6 {
		return Frame{}, ErrBadFrame
	}
	f := Frame{
		Type:   FrameType(b[0]),
		RID:    binary.LittleEndian.Uint32(b[1:5]),
		Method: MethodID(b[5]),
	}
	switch f.Type {
	case FrameRequest:
		f.Payload = b[6:]
	case FrameResponse:
		if len(b) < 7 {
			return Frame{}, ErrBadFrame
		}
		f.More = b[6] != 0
		f.Payload = b[7:]
	case FrameCancel:
		// no payload
	default:
		return Frame{}, ErrBadFrame
	}
	return f, nil
}
