package rpc

// Request payload structures, one per method id. caps is an optional
// capability token attached to every request; Encode/Decode round-trip
// it present iff it was non-empty on the sender, per spec's round-trip
// law.

type GetPayload struct {
	Key  []byte
	Caps []byte
}

func (p GetPayload) Encode() []byte {
	buf := appendU32Bytes(nil, p.Key)
	return appendOptionalBytes(buf, p.Caps)
}

func DecodeGetPayload(b []byte) (GetPayload, error) {
	key, rest, err := readU32Bytes(b)
	if err != nil {
		return GetPayload{}, err
	}
	caps, _, err := readOptionalBytes(rest)
	if err != nil {
		return GetPayload{}, err
	}
	return GetPayload{Key: key, Caps: caps}, nil
}

// DelPayload shares GetPayload's wire shape.
type DelPayload = GetPayload

func DecodeDelPayload(b []byte) (DelPayload, error) { return DecodeGetPayload(b) }

type PutPayload struct {
	Key   []byte
	Value []byte
	Caps  []byte
}

func (p PutPayload) Encode() []byte {
	buf := appendU32Bytes(nil, p.Key)
	buf = appendU32Bytes(buf, p.Value)
	return appendOptionalBytes(buf, p.Caps)
}

func DecodePutPayload(b []byte) (PutPayload, error) {
	key, rest, err := readU32Bytes(b)
	if err != nil {
		return PutPayload{}, err
	}
	value, rest, err := readU32Bytes(rest)
	if err != nil {
		return PutPayload{}, err
	}
	caps, _, err := readOptionalBytes(rest)
	if err != nil {
		return PutPayload{}, err
	}
	return PutPayload{Key: key, Value: value, Caps: caps}, nil
}

type AppendPayload struct {
	Value []byte
	Caps  []byte
}

func (p AppendPayload) Encode() []byte {
	buf := appendU32Bytes(nil, p.Value)
	return appendOptionalBytes(buf, p.Caps)
}

func DecodeAppendPayload(b []byte) (AppendPayload, error) {
	value, rest, err := readU32Bytes(b)
	if err != nil {
		return AppendPayload{}, err
	}
	caps, _, err := readOptionalBytes(rest)
	if err != nil {
		return AppendPayload{}, err
	}
	return AppendPayload{Value: value, Caps: caps}, nil
}

// ScanRange mirrors a typical ordered-store range query: each bound is
// optional and, if present, inclusive (GTE/LTE) or exclusive (GT/LT).
type ScanRange struct {
	GTE []byte
	GT  []byte
	LTE []byte
	LT  []byte
}

type ScanPayload struct {
	Prefix  []byte
	Reverse bool
	Range   ScanRange
	Caps    []byte
}

func (p ScanPayload) Encode() []byte {
	buf := appendOptionalBytes(nil, p.Prefix)
	buf = appendBool(buf, p.Reverse)
	buf = appendOptionalBytes(buf, p.Range.GTE)
	buf = appendOptionalBytes(buf, p.Range.GT)
	buf = appendOptionalBytes(buf, p.Range.LTE)
	buf = appendOptionalBytes(buf, p.Range.LT)
	return appendOptionalBytes(buf, p.Caps)
}

func DecodeScanPayload(b []byte) (ScanPayload, error) {
	var p ScanPayload
	var err error
	p.Prefix, b, err = readOptionalBytes(b)
	if err != nil {
		return ScanPayload{}, err
	}
	p.Reverse, b, err = readBool(b)
	if err != nil {
		return ScanPayload{}, err
	}
	p.Range.GTE, b, err = readOptionalBytes(b)
	if err != nil {
		return ScanPayload{}, err
	}
	p.Range.GT, b, err = readOptionalBytes(b)
	if err != nil {
		return ScanPayload{}, err
	}
	p.Range.LTE, b, err = readOptionalBytes(b)
	if err != nil {
		return ScanPayload{}, err
	}
	p.Range.LT, b, err = readOptionalBytes(b)
	if err != nil {
		return ScanPayload{}, err
	}
	p.Caps, _, err = readOptionalBytes(b)
	if err != nil {
		return ScanPayload{}, err
	}
	return p, nil
}

// appendOptionalBytes encodes a presence byte followed by a
// u32-prefixed byte array only when v is non-empty, so nil and
// zero-length are both "absent" on re-decode, matching the spec's
// "optional caps is present iff it was non-empty on the sender" law.
func appendOptionalBytes(buf []byte, v []byte) []byte {
	if len(v) == 0 {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return appendU32Bytes(buf, v)
}

func readOptionalBytes(b []byte) (value, rest []byte, err error) {
	if len(b) < 1 {
		return nil, nil, ErrBadFrame
	}
	present := b[0]
	b = b[1:]
	if present == 0 {
		return nil, b, nil
	}
	return readU32Bytes(b)
}
