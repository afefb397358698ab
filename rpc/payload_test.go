package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetPayloadRoundTrip(t *testing.T) {
	p := GetPayload{Key: []byte("k"), Caps: []byte("token")}
	got, err := DecodeGetPayload(p.Encode())
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestGetPayloadCapsAbsentWhenEmptyOnSender(t *testing.T) {
	p := GetPayload{Key: []byte("k")}
	got, err := DecodeGetPayload(p.Encode())
	require.NoError(t, err)
	require.Nil(t, got.Caps)
}

func TestPutPayloadRoundTrip(t *testing.T) {
	p := PutPayload{Key: []byte("k"), Value: []byte("v"), Caps: []byte("tok")}
	got, err := DecodePutPayload(p.Encode())
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestAppendPayloadRoundTrip(t *testing.T) {
	p := AppendPayload{Value: []byte("entry")}
	got, err := DecodeAppendPayload(p.Encode())
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestScanPayloadRoundTrip(t *testing.T) {
	p := ScanPayload{
		Prefix:  []byte("pre"),
		Reverse: true,
		Range:   ScanRange{GTE: []byte("a"), LT: []byte("z")},
		Caps:    []byte("tok"),
	}
	got, err := DecodeScanPayload(p.Encode())
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestScanPayloadAllFieldsAbsent(t *testing.T) {
	p := ScanPayload{}
	got, err := DecodeScanPayload(p.Encode())
	require.NoError(t, err)
	require.False(t, got.Reverse)
	require.Nil(t, got.Prefix)
	require.Nil(t, got.Range.GTE)
	require.Nil(t, got.Caps)
}
