package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRequest(t *testing.T) {
	raw := EncodeRequest(42, MethodPut, []byte("payload"))
	f, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, FrameRequest, f.Type)
	require.Equal(t, uint32(42), f.RID)
	require.Equal(t, MethodPut, f.Method)
	require.False(t, f.More)
	require.Equal(t, []byte("payload"), f.Payload)
}

func TestEncodeDecodeResponseMore(t *testing.T) {
	raw := EncodeResponse(7, MethodScan, true, []byte("row"))
	f, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, FrameResponse, f.Type)
	require.True(t, f.More)
	require.Equal(t, []byte("row"), f.Payload)
}

func TestEncodeDecodeResponseTerminalEmpty(t *testing.T) {
	raw := EncodeResponse(7, MethodScan, false, nil)
	f, err := Decode(raw)
	require.NoError(t, err)
	require.False(t, f.More)
	require.Empty(t, f.Payload)
}

func TestEncodeDecodeCancelHasNoPayload(t *testing.T) {
	raw := EncodeCancel(9, MethodGet)
	f, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, FrameCancel, f.Type)
	require.Equal(t, uint32(9), f.RID)
	require.Empty(t, f.Payload)
}

func TestDecodeRejectsTruncatedFrame(t *testing.T) {
	_, err := Decode([]byte{0, 0, 0})
	require.Error(t, err)
}

func TestMethodIDString(t *testing.T) {
	require.Equal(t, "get", MethodGet.String())
	require.Equal(t, "scan", MethodScan.String())
}
