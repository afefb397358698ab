package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTripOK(t *testing.T) {
	e := OKEnvelope([]byte("value"), []byte("meta"))
	got, err := DecodeEnvelope(EncodeEnvelope(e))
	require.NoError(t, err)
	require.Equal(t, e, got)
}

func TestEnvelopeRoundTripOKNoMeta(t *testing.T) {
	e := OKEnvelope([]byte("value"), nil)
	got, err := DecodeEnvelope(EncodeEnvelope(e))
	require.NoError(t, err)
	require.True(t, got.OK)
	require.Nil(t, got.MetaKey)
	require.Equal(t, []byte("value"), got.Value)
}

func TestEnvelopeRoundTripFailure(t *testing.T) {
	e := Fail(CodeBadArg, "bad key")
	got, err := DecodeEnvelope(EncodeEnvelope(e))
	require.NoError(t, err)
	require.Equal(t, e, got)
}

func TestNormalizeCodeMapsUnknownStrings(t *testing.T) {
	require.Equal(t, CodeUnknown, NormalizeCode("NotARealCode"))
	require.Equal(t, CodeTimeout, NormalizeCode("Timeout"))
}

func TestFailNormalizesCode(t *testing.T) {
	e := Fail(ErrorCode("bogus"), "oops")
	require.Equal(t, CodeUnknown, e.Code)
}

func TestDecodeEnvelopeRejectsTruncatedInput(t *testing.T) {
	_, err := DecodeEnvelope(nil)
	require.Error(t, err)

	_, err = DecodeEnvelope([]byte{1, 0, 0, 0, 5})
	require.Error(t, err)
}
