package memduplex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPairDeliversMessagesBothWays(t *testing.T) {
	a, b := Pair()
	defer a.Close()
	defer b.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, a.WriteMessage([]byte("ping")))
	}()
	msg, err := b.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, []byte("ping"), msg)
	<-done

	go func() {
		_ = b.WriteMessage([]byte("pong"))
	}()
	msg, err = a.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, []byte("pong"), msg)
}

func TestPairCloseEndsRead(t *testing.T) {
	a, b := Pair()
	require.NoError(t, a.Close())
	_, err := b.ReadMessage()
	require.Error(t, err)
}
