package lenframe

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFramerRoundTripsMessages(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	a := Wrap(c1)
	b := Wrap(c2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, a.WriteMessage([]byte("hello")))
		require.NoError(t, a.WriteMessage([]byte{}))
		require.NoError(t, a.WriteMessage([]byte("world")))
	}()

	msg, err := b.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), msg)

	msg, err = b.ReadMessage()
	require.NoError(t, err)
	require.Empty(t, msg)

	msg, err = b.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, []byte("world"), msg)

	<-done
}

func TestFramerRejectsOversizedWrite(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	a := WrapSize(c1, 4)
	err := a.WriteMessage([]byte("toolong"))
	require.Error(t, err)
}

func TestFramerRejectsOversizedReadHeader(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	small := WrapSize(c2, 4)
	go func() {
		_ = Wrap(c1).WriteMessage([]byte("this message is too big"))
	}()

	time.Sleep(10 * time.Millisecond)
	_, err := small.ReadMessage()
	require.Error(t, err)
}

func TestFramerCloseClosesUnderlying(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c2.Close()

	f := Wrap(c1)
	require.NoError(t, f.Close())

	_, err := c1.Read(make([]byte, 1))
	require.Error(t, err)
}
