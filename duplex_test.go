package neonplex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zacharygriffee/neonplex/pkg/memduplex"
)

func newTestPeers(t *testing.T) (server, client *Peer) {
	t.Helper()
	a, b := memduplex.Pair()
	server, err := NewPeer(a, WithServerRole())
	require.NoError(t, err)
	client, err = NewPeer(b)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return server, client
}

func TestDuplexOpenFiresRemoteOpenBothSides(t *testing.T) {
	server, client := newTestPeers(t)
	id := ChannelID{Data: []byte("chan-1")}

	serverOpened := make(chan struct{})
	srvDuplex, err := server.ListenRPC(id)
	require.NoError(t, err)
	srvDuplex.OnRemoteOpen(func([]byte) { close(serverOpened) })

	cliDuplex, err := client.ConnectRPC(id)
	require.NoError(t, err)

	select {
	case <-serverOpened:
	case <-time.After(time.Second):
		t.Fatal("server side never observed remote-open")
	}
	require.Eventually(t, cliDuplex.IsConnected, time.Second, 5*time.Millisecond)
}

func TestDuplexWriteBeforeOpenIsBufferedThenFlushed(t *testing.T) {
	server, client := newTestPeers(t)
	id := ChannelID{Data: []byte("chan-2")}

	received := make(chan []byte, 1)
	srvDuplex, err := server.ListenRPC(id)
	require.NoError(t, err)
	srvDuplex.OnMessage(func(p []byte) { received <- p })

	cliDuplex, err := client.ConnectRPC(id)
	require.NoError(t, err)
	require.NoError(t, cliDuplex.Write([]byte("queued")))

	select {
	case msg := <-received:
		require.Equal(t, []byte("queued"), msg)
	case <-time.After(time.Second):
		t.Fatal("buffered write was never delivered")
	}
}

func TestDuplexCloseFiresCloseBeforeDestroyOnBothSides(t *testing.T) {
	server, client := newTestPeers(t)
	id := ChannelID{Data: []byte("chan-3")}

	var order []string
	srvDuplex, err := server.ListenRPC(id)
	require.NoError(t, err)
	srvDuplex.OnChannelClose(func() { order = append(order, "close") })
	srvDuplex.OnChannelDestroy(func(error) { order = append(order, "destroy") })

	cliDuplex, err := client.ConnectRPC(id)
	require.NoError(t, err)
	require.Eventually(t, cliDuplex.IsConnected, time.Second, 5*time.Millisecond)

	require.NoError(t, cliDuplex.Close())
	require.Eventually(t, func() bool { return len(order) == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"close", "destroy"}, order)
}

func TestDuplexWriteAfterDestroyIsSilentlyDropped(t *testing.T) {
	server, client := newTestPeers(t)
	id := ChannelID{Data: []byte("chan-4")}

	_, err := server.ListenRPC(id)
	require.NoError(t, err)
	cliDuplex, err := client.ConnectRPC(id)
	require.NoError(t, err)
	require.Eventually(t, cliDuplex.IsConnected, time.Second, 5*time.Millisecond)

	cliDuplex.Destroy(nil)
	require.NoError(t, cliDuplex.Write([]byte("too late")))
}
