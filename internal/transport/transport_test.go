package transport

import (
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendReceive(t *testing.T) {
	ln, port, err := Listen(0, true)
	require.NoError(t, err)

	frames := make(chan []byte, 1)
	srv := NewServer(ln, func(payload []byte) { frames <- payload })
	go srv.Serve()
	defer srv.Close()

	msg := map[string]any{"type": "greet", "originPort": 4242}
	require.NoError(t, Send(fmt.Sprintf("127.0.0.1:%d", port), msg))

	select {
	case payload := <-frames:
		var got map[string]any
		require.NoError(t, json.Unmarshal(payload, &got))
		assert.Equal(t, "greet", got["type"])
		assert.Equal(t, float64(4242), got["originPort"])
	case <-time.After(5 * time.Second):
		t.Fatal("frame never arrived")
	}
}

func TestSendToDeadPeerFails(t *testing.T) {
	// Grab a port and release it so nothing listens there.
	ln, port, err := Listen(0, true)
	require.NoError(t, err)
	ln.Close()

	err = Send(fmt.Sprintf("127.0.0.1:%d", port), map[string]string{"type": "greet"})
	assert.Error(t, err)
}

func TestListenFallback(t *testing.T) {
	ln, port, err := Listen(0, true)
	require.NoError(t, err)
	defer ln.Close()

	t.Run("occupied port falls back when allowed", func(t *testing.T) {
		ln2, port2, err := Listen(port, true)
		require.NoError(t, err)
		defer ln2.Close()
		assert.NotEqual(t, port, port2)
	})

	t.Run("occupied port is fatal when fixed", func(t *testing.T) {
		_, _, err := Listen(port, false)
		assert.Error(t, err)
	})
}

func TestServerClose(t *testing.T) {
	ln, _, err := Listen(0, true)
	require.NoError(t, err)

	srv := NewServer(ln, func([]byte) {})
	done := make(chan struct{})
	go func() {
		srv.Serve()
		close(done)
	}()

	require.NoError(t, srv.Close())
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("accept loop did not stop")
	}
}

func TestEmptyFrameIsIgnored(t *testing.T) {
	ln, port, err := Listen(0, true)
	require.NoError(t, err)

	frames := make(chan []byte, 1)
	srv := NewServer(ln, func(payload []byte) { frames <- payload })
	go srv.Serve()
	defer srv.Close()

	// A connection that closes without writing must not reach the
	// handler.
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	conn.Close()

	select {
	case <-frames:
		t.Fatal("empty frame was dispatched")
	case <-time.After(200 * time.Millisecond):
	}
}
