package ws

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-msgseq/transport"
)

func newTestListener(t *testing.T, opts ...Option) *Listener {
	t.Helper()

	l, err := NewListener("127.0.0.1:0", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	return l
}

func acceptConn(t *testing.T, l *Listener) transport.Adapter {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, err := l.Accept(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func recvText(t *testing.T, conn transport.Adapter) string {
	t.Helper()

	select {
	case text, ok := <-conn.Receive():
		require.True(t, ok, "receive channel closed")
		return text
	case <-time.After(3 * time.Second):
		t.Fatal("no message received within 3s")
		return ""
	}
}

func waitDone(t *testing.T, conn transport.Adapter) {
	t.Helper()

	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("connection %s not closed within 5s, state: %s", conn.ID(), conn.State())
	}
}

func TestDialAndExchange(t *testing.T) {
	require := require.New(t)

	l := newTestListener(t)
	client, err := Dial(context.Background(), l.URL())
	require.NoError(err)
	defer client.Close()

	server := acceptConn(t, l)
	require.Equal(transport.Open, server.State())

	<-client.Opened()
	require.Equal(transport.Open, client.State())
	require.NotNil(client.RemoteAddr())

	for _, text := range []string{"hello", "still here?", "you can leave now"} {
		require.NoError(server.Send(text))
	}
	require.Equal("hello", recvText(t, client))
	require.Equal("still here?", recvText(t, client))
	require.Equal("you can leave now", recvText(t, client))

	require.NoError(client.Send("pong"))
	require.Equal("pong", recvText(t, server))
}

func TestHTTPSchemeIsMapped(t *testing.T) {
	require := require.New(t)

	l := newTestListener(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client, err := DialAndWait(ctx, "http://"+l.Addr().String()+"/any/path")
	require.NoError(err)
	defer client.Close()

	acceptConn(t, l)
	require.Equal(transport.Open, client.State())
}

func TestInvalidURL(t *testing.T) {
	require := require.New(t)

	_, err := Dial(context.Background(), "ftp://localhost:8080")
	require.ErrorIs(err, ErrUnsupportedScheme)

	_, err = Dial(context.Background(), "ws://")
	require.Error(err)
}

func TestDialFailure(t *testing.T) {
	require := require.New(t)

	// grab a free port and release it so nothing listens there
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	addr := ln.Addr().String()
	require.NoError(ln.Close())

	client, err := Dial(context.Background(), "ws://"+addr, WithHandshakeTimeout(time.Second))
	require.NoError(err)

	waitDone(t, client)
	<-client.Opened()
	require.Equal(transport.Closed, client.State())
	_, ok := <-client.Receive()
	require.False(ok)

	// sending on a failed connection is a no-op
	require.NoError(client.Send("lost"))
	require.NoError(client.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err = DialAndWait(ctx, "ws://"+addr)
	require.ErrorIs(err, transport.ErrConnClosed)
}

func TestCloseHandshake(t *testing.T) {
	t.Run("Client closes", func(t *testing.T) {
		require := require.New(t)

		l := newTestListener(t)
		client, err := Dial(context.Background(), l.URL())
		require.NoError(err)
		server := acceptConn(t, l)
		<-client.Opened()

		require.NoError(client.Close())
		require.NoError(client.Close())
		require.Equal(transport.Closed, client.State())

		waitDone(t, server)
		_, ok := <-server.Receive()
		require.False(ok)
		require.NoError(server.Send("after close"))
	})

	t.Run("Server closes", func(t *testing.T) {
		require := require.New(t)

		l := newTestListener(t)
		client, err := Dial(context.Background(), l.URL())
		require.NoError(err)
		server := acceptConn(t, l)
		<-client.Opened()

		require.NoError(server.Send("bye"))
		require.NoError(server.Close())

		waitDone(t, client)
		// a message sent before the close frame is still delivered
		require.Equal("bye", recvText(t, client))
		_, ok := <-client.Receive()
		require.False(ok)
	})

	t.Run("Close while connecting", func(t *testing.T) {
		require := require.New(t)

		l := newTestListener(t)
		client, err := Dial(context.Background(), l.URL())
		require.NoError(err)

		require.NoError(client.Close())
		require.Equal(transport.Closed, client.State())
	})
}

func TestNonTextFramesAreIgnored(t *testing.T) {
	require := require.New(t)

	l := newTestListener(t)
	raw, resp, err := websocket.DefaultDialer.Dial(l.URL(), nil)
	require.NoError(err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer raw.Close()

	server := acceptConn(t, l)

	require.NoError(raw.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))
	require.NoError(raw.WriteMessage(websocket.TextMessage, []byte("text")))
	require.Equal("text", recvText(t, server))
}

func TestListenerClose(t *testing.T) {
	require := require.New(t)

	l := newTestListener(t)
	require.NoError(l.Close())
	require.NoError(l.Close())

	_, err := l.Accept(context.Background())
	require.ErrorIs(err, transport.ErrListenerClosed)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	l2 := newTestListener(t)
	_, err = l2.Accept(ctx)
	require.ErrorIs(err, context.DeadlineExceeded)
}

func TestOptions(t *testing.T) {
	require := require.New(t)

	_, err := newConfig(WithHandshakeTimeout(time.Millisecond))
	require.ErrorContains(err, "WithHandshakeTimeout")
	_, err = newConfig(WithWriteTimeout(2 * time.Minute))
	require.Error(err)
	_, err = newConfig(WithCloseTimeout(time.Minute))
	require.Error(err)
	_, err = newConfig(WithReadLimit(0))
	require.Error(err)
	_, err = newConfig(WithRecvBufferSize(-1))
	require.Error(err)
	_, err = newConfig(WithLogger(nil))
	require.Error(err)

	cfg, err := newConfig(WithCloseTimeout(50*time.Millisecond), WithRecvBufferSize(2), WithReadLimit(64))
	require.NoError(err)
	require.Equal(50*time.Millisecond, cfg.closeTimeout)
	require.Equal(2, cfg.recvBufferSize)
	require.Equal(int64(64), cfg.readLimit)
}
