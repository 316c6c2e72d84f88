package tunnel

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngx-proxy/forward-engine/common/arena"
	"github.com/ngx-proxy/forward-engine/common/errs"
)

func TestCopyHalfUntilEOF(t *testing.T) {
	var sink bytes.Buffer
	err := copyHalf(&sink, strings.NewReader("payload"), make([]byte, 3))
	require.NoError(t, err)
	assert.Equal(t, "payload", sink.String())
}

func TestCopyHalfGracefulReadError(t *testing.T) {
	var sink bytes.Buffer
	err := copyHalf(&sink, io.MultiReader(strings.NewReader("x"), errReader{net.ErrClosed}), make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, "x", sink.String())
}

func TestCopyHalfRealReadError(t *testing.T) {
	var sink bytes.Buffer
	err := copyHalf(&sink, errReader{errors.New("boom")}, make([]byte, 8))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNetwork))
	assert.Contains(t, err.Error(), "read failed")
}

func TestCopyHalfWriteError(t *testing.T) {
	err := copyHalf(errWriter{errors.New("disk full")}, strings.NewReader("data"), make([]byte, 8))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNetwork))
	assert.Contains(t, err.Error(), "write failed")
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

type errWriter struct{ err error }

func (w errWriter) Write([]byte) (int, error) { return 0, w.err }

func tcpPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	ch := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			ch <- conn
		}
	}()
	a, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	b := <-ch
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

// relay must collapse both directions as soon as one side closes.
func TestRelayCrossCancellation(t *testing.T) {
	clientOuter, clientInner := tcpPair(t)
	upstreamInner, upstreamOuter := tcpPair(t)

	done := make(chan error, 1)
	go func() {
		done <- relay(clientInner, upstreamInner, arena.New(4096))
	}()

	_, err := clientOuter.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(upstreamOuter, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	// Close one end; the relay must finish and close the other.
	require.NoError(t, upstreamOuter.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("relay did not collapse")
	}

	require.NoError(t, clientOuter.SetReadDeadline(time.Now().Add(time.Second)))
	n, err := clientOuter.Read(buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestRelayBidirectional(t *testing.T) {
	clientOuter, clientInner := tcpPair(t)
	upstreamInner, upstreamOuter := tcpPair(t)

	done := make(chan error, 1)
	go func() {
		done <- relay(clientInner, upstreamInner, arena.New(4096))
	}()

	_, err := clientOuter.Write([]byte("to-upstream"))
	require.NoError(t, err)
	buf := make([]byte, 11)
	_, err = io.ReadFull(upstreamOuter, buf)
	require.NoError(t, err)
	assert.Equal(t, "to-upstream", string(buf))

	_, err = upstreamOuter.Write([]byte("to-client"))
	require.NoError(t, err)
	buf = buf[:9]
	_, err = io.ReadFull(clientOuter, buf)
	require.NoError(t, err)
	assert.Equal(t, "to-client", string(buf))

	require.NoError(t, clientOuter.Close())
	select {
	case <-done:
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("relay did not finish")
	}
}

func TestSessionStateStrings(t *testing.T) {
	for state, want := range map[SessionState]string{
		Init: "init", Peek: "peek", HTTP: "http",
		Obscura: "obscura", Tunnel: "tunnel", Closed: "closed",
	} {
		assert.Equal(t, want, state.String())
		var parsed SessionState
		require.NoError(t, parsed.UnmarshalText([]byte(want)))
		assert.Equal(t, state, parsed)
	}
}
