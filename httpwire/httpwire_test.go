package httpwire

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngx-proxy/forward-engine/common/errs"
)

func parse(t *testing.T, raw string) *Request {
	t.Helper()
	req, err := ReadRequest(bufio.NewReader(strings.NewReader(raw)))
	require.NoError(t, err)
	return req
}

func TestReadRequestBasic(t *testing.T) {
	req := parse(t, "GET http://example.com/index.html HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n")
	assert.Equal(t, MethodGet, req.Method)
	assert.Equal(t, "GET", req.RawMethod)
	assert.Equal(t, "http://example.com/index.html", req.Target)
	assert.Equal(t, Version11, req.Version)
	host, ok := req.Header.Get("host")
	assert.True(t, ok)
	assert.Equal(t, "example.com", host)
	assert.True(t, req.KeepAlive())
	assert.Nil(t, req.Body())
}

func TestReadRequestUnknownMethod(t *testing.T) {
	req := parse(t, "PURGE /cache HTTP/1.1\r\nHost: example.com\r\n\r\n")
	assert.Equal(t, MethodUnknown, req.Method)
	assert.Equal(t, "PURGE", req.RawMethod)
	assert.True(t, strings.HasPrefix(string(req.Serialize()), "PURGE /cache HTTP/1.1\r\n"))
}

func TestReadRequestContentLength(t *testing.T) {
	req := parse(t, "POST /submit HTTP/1.1\r\nHost: a\r\nContent-Length: 5\r\n\r\nhello")
	assert.Equal(t, []byte("hello"), req.Body())
}

func TestReadRequestChunked(t *testing.T) {
	raw := "POST /up HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"
	req := parse(t, raw)
	assert.Equal(t, []byte("Wikipedia"), req.Body())

	// The decoded body serializes with Content-Length, not chunked framing.
	out := string(req.Serialize())
	assert.NotContains(t, strings.ToLower(out), "transfer-encoding")
	assert.Contains(t, out, "Content-Length: 9\r\n")
	assert.True(t, strings.HasSuffix(out, "\r\n\r\nWikipedia"))
}

func TestReadRequestChunkedTrailers(t *testing.T) {
	raw := "POST /up HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"3\r\nabc\r\n0\r\nExpires: never\r\n\r\n"
	req := parse(t, raw)
	assert.Equal(t, []byte("abc"), req.Body())
}

func TestReadRequestConnectSkipsBody(t *testing.T) {
	req := parse(t, "CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\nContent-Length: 5\r\n\r\n")
	assert.Equal(t, MethodConnect, req.Method)
	assert.Nil(t, req.Body())
}

func TestReadRequestKeepAliveDerivation(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"GET / HTTP/1.1\r\nHost: a\r\n\r\n", true},
		{"GET / HTTP/1.1\r\nHost: a\r\nConnection: close\r\n\r\n", false},
		{"GET / HTTP/1.0\r\nHost: a\r\n\r\n", false},
		{"GET / HTTP/1.0\r\nHost: a\r\nConnection: keep-alive\r\n\r\n", true},
		{"GET / HTTP/1.1\r\nHost: a\r\nConnection: Upgrade, Close\r\n\r\n", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, parse(t, c.raw).KeepAlive(), c.raw)
	}
}

func TestReadRequestMalformed(t *testing.T) {
	for _, raw := range []string{
		"GET /\r\n\r\n",
		"GET / HTTP/2.0\r\n\r\n",
		"GET / HTTP/1.1\r\nNoColonHere\r\n\r\n",
		"GET / HTTP/1.1\r\nBad Name: x\r\n\r\n",
		"GET / HTTP/1.1\nHost: a\n\n",
		"POST / HTTP/1.1\r\nContent-Length: nope\r\n\r\n",
		"POST / HTTP/1.1\r\nTransfer-Encoding: gzip\r\n\r\n",
	} {
		_, err := ReadRequest(bufio.NewReader(strings.NewReader(raw)))
		require.Error(t, err, raw)
		assert.True(t, errs.IsKind(err, errs.KindProtocol), raw)
	}
}

func TestReadRequestHeaderLimit(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nPadding: " + strings.Repeat("x", MaxHeaderBytes) + "\r\n\r\n"
	_, err := ReadRequest(bufio.NewReader(strings.NewReader(raw)))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindProtocol))
}

func TestReadRequestBodyLimit(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 10485761\r\n\r\n"
	_, err := ReadRequest(bufio.NewReader(strings.NewReader(raw)))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindProtocol))
}

func TestSerializePreservesOrderAndCasing(t *testing.T) {
	req := parse(t, "GET / HTTP/1.1\r\nX-First: 1\r\nhOsT: a\r\nX-Last: 2\r\n\r\n")
	out := string(req.Serialize())
	first := strings.Index(out, "X-First: 1")
	host := strings.Index(out, "hOsT: a")
	last := strings.Index(out, "X-Last: 2")
	require.True(t, first > 0 && host > first && last > host, out)
}

func TestSerializeConnectionRegenerated(t *testing.T) {
	req := parse(t, "GET / HTTP/1.1\r\nHost: a\r\nConnection: Keep-Alive\r\n\r\n")
	req.SetKeepAlive(false)
	assert.Contains(t, string(req.Serialize()), "Connection: close\r\n")

	// No Connection header on the wire still yields one on output.
	req = parse(t, "GET / HTTP/1.1\r\nHost: a\r\n\r\n")
	assert.Contains(t, string(req.Serialize()), "Connection: keep-alive\r\n")
}

func TestSerializeContentLengthTracksBody(t *testing.T) {
	req := parse(t, "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 5\r\n\r\nhello")
	req.SetBody([]byte("longer body"))
	out := string(req.Serialize())
	assert.Contains(t, out, "Content-Length: 11\r\n")
	assert.True(t, strings.HasSuffix(out, "longer body"))
}

func TestSerializeDeterministic(t *testing.T) {
	req := parse(t, "POST /x HTTP/1.1\r\nHost: a\r\nAccept: */*\r\nContent-Length: 3\r\n\r\nabc")
	assert.Equal(t, req.Serialize(), req.Serialize())
}

func TestAppendUsesProvidedBuffer(t *testing.T) {
	req := parse(t, "GET /y HTTP/1.1\r\nHost: b\r\n\r\n")
	scratch := make([]byte, 0, 4096)
	out := req.Append(scratch)
	assert.Equal(t, req.Serialize(), out)
	assert.Equal(t, cap(scratch), cap(out), "small request must fit the scratch buffer")
}

func TestResponseSerialize(t *testing.T) {
	resp := NewResponse(502, "Bad Gateway")
	resp.Header.Set("Content-Type", "text/plain")
	resp.SetBody([]byte("upstream unreachable"))
	resp.SetKeepAlive(false)
	out := string(resp.Serialize())
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 502 Bad Gateway\r\n"))
	assert.Contains(t, out, "Connection: close\r\n")
	assert.Contains(t, out, "Content-Length: 20\r\n")
	assert.True(t, strings.HasSuffix(out, "upstream unreachable"))
}

func TestHeaderCaseInsensitive(t *testing.T) {
	h := NewHeader()
	h.Add("X-Token", "a")
	h.Add("x-token", "b")
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, []string{"a", "b"}, h.Values("X-TOKEN"))
	v, ok := h.Get("x-Token")
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	h.Del("X-TOKEN")
	assert.False(t, h.Has("x-token"))
}
