package analyzer

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngx-proxy/forward-engine/constant"
	"github.com/ngx-proxy/forward-engine/httpwire"
)

func request(t *testing.T, raw string) *httpwire.Request {
	t.Helper()
	req, err := httpwire.ReadRequest(bufio.NewReader(strings.NewReader(raw)))
	require.NoError(t, err)
	return req
}

func TestAnalyzeConnect(t *testing.T) {
	req := request(t, "CONNECT example.com:8443 HTTP/1.1\r\nHost: example.com:8443\r\n\r\n")
	assert.Equal(t, constant.Target{Host: "example.com", Port: "8443", ForwardProxy: true}, AnalyzeRequest(req))

	req = request(t, "CONNECT example.com HTTP/1.1\r\nHost: example.com\r\n\r\n")
	assert.Equal(t, constant.Target{Host: "example.com", Port: "443", ForwardProxy: true}, AnalyzeRequest(req))
}

func TestAnalyzeAbsoluteForm(t *testing.T) {
	req := request(t, "GET http://example.internal:8080/x HTTP/1.1\r\nHost: anything\r\n\r\n")
	assert.Equal(t, constant.Target{Host: "example.internal", Port: "8080", ForwardProxy: true}, AnalyzeRequest(req))

	req = request(t, "GET http://example.com/ HTTP/1.1\r\nHost: anything\r\n\r\n")
	assert.Equal(t, constant.Target{Host: "example.com", Port: "80", ForwardProxy: true}, AnalyzeRequest(req))

	req = request(t, "GET https://secure.example.com/path?q=1 HTTP/1.1\r\nHost: anything\r\n\r\n")
	assert.Equal(t, constant.Target{Host: "secure.example.com", Port: "443", ForwardProxy: true}, AnalyzeRequest(req))
}

func TestAnalyzeOriginForm(t *testing.T) {
	req := request(t, "GET /p HTTP/1.1\r\nHost: svc1\r\n\r\n")
	assert.Equal(t, constant.Target{Host: "svc1", Port: "80", ForwardProxy: false}, AnalyzeRequest(req))

	req = request(t, "GET /p HTTP/1.1\r\nHost: svc1:9000\r\n\r\n")
	assert.Equal(t, constant.Target{Host: "svc1", Port: "9000", ForwardProxy: false}, AnalyzeRequest(req))
}

func TestAnalyzeAuthority(t *testing.T) {
	assert.Equal(t, constant.Target{Host: "10.0.0.5", Port: "9000", ForwardProxy: true}, AnalyzeAuthority("10.0.0.5:9000"))
	assert.Equal(t, constant.Target{Host: "10.0.0.5", Port: "80", ForwardProxy: true}, AnalyzeAuthority("10.0.0.5"))
	assert.Equal(t, constant.Target{Host: "h", Port: "80", ForwardProxy: true}, AnalyzeAuthority("h:"))
}
