// Package analyzer turns an HTTP request or a raw authority string into
// a routing target: where to connect and whether the request is a
// forward-proxy request.
package analyzer

import (
	"strings"

	"github.com/ngx-proxy/forward-engine/constant"
	"github.com/ngx-proxy/forward-engine/httpwire"
)

// AnalyzeRequest decides forward-vs-reverse for one parsed request and
// extracts the destination host and port.
//
// CONNECT targets and absolute-form URIs mark a forward proxy request;
// origin-form targets fall back to the Host header and mark reverse.
func AnalyzeRequest(req *httpwire.Request) constant.Target {
	if req.Method == httpwire.MethodConnect {
		host, port := splitAuthority(req.Target, "443")
		return constant.Target{Host: host, Port: port, ForwardProxy: true}
	}
	if rest, ok := strings.CutPrefix(req.Target, "http://"); ok {
		return absoluteForm(rest, "80")
	}
	if rest, ok := strings.CutPrefix(req.Target, "https://"); ok {
		return absoluteForm(rest, "443")
	}
	hostHeader, _ := req.Header.Get("Host")
	host, port := splitAuthority(hostHeader, "80")
	return constant.Target{Host: host, Port: port, ForwardProxy: false}
}

// AnalyzeAuthority parses a raw "host[:port]" string as a forward target
// with port defaulting to 80.
func AnalyzeAuthority(authority string) constant.Target {
	host, port := splitAuthority(authority, "80")
	return constant.Target{Host: host, Port: port, ForwardProxy: true}
}

func absoluteForm(rest, defaultPort string) constant.Target {
	authority := rest
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		authority = rest[:i]
	}
	host, port := splitAuthority(authority, defaultPort)
	return constant.Target{Host: host, Port: port, ForwardProxy: true}
}

// splitAuthority splits on the first colon. No trimming and no URL
// decoding happens here; an empty port after the colon means default.
func splitAuthority(authority, defaultPort string) (string, string) {
	host, port, ok := strings.Cut(authority, ":")
	if !ok || port == "" {
		return host, defaultPort
	}
	return host, port
}
