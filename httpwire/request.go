package httpwire

import "strings"

// Version constants for the two supported HTTP versions.
const (
	Version10 = 10
	Version11 = 11
)

// Request is one parsed HTTP request. Header mutation and serialization
// follow the forwarding rules: Connection is regenerated from the
// keep-alive flag, Content-Length tracks the in-memory body, and
// Transfer-Encoding is dropped once the body has been fully decoded.
type Request struct {
	Method    Method
	RawMethod string
	Target    string
	Version   int
	Header    *Header

	body        []byte
	keepAlive   bool
	bodyDecoded bool
}

func NewRequest(method Method, target string) *Request {
	return &Request{
		Method:    method,
		RawMethod: method.String(),
		Target:    target,
		Version:   Version11,
		Header:    NewHeader(),
		keepAlive: true,
	}
}

// Body returns the decoded body bytes.
func (r *Request) Body() []byte {
	return r.body
}

// SetBody replaces the body. Content-Length is regenerated from the new
// size at serialization time.
func (r *Request) SetBody(b []byte) {
	r.body = b
	r.bodyDecoded = true
}

// KeepAlive reports the keep-alive flag derived from headers and version.
func (r *Request) KeepAlive() bool {
	return r.keepAlive
}

// SetKeepAlive overrides the derived keep-alive flag.
func (r *Request) SetKeepAlive(v bool) {
	r.keepAlive = v
}

// deriveKeepAlive computes the flag from the Connection header and version:
// HTTP/1.1 defaults to keep-alive unless "close"; HTTP/1.0 defaults to
// close unless "keep-alive".
func (r *Request) deriveKeepAlive() {
	conn, ok := r.Header.Get("Connection")
	if ok {
		for _, tok := range strings.Split(conn, ",") {
			switch strings.ToLower(strings.TrimSpace(tok)) {
			case "close":
				r.keepAlive = false
				return
			case "keep-alive":
				r.keepAlive = true
				return
			}
		}
	}
	r.keepAlive = r.Version == Version11
}
