package httpwire

// Response is one HTTP response built for serialization; this package
// has no response parser. Only the pieces the proxy needs are modeled;
// the body is held fully in memory like requests.
type Response struct {
	Version    int
	StatusCode int
	Reason     string
	Header     *Header

	body        []byte
	keepAlive   bool
	bodyDecoded bool
}

func NewResponse(code int, reason string) *Response {
	return &Response{
		Version:    Version11,
		StatusCode: code,
		Reason:     reason,
		Header:     NewHeader(),
		keepAlive:  true,
	}
}

func (r *Response) Body() []byte {
	return r.body
}

func (r *Response) SetBody(b []byte) {
	r.body = b
	r.bodyDecoded = true
}

func (r *Response) KeepAlive() bool {
	return r.keepAlive
}

func (r *Response) SetKeepAlive(v bool) {
	r.keepAlive = v
}
