package httpwire

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/ngx-proxy/forward-engine/common/errs"
)

const (
	// MaxHeaderBytes bounds the request line plus all header lines.
	MaxHeaderBytes = 16 * 1024
	// MaxBodyBytes bounds an in-memory decoded body.
	MaxBodyBytes = 10 * 1024 * 1024
)

// ReadRequest parses one request from br. The head is bounded by
// MaxHeaderBytes and the body, whether sized or chunked, is decoded fully
// into memory bounded by MaxBodyBytes. CONNECT requests carry no body.
func ReadRequest(br *bufio.Reader) (*Request, error) {
	line, n, err := readLine(br, MaxHeaderBytes)
	if err != nil {
		return nil, err
	}
	req, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	budget := MaxHeaderBytes - n
	for {
		line, n, err = readLine(br, budget)
		if err != nil {
			return nil, err
		}
		budget -= n
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, errs.Protocol("malformed header line %q", line)
		}
		if name == "" || name != strings.TrimRight(name, " \t") {
			return nil, errs.Protocol("malformed header name %q", name)
		}
		if !httpguts.ValidHeaderFieldName(name) {
			return nil, errs.Protocol("invalid header name %q", name)
		}
		value = strings.Trim(value, " \t")
		if !httpguts.ValidHeaderFieldValue(value) {
			return nil, errs.Protocol("invalid value for header %q", name)
		}
		req.Header.Add(name, value)
	}

	req.deriveKeepAlive()

	if req.Method == MethodConnect {
		return req, nil
	}
	if err := readBody(br, req); err != nil {
		return nil, err
	}
	return req, nil
}

func parseRequestLine(line string) (*Request, error) {
	method, rest, ok := strings.Cut(line, " ")
	if !ok {
		return nil, errs.Protocol("malformed request line %q", line)
	}
	target, proto, ok := strings.Cut(rest, " ")
	if !ok || method == "" || target == "" {
		return nil, errs.Protocol("malformed request line %q", line)
	}
	version, err := parseVersion(proto)
	if err != nil {
		return nil, err
	}
	return &Request{
		Method:    ParseMethod(method),
		RawMethod: method,
		Target:    target,
		Version:   version,
		Header:    NewHeader(),
	}, nil
}

func parseVersion(proto string) (int, error) {
	switch proto {
	case "HTTP/1.1":
		return Version11, nil
	case "HTTP/1.0":
		return Version10, nil
	}
	return 0, errs.Protocol("unsupported protocol version %q", proto)
}

// readBody consumes the message body per Transfer-Encoding and
// Content-Length, decoding chunked framing into a flat byte slice.
func readBody(br *bufio.Reader, req *Request) error {
	if te, ok := req.Header.Get("Transfer-Encoding"); ok {
		if !strings.EqualFold(strings.TrimSpace(te), "chunked") {
			return errs.Protocol("unsupported transfer encoding %q", te)
		}
		body, err := readChunked(br)
		if err != nil {
			return err
		}
		req.body = body
		req.bodyDecoded = true
		return nil
	}

	cl, ok := req.Header.Get("Content-Length")
	if !ok {
		return nil
	}
	size, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
	if err != nil || size < 0 {
		return errs.Protocol("bad content length %q", cl)
	}
	if size > MaxBodyBytes {
		return errs.Protocol("body of %d bytes exceeds limit", size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(br, body); err != nil {
		return errs.Network("short body read: %v", err)
	}
	req.body = body
	req.bodyDecoded = true
	return nil
}

func readChunked(br *bufio.Reader) ([]byte, error) {
	var body []byte
	for {
		line, _, err := readLine(br, MaxHeaderBytes)
		if err != nil {
			return nil, err
		}
		// Chunk extensions after ";" are ignored.
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		size, err := strconv.ParseUint(strings.TrimSpace(line), 16, 63)
		if err != nil {
			return nil, errs.Protocol("bad chunk size %q", line)
		}
		if size == 0 {
			break
		}
		if uint64(len(body))+size > MaxBodyBytes {
			return nil, errs.Protocol("chunked body exceeds limit")
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(br, chunk); err != nil {
			return nil, errs.Network("short chunk read: %v", err)
		}
		body = append(body, chunk...)
		if err := expectCRLF(br); err != nil {
			return nil, err
		}
	}
	// Trailers are read and dropped up to the final blank line.
	for {
		line, _, err := readLine(br, MaxHeaderBytes)
		if err != nil {
			return nil, err
		}
		if line == "" {
			return body, nil
		}
	}
}

func expectCRLF(br *bufio.Reader) error {
	var b [2]byte
	if _, err := io.ReadFull(br, b[:]); err != nil {
		return errs.Network("short chunk read: %v", err)
	}
	if b[0] != '\r' || b[1] != '\n' {
		return errs.Protocol("missing chunk terminator")
	}
	return nil
}

// readLine reads one CRLF-terminated line, returning it without the
// terminator plus the number of raw bytes consumed.
func readLine(br *bufio.Reader, limit int) (string, int, error) {
	var sb strings.Builder
	consumed := 0
	for {
		frag, err := br.ReadSlice('\n')
		consumed += len(frag)
		if consumed > limit {
			return "", consumed, errs.Protocol("header block exceeds %d bytes", MaxHeaderBytes)
		}
		sb.Write(frag)
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return "", consumed, errs.Network("read head: %v", err)
	}
	line := sb.String()
	if !strings.HasSuffix(line, "\r\n") {
		return "", consumed, errs.Protocol("bare LF in header block")
	}
	return strings.TrimSuffix(line, "\r\n"), consumed, nil
}
