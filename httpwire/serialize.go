package httpwire

import (
	"strconv"
	"strings"
)

// Serialize renders the request back to wire form. Connection is
// regenerated from the keep-alive flag, Content-Length from the body
// size, and Transfer-Encoding is dropped once the body was decoded.
// Every other field keeps its original casing, order and values, so
// repeated calls produce identical bytes.
func (r *Request) Serialize() []byte {
	return r.Append(nil)
}

// Append renders the request into dst and returns the extended slice.
// Callers that hold a scratch buffer pass it here to keep serialization
// off the heap.
func (r *Request) Append(dst []byte) []byte {
	dst = append(dst, r.RawMethod...)
	dst = append(dst, ' ')
	dst = append(dst, r.Target...)
	dst = append(dst, ' ')
	dst = append(dst, versionString(r.Version)...)
	dst = append(dst, "\r\n"...)
	dst = appendHeader(dst, r.Header, r.keepAlive, r.bodyDecoded, len(r.body), len(r.body) > 0)
	return append(dst, r.body...)
}

// Serialize renders the response status line, headers and body.
func (r *Response) Serialize() []byte {
	return r.Append(nil)
}

// Append renders the response into dst and returns the extended slice.
func (r *Response) Append(dst []byte) []byte {
	dst = append(dst, versionString(r.Version)...)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(r.StatusCode), 10)
	dst = append(dst, ' ')
	dst = append(dst, r.Reason...)
	dst = append(dst, "\r\n"...)
	dst = appendHeader(dst, r.Header, r.keepAlive, r.bodyDecoded, len(r.body), true)
	return append(dst, r.body...)
}

// appendHeader writes the field block plus the blank line. Connection
// and Content-Length are always regenerated; forceCL controls whether a
// missing Content-Length is synthesized for an empty body.
func appendHeader(dst []byte, h *Header, keepAlive, bodyDecoded bool, bodyLen int, forceCL bool) []byte {
	wroteConn := false
	wroteCL := false
	h.Range(func(f *Field) bool {
		switch strings.ToLower(f.Name) {
		case "connection":
			dst = appendField(dst, f.Name, connectionToken(keepAlive))
			wroteConn = true
		case "transfer-encoding":
			if !bodyDecoded {
				for _, v := range f.Values {
					dst = appendField(dst, f.Name, v)
				}
			}
		case "content-length":
			dst = appendField(dst, f.Name, strconv.Itoa(bodyLen))
			wroteCL = true
		default:
			for _, v := range f.Values {
				dst = appendField(dst, f.Name, v)
			}
		}
		return true
	})
	if !wroteConn {
		dst = appendField(dst, "Connection", connectionToken(keepAlive))
	}
	if !wroteCL && forceCL {
		dst = appendField(dst, "Content-Length", strconv.Itoa(bodyLen))
	}
	return append(dst, "\r\n"...)
}

func appendField(dst []byte, name, value string) []byte {
	dst = append(dst, name...)
	dst = append(dst, ": "...)
	dst = append(dst, value...)
	return append(dst, "\r\n"...)
}

func connectionToken(keepAlive bool) string {
	if keepAlive {
		return "keep-alive"
	}
	return "close"
}

func versionString(v int) string {
	if v == Version10 {
		return "HTTP/1.0"
	}
	return "HTTP/1.1"
}
