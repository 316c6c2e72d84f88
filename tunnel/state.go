package tunnel

import (
	"errors"
	"strings"
)

type SessionState int32

// SessionStateMapping is a mapping for SessionState enum
var SessionStateMapping = map[string]SessionState{
	Init.String():    Init,
	Peek.String():    Peek,
	HTTP.String():    HTTP,
	Obscura.String(): Obscura,
	Tunnel.String():  Tunnel,
	Closed.String():  Closed,
}

// Session states form a straight line: Init, Peek, one of HTTP or
// Obscura, Tunnel, Closed. There is no back-edge; Closed is terminal.
const (
	Init SessionState = iota
	Peek
	HTTP
	Obscura
	Tunnel
	Closed
)

// UnmarshalText unserialize SessionState
func (s *SessionState) UnmarshalText(data []byte) error {
	state, exist := SessionStateMapping[strings.ToLower(string(data))]
	if !exist {
		return errors.New("invalid state")
	}
	*s = state
	return nil
}

// MarshalText serialize SessionState
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s SessionState) String() string {
	switch s {
	case Init:
		return "init"
	case Peek:
		return "peek"
	case HTTP:
		return "http"
	case Obscura:
		return "obscura"
	case Tunnel:
		return "tunnel"
	case Closed:
		return "closed"
	default:
		return "Unknown"
	}
}
