package protocol

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
)

// Request is a validated client command. The set of implementations is
// closed: PingRequest, GetRequest and SetRequest.
type Request interface {
	GetCommand() Command

	isRequest()
}

type PingRequest struct{}

func (q *PingRequest) GetCommand() Command {
	return PING
}

type GetRequest struct {
	Key string
}

func (q *GetRequest) GetCommand() Command {
	return GET
}

type SetRequest struct {
	Key   string
	Value string
}

func (q *SetRequest) GetCommand() Command {
	return SET
}

func (*PingRequest) isRequest() {}
func (*GetRequest) isRequest()  {}
func (*SetRequest) isRequest()  {}

var _ Request = (*PingRequest)(nil)
var _ Request = (*SetRequest)(nil)
var _ Request = (*GetRequest)(nil)

// ParseRequest turns a decoded frame into a Request.
//
// The returned error wraps ErrInvalidRequest and its message is suitable for
// sending back to the client, after an "ERR " prefix.
func ParseRequest(v Value) (Request, error) {
	if v.Kind != KindArray || v.Null || len(v.Array) == 0 {
		return nil, invalidRequest("expected array frame for command")
	}

	name, ok := bulkArg(v.Array[0])
	if !ok {
		return nil, invalidRequest("first array element must be bulk string command name")
	}

	args := v.Array[1:]
	name = asciiUpper(name)

	switch Command(name) {
	case PING:
		// Arguments are accepted and ignored
		return &PingRequest{}, nil

	case GET:
		if len(args) < 1 {
			return nil, invalidRequest("wrong number of arguments for 'GET'")
		}

		key, ok := bulkArg(args[0])
		if !ok {
			return nil, invalidRequest("invalid key type for 'GET' (expected bulk string)")
		}

		return &GetRequest{Key: key}, nil

	case SET:
		if len(args) < 2 {
			return nil, invalidRequest("wrong number of arguments for 'SET'")
		}

		key, ok := bulkArg(args[0])
		if !ok {
			return nil, invalidRequest("invalid key type for 'SET' (expected bulk string)")
		}

		value, ok := bulkArg(args[1])
		if !ok {
			return nil, invalidRequest("invalid value type for 'SET' (expected bulk string)")
		}

		return &SetRequest{Key: key, Value: value}, nil

	default:
		return nil, invalidRequest(fmt.Sprintf("unknown command '%s'", name))
	}
}

// RequestError returns the reply a client gets for a request that failed to
// parse.
func RequestError(err error) Value {
	msg := err.Error()

	var reqErr *requestError
	if errors.As(err, &reqErr) {
		msg = reqErr.msg
	}

	return Error("ERR " + msg)
}

type requestError struct {
	msg string
}

func (e *requestError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidRequest, e.msg)
}

func (e *requestError) Unwrap() error {
	return ErrInvalidRequest
}

func invalidRequest(msg string) error {
	return &requestError{msg: msg}
}

// bulkArg returns the payload of a present bulk string as a string, replacing
// invalid UTF-8 rather than rejecting it.
func bulkArg(v Value) (string, bool) {
	if v.Kind != KindBulk || v.Null {
		return "", false
	}

	return LossyString(v.Bulk), true
}

// asciiUpper upper-cases a-z only. Other bytes, including the rest of any
// UTF-8 sequence, are left alone.
func asciiUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'a' <= c && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}

	return string(b)
}

// LossyString converts b to a string. Each maximal invalid subpart of a UTF-8
// sequence is replaced with a single utf8.RuneError: a truncated sequence
// such as "\xe2\x82" becomes one replacement, a run of stray bytes becomes
// one replacement per byte.
func LossyString(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	var sb strings.Builder
	sb.Grow(len(b))

	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			size = invalidPrefixLen(b)
			sb.WriteRune(utf8.RuneError)
		} else {
			sb.Write(b[:size])
		}
		b = b[size:]
	}

	return sb.String()
}

// invalidPrefixLen returns how many bytes at the front of b start a UTF-8
// sequence that is never completed. It is at least 1.
func invalidPrefixLen(b []byte) int {
	var (
		width     int
		low, high byte = 0x80, 0xbf
	)

	switch c := b[0]; {
	case c >= 0xc2 && c <= 0xdf:
		width = 2
	case c == 0xe0:
		width, low = 3, 0xa0
	case c == 0xed:
		width, high = 3, 0x9f
	case c >= 0xe1 && c <= 0xef:
		width = 3
	case c == 0xf0:
		width, low = 4, 0x90
	case c == 0xf4:
		width, high = 4, 0x8f
	case c >= 0xf1 && c <= 0xf3:
		width = 4
	default:
		return 1
	}

	n := 1
	for n < width && n < len(b) {
		c := b[n]
		if c < low || c > high {
			break
		}

		n++
		low, high = 0x80, 0xbf
	}

	return n
}
