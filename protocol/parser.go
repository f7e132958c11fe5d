package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrProtocol = errors.New("Protocol error")

	Terminal = []byte("\r\n")
)

// Decode attempts to parse one complete value from the front of buf.
//
// When buf holds a complete value, Decode returns it with the number of bytes
// it occupied. When buf only holds the start of a value, Decode returns n == 0
// and a nil error, and the caller should append more data and try again. buf
// is never modified, and the returned value does not alias it.
//
// Malformed input results in an error wrapping ErrProtocol. There is no way to
// resynchronise after that, so the caller should drop the connection.
func Decode(buf []byte) (v Value, n int, err error) {
	if len(buf) == 0 {
		return Value{}, 0, nil
	}

	switch Kind(buf[0]) {
	case KindStatus, KindError:
		return decodeLine(buf)

	case KindBulk:
		return decodeBulk(buf)

	case KindArray:
		return decodeArray(buf)

	default:
		return Value{}, 0, fmt.Errorf("%w: unexpected type byte %q", ErrProtocol, buf[0])
	}
}

// readLine returns the bytes between the marker at buf[0] and the next \r\n,
// and the offset just past the \r\n. ok is false if there is no \r\n yet.
func readLine(buf []byte) (line []byte, next int, ok bool) {
	i := bytes.Index(buf[1:], Terminal)
	if i < 0 {
		return nil, 0, false
	}

	return buf[1 : 1+i], 1 + i + len(Terminal), true
}

func readLength(buf []byte) (length int64, next int, ok bool, err error) {
	line, next, ok := readLine(buf)
	if !ok {
		return 0, 0, false, nil
	}

	length, err = strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("%w: invalid %s length %q",
			ErrProtocol, Kind(buf[0]), string(line))
	}

	if length < -1 {
		return 0, 0, false, fmt.Errorf("%w: invalid %s length %d",
			ErrProtocol, Kind(buf[0]), length)
	}

	return length, next, true, nil
}

func decodeLine(buf []byte) (Value, int, error) {
	line, next, ok := readLine(buf)
	if !ok {
		return Value{}, 0, nil
	}

	return Value{Kind: Kind(buf[0]), Str: string(line)}, next, nil
}

func decodeBulk(buf []byte) (Value, int, error) {
	length, next, ok, err := readLength(buf)
	if err != nil || !ok {
		return Value{}, 0, err
	}

	if length == -1 {
		return NullBulk(), next, nil
	}

	rest := buf[next:]

	// Compare without adding to length, it comes straight off the wire and
	// could overflow.
	if int64(len(rest))-int64(len(Terminal)) < length {
		return Value{}, 0, nil
	}

	end := int(length)
	if !bytes.Equal(rest[end:end+len(Terminal)], Terminal) {
		return Value{}, 0, fmt.Errorf("%w: bulk string of length %d is not terminated by CRLF",
			ErrProtocol, length)
	}

	payload := make([]byte, end)
	copy(payload, rest[:end])

	return Bulk(payload), next + end + len(Terminal), nil
}

func decodeArray(buf []byte) (Value, int, error) {
	count, next, ok, err := readLength(buf)
	if err != nil || !ok {
		return Value{}, 0, err
	}

	if count == -1 {
		return NullArray(), next, nil
	}

	// Every element needs at least "$0\r\n\r\n", so there can be no more
	// elements buffered than this. Sizing by count alone would let a client
	// make us allocate whatever it declares.
	capacity := count
	if limit := int64(len(buf)-next) / 4; capacity > limit {
		capacity = limit
	}

	values := make([]Value, 0, capacity)

	for i := int64(0); i < count; i++ {
		if next >= len(buf) {
			return Value{}, 0, nil
		}

		if Kind(buf[next]) != KindBulk {
			return Value{}, 0, fmt.Errorf("%w: array elements must be bulk strings, got type byte %q",
				ErrProtocol, buf[next])
		}

		elem, n, err := decodeBulk(buf[next:])
		if err != nil || n == 0 {
			return Value{}, 0, err
		}

		values = append(values, elem)
		next += n
	}

	return Value{Kind: KindArray, Array: values}, next, nil
}
