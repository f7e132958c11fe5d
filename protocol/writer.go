package protocol

import (
	"io"
	"strconv"
)

var (
	NullBulkTerminal  = []byte("$-1\r\n")
	NullArrayTerminal = []byte("*-1\r\n")
)

// Encode returns the wire representation of v.
func Encode(v Value) []byte {
	return AppendValue(nil, v)
}

// AppendValue appends the wire representation of v to dst and returns the
// extended slice.
func AppendValue(dst []byte, v Value) []byte {
	switch v.Kind {
	case KindStatus, KindError:
		dst = append(dst, byte(v.Kind))
		dst = append(dst, v.Str...)
		return append(dst, Terminal...)

	case KindBulk:
		if v.Null {
			return append(dst, NullBulkTerminal...)
		}

		dst = appendLength(dst, KindBulk, len(v.Bulk))
		dst = append(dst, v.Bulk...)
		return append(dst, Terminal...)

	case KindArray:
		if v.Null {
			return append(dst, NullArrayTerminal...)
		}

		dst = appendLength(dst, KindArray, len(v.Array))
		for _, elem := range v.Array {
			dst = AppendValue(dst, elem)
		}
		return dst

	default:
		// The zero Value has no kind, there is nothing sensible to send for it.
		return dst
	}
}

func appendLength(dst []byte, kind Kind, n int) []byte {
	dst = append(dst, byte(kind))
	dst = strconv.AppendInt(dst, int64(n), 10)
	return append(dst, Terminal...)
}

// EncodeCommand returns the wire representation of a command, an array of
// bulk strings, as clients send it.
func EncodeCommand(args ...string) []byte {
	values := make([]Value, 0, len(args))
	for _, arg := range args {
		values = append(values, BulkString(arg))
	}

	return Encode(Array(values...))
}

// WriteValue encodes v and writes it to w in a single Write call.
func WriteValue(w io.Writer, v Value) error {
	_, err := w.Write(Encode(v))
	return err
}

func WriteOk(w io.Writer) error {
	return WriteValue(w, Status("OK"))
}

func WriteError(w io.Writer, errMsg string) error {
	return WriteValue(w, Error("ERR "+errMsg))
}
