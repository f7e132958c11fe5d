package protocol

import (
	"errors"
	"fmt"
)

// Kind identifies the RESP type of a Value. Its byte value is the marker that
// starts the value on the wire.
type Kind byte

const (
	KindStatus Kind = '+'
	KindError  Kind = '-'
	KindBulk   Kind = '$'
	KindArray  Kind = '*'
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindError:
		return "error"
	case KindBulk:
		return "bulk"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%q)", byte(k))
	}
}

// Value is a single RESP value.
//
// Only the field matching Kind is meaningful: Str for statuses and errors,
// Bulk for bulk strings and Array for arrays. Null marks the null bulk string
// and the null array, which are distinct from their empty counterparts.
type Value struct {
	Kind  Kind
	Str   string
	Bulk  []byte
	Array []Value
	Null  bool
}

func Status(s string) Value {
	return Value{Kind: KindStatus, Str: s}
}

func Error(s string) Value {
	return Value{Kind: KindError, Str: s}
}

func Errorf(format string, args ...interface{}) Value {
	return Error(fmt.Sprintf(format, args...))
}

// Bulk returns a present bulk string. A nil slice is treated as empty, use
// NullBulk for the null bulk string.
func Bulk(b []byte) Value {
	if b == nil {
		b = []byte{}
	}

	return Value{Kind: KindBulk, Bulk: b}
}

func BulkString(s string) Value {
	return Bulk([]byte(s))
}

func NullBulk() Value {
	return Value{Kind: KindBulk, Null: true}
}

// Array returns a present array. Called without arguments it returns the
// empty array, use NullArray for the null array.
func Array(values ...Value) Value {
	if values == nil {
		values = []Value{}
	}

	return Value{Kind: KindArray, Array: values}
}

func NullArray() Value {
	return Value{Kind: KindArray, Null: true}
}

// IsNull reports whether v is the null bulk string or the null array.
func (v Value) IsNull() bool {
	return v.Null && (v.Kind == KindBulk || v.Kind == KindArray)
}

// Err returns the error carried by an error reply. Otherwise it returns nil.
func (v Value) Err() error {
	if v.Kind == KindError {
		return errors.New(v.Str)
	}

	return nil
}

func (v Value) String() string {
	switch v.Kind {
	case KindStatus, KindError:
		return v.Str
	case KindBulk:
		if v.Null {
			return "(nil)"
		}
		return string(v.Bulk)
	case KindArray:
		if v.Null {
			return "(nil)"
		}
		return fmt.Sprintf("%v", v.Array)
	default:
		return ""
	}
}
