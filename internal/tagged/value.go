package tagged

import (
	"fmt"
	"strconv"
)

// Kind identifies what a Value holds.
type Kind uint32

const (
	// KindUndefined is the value of a cell that was never written.
	KindUndefined Kind = iota
	// KindInt is a 64-bit signed integer.
	KindInt
	// KindBytes is a variable-length payload stored against the array heap.
	KindBytes
)

// Value is the content of a cell.
//
// Bytes returned by accessors are shared with the array until the cell is
// overwritten or consumed and must not be modified by the caller.
type Value struct {
	Kind  Kind
	Int   int64
	Bytes []byte
}

// Int returns a numeric value.
func Int(n int64) Value { return Value{Kind: KindInt, Int: n} }

// Bytes returns a payload value. The array copies b on write.
func Bytes(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }

// String returns a payload value holding s.
func String(s string) Value { return Value{Kind: KindBytes, Bytes: []byte(s)} }

// IsUndefined reports whether v was never written.
func (v Value) IsUndefined() bool { return v.Kind == KindUndefined }

// String formats the value for diagnostics.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindBytes:
		return strconv.Quote(string(v.Bytes))
	case KindUndefined:
		return "undefined"
	default:
		return fmt.Sprintf("Value(kind=%d)", v.Kind)
	}
}
