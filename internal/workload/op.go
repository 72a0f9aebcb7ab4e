package workload

import (
	"errors"
	"fmt"

	"github.com/sugawarayuuta/sonnet"
)

// ErrEmptyTransaction indicates a payload that decodes to no operations.
var ErrEmptyTransaction = errors.New("transaction has no operations")

// Op is one cell reference of a generated transaction.
type Op struct {
	Table    int  `json:"t"`
	Index    int  `json:"i"`
	ReadOnly bool `json:"ro,omitempty"`
}

// Encode serializes a transaction into a queue payload.
func Encode(ops []Op) ([]byte, error) {
	if len(ops) == 0 {
		return nil, ErrEmptyTransaction
	}
	data, err := sonnet.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	return data, nil
}

// Decode parses a queue payload produced by Encode.
func Decode(payload []byte) ([]Op, error) {
	var ops []Op
	if err := sonnet.Unmarshal(payload, &ops); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if len(ops) == 0 {
		return nil, ErrEmptyTransaction
	}
	return ops, nil
}

// MaxPayloadSize returns the largest payload the generator can produce
// under cfg.
func MaxPayloadSize(cfg Config) int {
	n := cfg.MaxOps - 1
	if n < 1 {
		n = 1
	}
	widest := Op{Table: cfg.Tables - 1, Index: cfg.TableLength - 1}
	ops := make([]Op, n)
	for i := range ops {
		ops[i] = widest
	}
	data, err := Encode(ops)
	if err != nil {
		return 0
	}
	return len(data)
}
