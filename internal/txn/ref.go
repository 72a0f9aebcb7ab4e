package txn

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/roach88/ems/internal/tagged"
)

// Mode is the access a transaction needs on a cell.
type Mode int

const (
	// ReadWrite acquires the cell exclusively.
	ReadWrite Mode = iota
	// ReadOnly shares the cell with other readers.
	ReadOnly
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ReadWrite:
		return "read-write"
	case ReadOnly:
		return "read-only"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Ref names one cell a transaction touches.
type Ref struct {
	Array *tagged.Array
	Index int
	Mode  Mode
}

// String formats the reference for diagnostics.
func (r Ref) String() string {
	if r.Array == nil {
		return fmt.Sprintf("(nil,%d,%s)", r.Index, r.Mode)
	}
	return fmt.Sprintf("(%d,%d,%s)", r.Array.Rank(), r.Index, r.Mode)
}

type cellKey struct {
	rank  uint64
	index int
}

func (r Ref) key() cellKey {
	return cellKey{rank: r.Array.Rank(), index: r.Index}
}

// Dedupe returns refs with repeated cells removed. The first occurrence of a
// cell keeps its position; if any occurrence asks for ReadWrite the survivor
// is ReadWrite. References without an array are kept as given for Start to
// reject with ErrNilArray. refs is not modified.
func Dedupe(refs []Ref) []Ref {
	out := make([]Ref, 0, len(refs))
	pos := make(map[cellKey]int, len(refs))
	for _, r := range refs {
		if r.Array == nil {
			out = append(out, r)
			continue
		}
		k := r.key()
		if i, ok := pos[k]; ok {
			if r.Mode == ReadWrite {
				out[i].Mode = ReadWrite
			}
			continue
		}
		pos[k] = len(out)
		out = append(out, r)
	}
	return out
}

// Sort orders refs in place by (array rank, index), the acquisition order
// shared by every transaction.
func Sort(refs []Ref) {
	slices.SortFunc(refs, compareRefs)
}

func compareRefs(a, b Ref) int {
	if c := cmp.Compare(a.Array.Rank(), b.Array.Rank()); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}
