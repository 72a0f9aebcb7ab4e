package tagged

import "fmt"

// Tag is the observable synchronization state of a cell.
type Tag uint8

const (
	// TagEmpty means the cell may be written by WriteEF.
	TagEmpty Tag = iota
	// TagFull means the cell holds committed, readable data.
	TagFull
	// TagBusy means the cell is owned by an in-flight accessor or an
	// exclusive transaction holder. It is neither readable nor writable
	// through the full/empty accessors until released.
	TagBusy
)

// String returns the tag name.
func (t Tag) String() string {
	switch t {
	case TagEmpty:
		return "empty"
	case TagFull:
		return "full"
	case TagBusy:
		return "busy"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Tag word layout. The two low bits carry the state, the remaining bits
// carry the reader count while the state is shared.
const (
	stateEmpty  uint32 = 0
	stateFull   uint32 = 1
	stateBusy   uint32 = 2
	stateShared uint32 = 3

	stateMask   uint32 = 3
	readerShift        = 2
	oneReader   uint32 = 1 << readerShift
)

func isShared(s uint32) bool { return s&stateMask == stateShared }

// readable reports whether the committed value may be read in state s.
func readable(s uint32) bool { return s == stateFull || isShared(s) }

func tagOf(s uint32) Tag {
	switch {
	case s == stateEmpty:
		return TagEmpty
	case readable(s):
		return TagFull
	default:
		return TagBusy
	}
}

func stateOf(t Tag) (uint32, error) {
	switch t {
	case TagEmpty:
		return stateEmpty, nil
	case TagFull:
		return stateFull, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidTag, t)
	}
}
