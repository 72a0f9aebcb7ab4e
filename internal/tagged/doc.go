// Package tagged implements arrays of full/empty tagged memory cells.
//
// Every cell carries a value and a synchronization tag. The tag is the only
// coordination primitive shared between workers: blocking accessors wait for
// the tag to reach a state, move the value, and leave the tag in a defined
// post-state. There is no array-wide lock.
//
// # Accessors
//
//	ReadFF   block until FULL, read, leave FULL        (repeatable read)
//	ReadFE   block until FULL, read, set EMPTY         (consume once)
//	WriteEF  block until EMPTY, write, set FULL        (produce once)
//	WriteXF  write and set FULL regardless of tag      (initialization)
//	Read     plain read, no tag check                  (inside a transaction)
//	Write    plain write, no tag check                 (inside a transaction)
//	FAA/CAS  atomic read-modify-write on numeric cells (tag untouched)
//
// # Tag word
//
// Each cell's tag is a 32-bit word updated only with compare-and-swap, so a
// transition has at most one winner:
//
//	empty   0
//	full    1
//	busy    2          owned by an in-flight accessor or an exclusive holder
//	shared  3 | n<<2   held by n readers; the committed value stays readable
//
// Busy and shared are never left behind by a completed accessor. Transaction
// holders (see internal/txn) keep a cell busy or shared until they release it.
//
// # Storage
//
// Numeric values live in an int64 word per cell. Arrays created with a heap
// can also hold variable-length byte payloads; the heap only accounts for
// bytes in use and rejects writes past its size. Arrays created with a
// Filename are backed by a memory-mapped file and are numeric only.
package tagged
