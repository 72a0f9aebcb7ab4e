// Package txn coordinates transactions over arbitrary sets of tagged cells.
//
// A transaction is opened over a de-duplicated list of references, each an
// (array, index, mode) triple chosen by the worker at run time. The
// coordinator sorts the references by the global order (array rank, index)
// and acquires every cell in that order: read-write references take the cell
// exclusively, read-only references share it with other readers. The worker
// then reads and writes the cells through the handle, and ending the
// transaction releases them in reverse order, restoring each tag to full.
//
// # Deadlock freedom
//
// Every transaction acquires cells in the same total order, so no cycle can
// form in the wait-for graph between open transactions. A transaction that
// names the same cell twice would wait on itself, which is why callers must
// run Dedupe before Start. Start additionally rejects adjacent duplicates
// after sorting rather than deadlocking.
//
// # Non-goals
//
// There is no undo log. A transaction either commits every write it made or
// must not write at all; ending without commit after a write still publishes
// the write and reports ErrUncommittedWrites.
package txn
