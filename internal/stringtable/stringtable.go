// ABOUTME: Owns the decoded snapshot string pool, indexed by position
// ABOUTME: Backs every node/edge name lookup in the compact graph

// Package stringtable stores the `strings` array of a V8 heap snapshot as a
// single contiguous byte buffer with per-entry offsets, rather than as a
// []string. This avoids one allocation and one Go string header per
// snapshot string, which matters once the table holds tens of millions of
// entries.
package stringtable

import "fmt"

// Table is an append-only, random-access string pool.
type Table struct {
	buf     []byte
	offsets []int // offsets[i] is the start of string i in buf; len(offsets) == count+1
}

// New creates an empty table. sizeHint, if known, preallocates the backing
// buffer to avoid repeated growth while streaming a large snapshot.
func New(sizeHint int) *Table {
	t := &Table{
		offsets: make([]int, 1, 1024),
	}
	if sizeHint > 0 {
		t.buf = make([]byte, 0, sizeHint)
	}
	t.offsets[0] = 0
	return t
}

// Append adds s to the table and returns its index.
func (t *Table) Append(s string) uint32 {
	idx := uint32(len(t.offsets) - 1)
	t.buf = append(t.buf, s...)
	t.offsets = append(t.offsets, len(t.buf))
	return idx
}

// Get returns the string at idx. It panics on an out-of-range index. The
// parser does not check node or edge name indices against Len, so a
// snapshot whose name index is out of range surfaces here as a panic.
func (t *Table) Get(idx uint32) string {
	i := int(idx)
	if i < 0 || i+1 >= len(t.offsets) {
		panic(fmt.Sprintf("stringtable: index %d out of range [0, %d)", idx, t.Len()))
	}
	return string(t.buf[t.offsets[i]:t.offsets[i+1]])
}

// Len returns the number of strings in the table.
func (t *Table) Len() int {
	return len(t.offsets) - 1
}

// Bytes returns the raw bytes of the string at idx, avoiding the allocation
// Get incurs when a caller only needs to hash or compare the content.
func (t *Table) Bytes(idx uint32) []byte {
	i := int(idx)
	if i < 0 || i+1 >= len(t.offsets) {
		panic(fmt.Sprintf("stringtable: index %d out of range [0, %d)", idx, t.Len()))
	}
	return t.buf[t.offsets[i]:t.offsets[i+1]]
}
