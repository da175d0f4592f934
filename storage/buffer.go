// Package storage holds the fixed-capacity byte array behind a virtual device.
package storage

import (
	"errors"
	"sync"

	"golang.org/x/exp/constraints"
)

var (
	ErrCapacity = errors.New("capacity invalid")
	ErrOffset   = errors.New("offset invalid")
)

// Buffer is a zero-initialized byte array whose length never changes.
type Buffer struct {
	rw   sync.RWMutex
	data []byte
}

// New allocates a buffer of exactly capacity bytes.
// A capacity outside (0, limit] fails with ErrCapacity.
func New(capacity, limit int) (*Buffer, error) {
	if capacity <= 0 || capacity > limit {
		return nil, ErrCapacity
	}
	return &Buffer{data: make([]byte, capacity)}, nil
}

// Span returns how many of n bytes fit between off and capacity.
func Span[I constraints.Integer](off, n, capacity I) I {
	if off >= capacity || n <= 0 {
		return 0
	}
	return min(n, capacity-off)
}

func (buf *Buffer) Cap() int {
	return len(buf.data)
}

// ReadAt copies as much of b as fits from off onward and reports the count.
func (buf *Buffer) ReadAt(b []byte, off int64) (int, error) {
	if off < 0 {
		return 0, ErrOffset
	}
	buf.rw.RLock()
	defer buf.rw.RUnlock()
	n := Span(off, int64(len(b)), int64(len(buf.data)))
	if n == 0 {
		return 0, nil
	}
	return copy(b[:n], buf.data[off:]), nil
}

// WriteAt stores as much of b as fits from off onward and reports the count.
func (buf *Buffer) WriteAt(b []byte, off int64) (int, error) {
	if off < 0 {
		return 0, ErrOffset
	}
	buf.rw.Lock()
	defer buf.rw.Unlock()
	n := Span(off, int64(len(b)), int64(len(buf.data)))
	if n == 0 {
		return 0, nil
	}
	return copy(buf.data[off:], b[:n]), nil
}

// Zero clears every byte under the write lock.
func (buf *Buffer) Zero() {
	buf.rw.Lock()
	clear(buf.data)
	buf.rw.Unlock()
}

// Bytes is caller memory backed by a plain slice. Copies into or out of it
// never fault.
type Bytes []byte

func (b Bytes) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, b[off:]), nil
}

func (b Bytes) WriteAt(p []byte, off int64) (int, error) {
	return copy(b[off:], p), nil
}
