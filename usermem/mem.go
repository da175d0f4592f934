// Package usermem emulates a caller's address space. Copies into or out of
// it fault the way copy_to_user and copy_from_user do.
package usermem

import (
	"slices"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

type MemProt int

const (
	MEM_PROT_NONE MemProt = 0
	MEM_PROT_READ MemProt = 1 << (iota - 1)
	MEM_PROT_WRITE

	MEM_PROT_ALL = MEM_PROT_READ | MEM_PROT_WRITE
)

type MemRegion struct {
	Addr, Size uint64
	Prot       MemProt
}

type region struct {
	MemRegion
	data []byte
}

// Memory is a sparse set of mapped regions. The zero value is an empty
// address space.
type Memory struct {
	rw      sync.RWMutex
	regions []*region
}

func New() *Memory {
	return new(Memory)
}

func (m *Memory) MemMap(addr, size uint64, prot MemProt) error {
	if size == 0 || addr+size < addr {
		return errors.Wrapf(ErrRegionInvalid, "map [%#x, +%#x)", addr, size)
	}
	m.rw.Lock()
	defer m.rw.Unlock()
	for _, r := range m.regions {
		if addr < r.Addr+r.Size && r.Addr < addr+size {
			return errors.Wrapf(ErrRegionOverlap, "map [%#x, +%#x)", addr, size)
		}
	}
	m.regions = append(m.regions, &region{MemRegion{addr, size, prot}, make([]byte, size)})
	sort.Slice(m.regions, func(i, j int) bool { return m.regions[i].Addr < m.regions[j].Addr })
	return nil
}

// MemUnmap removes the region that starts at addr with exactly size bytes.
func (m *Memory) MemUnmap(addr, size uint64) error {
	m.rw.Lock()
	defer m.rw.Unlock()
	i := slices.IndexFunc(m.regions, func(r *region) bool { return r.Addr == addr && r.Size == size })
	if i == -1 {
		return errors.Wrapf(ErrRegionInvalid, "unmap [%#x, +%#x)", addr, size)
	}
	m.regions = slices.Delete(m.regions, i, i+1)
	return nil
}

func (m *Memory) MemProtect(addr, size uint64, prot MemProt) error {
	m.rw.Lock()
	defer m.rw.Unlock()
	for _, r := range m.regions {
		if r.Addr == addr && r.Size == size {
			r.Prot = prot
			return nil
		}
	}
	return errors.Wrapf(ErrRegionInvalid, "protect [%#x, +%#x)", addr, size)
}

func (m *Memory) MemRegions() []MemRegion {
	m.rw.RLock()
	defer m.rw.RUnlock()
	arr := make([]MemRegion, len(m.regions))
	for i, r := range m.regions {
		arr[i] = r.MemRegion
	}
	return arr
}

func (m *Memory) MemRead(addr, size uint64) ([]byte, error) {
	data := make([]byte, size)
	err := m.access(addr, data, false)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (m *Memory) MemWrite(addr uint64, data []byte) error {
	return m.access(addr, data, true)
}

// access copies between b and [addr, addr+len(b)). The whole range must lie
// in one region that grants the access; otherwise nothing is copied.
func (m *Memory) access(addr uint64, b []byte, write bool) error {
	size := uint64(len(b))
	if size == 0 {
		return nil
	}
	if write {
		m.rw.Lock()
		defer m.rw.Unlock()
	} else {
		m.rw.RLock()
		defer m.rw.RUnlock()
	}
	r := m.find(addr)
	if r == nil || addr+size < addr || addr+size > r.Addr+r.Size {
		return &FaultError{Addr: addr, Size: size, Write: write}
	}
	need := MEM_PROT_READ
	if write {
		need = MEM_PROT_WRITE
	}
	if r.Prot&need == 0 {
		return &FaultError{Addr: addr, Size: size, Write: write, Prot: r.Prot}
	}
	off := addr - r.Addr
	if write {
		copy(r.data[off:], b)
	} else {
		copy(b, r.data[off:])
	}
	return nil
}

func (m *Memory) find(addr uint64) *region {
	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].Addr+m.regions[i].Size > addr })
	if i == len(m.regions) || m.regions[i].Addr > addr {
		return nil
	}
	return m.regions[i]
}
