package usermem

type Pointer struct {
	mem  *Memory
	addr uint64
}

func ToPointer(mem *Memory, addr uint64) Pointer {
	return Pointer{mem, addr}
}

func (p Pointer) IsNil() bool {
	return p.addr == 0
}

func (p Pointer) Address() uint64 {
	return p.addr
}

func (p Pointer) Add(offset uint64) Pointer {
	return Pointer{p.mem, p.addr + offset}
}

func (p Pointer) Sub(offset uint64) Pointer {
	return Pointer{p.mem, p.addr - offset}
}

func (p Pointer) MemRead(size uint64) ([]byte, error) {
	return p.mem.MemRead(p.addr, size)
}

func (p Pointer) MemWrite(data []byte) error {
	return p.mem.MemWrite(p.addr, data)
}

func (p Pointer) ReadAt(b []byte, off int64) (n int, err error) {
	err = p.mem.access(p.addr+uint64(off), b, false)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

func (p Pointer) WriteAt(b []byte, off int64) (n int, err error) {
	err = p.mem.access(p.addr+uint64(off), b, true)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}
