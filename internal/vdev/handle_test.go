package vdev

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"sync"
	"testing"

	"github.com/wnxd/vdisk/device"
	"github.com/wnxd/vdisk/storage"
	"github.com/wnxd/vdisk/usermem"
)

func openDevice(t *testing.T, capacity int) (device.Device, device.Handle) {
	t.Helper()
	dev, err := NewDevice("vdisk0", capacity)
	if err != nil {
		t.Fatalf("NewDevice failed: %v", err)
	}
	h, err := dev.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return dev, h
}

func fill(n int, v byte) []byte {
	return bytes.Repeat([]byte{v}, n)
}

// =============================================================================
// Round-trip Tests
// =============================================================================

func TestHandle_RoundTrip(t *testing.T) {
	tests := []struct {
		off, n int
	}{
		{0, 1},
		{0, device.CAP_4K},
		{100, 200},
		{device.CAP_4K - 1, 1},
		{4000, 96},
	}
	for _, tt := range tests {
		_, h := openDevice(t, device.CAP_4K)
		data := make([]byte, tt.n)
		for i := range data {
			data[i] = byte(i*7 + tt.off)
		}
		if _, err := h.Seek(int64(tt.off), io.SeekStart); err != nil {
			t.Fatalf("Seek(%d) failed: %v", tt.off, err)
		}
		if n, err := h.Write(data); err != nil || n != tt.n {
			t.Fatalf("Write = %d, %v; want %d, nil", n, err, tt.n)
		}
		h.Seek(int64(tt.off), io.SeekStart)
		got := make([]byte, tt.n)
		if n, err := h.Read(got); err != nil || n != tt.n {
			t.Fatalf("Read = %d, %v; want %d, nil", n, err, tt.n)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("round trip at %d/%d returned different bytes", tt.off, tt.n)
		}
		h.Close()
	}
}

// =============================================================================
// Read Boundary Tests
// =============================================================================

func TestHandle_ReadAtCapacity(t *testing.T) {
	_, h := openDevice(t, device.CAP_4K)
	h.Seek(device.CAP_4K, io.SeekStart)

	n, err := h.Read(make([]byte, 1))
	if !errors.Is(err, device.ErrOutOfRange) {
		t.Errorf("Read(1) at capacity error = %v, want ErrOutOfRange", err)
	}
	if n != 0 {
		t.Errorf("Read(1) at capacity = %d, want 0", n)
	}

	n, err = h.Read(nil)
	if err != nil || n != 0 {
		t.Errorf("Read(0) at capacity = %d, %v; want 0, nil", n, err)
	}
	if h.Offset() != device.CAP_4K {
		t.Errorf("Offset() = %d, want %d", h.Offset(), device.CAP_4K)
	}
}

func TestHandle_ShortReadAtTail(t *testing.T) {
	_, h := openDevice(t, device.CAP_4K)
	h.Seek(4090, io.SeekStart)
	n, err := h.Read(make([]byte, 10))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 6 {
		t.Errorf("Read = %d, want 6", n)
	}
	if h.Offset() != 4096 {
		t.Errorf("Offset() = %d, want 4096", h.Offset())
	}
}

// =============================================================================
// Write Boundary Tests
// =============================================================================

func TestHandle_WriteAtCapacityAbsorbed(t *testing.T) {
	dev, h := openDevice(t, device.CAP_4K)
	h.Seek(device.CAP_4K, io.SeekStart)
	n, err := h.Write([]byte("dropped"))
	if err != nil || n != 0 {
		t.Errorf("Write at capacity = %d, %v; want 0, nil", n, err)
	}
	if h.Offset() != device.CAP_4K {
		t.Errorf("Offset() = %d, want %d", h.Offset(), device.CAP_4K)
	}

	r, _ := dev.Open()
	defer r.Close()
	got := make([]byte, device.CAP_4K)
	r.Read(got)
	if !bytes.Equal(got, make([]byte, device.CAP_4K)) {
		t.Error("write at capacity changed contents")
	}
}

func TestHandle_ShortWriteAtTail(t *testing.T) {
	_, h := openDevice(t, device.CAP_4K)
	h.Seek(4090, io.SeekStart)
	n, err := h.Write(fill(10, 0xAA))
	if err != nil || n != 6 {
		t.Fatalf("Write = %d, %v; want 6, nil", n, err)
	}
	if h.Offset() != 4096 {
		t.Errorf("Offset() = %d, want 4096", h.Offset())
	}
}

// =============================================================================
// Seek Tests
// =============================================================================

func TestHandle_SeekBounds(t *testing.T) {
	_, h := openDevice(t, device.CAP_4K)

	if off, err := h.Seek(device.CAP_4K, io.SeekStart); err != nil || off != device.CAP_4K {
		t.Errorf("Seek(capacity) = %d, %v; want %d, nil", off, err, device.CAP_4K)
	}
	if _, err := h.Seek(device.CAP_4K+1, io.SeekStart); !errors.Is(err, device.ErrInvalidArgument) {
		t.Errorf("Seek(capacity+1) error = %v, want ErrInvalidArgument", err)
	}
	if h.Offset() != device.CAP_4K {
		t.Errorf("Offset() after failed seek = %d, want %d", h.Offset(), device.CAP_4K)
	}

	h.Seek(0, io.SeekStart)
	if _, err := h.Seek(-1, io.SeekCurrent); !errors.Is(err, device.ErrInvalidArgument) {
		t.Errorf("Seek(-1, current) from 0 error = %v, want ErrInvalidArgument", err)
	}
	if _, err := h.Seek(-1, io.SeekStart); !errors.Is(err, device.ErrInvalidArgument) {
		t.Errorf("Seek(-1, start) error = %v, want ErrInvalidArgument", err)
	}
}

func TestHandle_SeekRelative(t *testing.T) {
	_, h := openDevice(t, device.CAP_4K)
	h.Seek(100, io.SeekStart)
	if off, err := h.Seek(50, io.SeekCurrent); err != nil || off != 150 {
		t.Errorf("Seek(50, current) = %d, %v; want 150, nil", off, err)
	}
	if off, err := h.Seek(-150, io.SeekCurrent); err != nil || off != 0 {
		t.Errorf("Seek(-150, current) = %d, %v; want 0, nil", off, err)
	}
	if _, err := h.Seek(device.CAP_4K+1, io.SeekCurrent); !errors.Is(err, device.ErrInvalidArgument) {
		t.Errorf("Seek past capacity error = %v, want ErrInvalidArgument", err)
	}
}

func TestHandle_SeekEndUnsupported(t *testing.T) {
	_, h := openDevice(t, device.CAP_4K)
	for _, whence := range []int{io.SeekEnd, 7, -1} {
		if _, err := h.Seek(0, whence); !errors.Is(err, device.ErrInvalidArgument) {
			t.Errorf("Seek(0, %d) error = %v, want ErrInvalidArgument", whence, err)
		}
	}
}

// =============================================================================
// Control / Reset Tests
// =============================================================================

func TestHandle_ControlClear(t *testing.T) {
	_, h := openDevice(t, device.CAP_4K)
	h.Write(fill(device.CAP_4K, 0x5A))
	if err := h.Control(device.CMD_MEM_CLEAR, nil); err != nil {
		t.Fatalf("Control(CMD_MEM_CLEAR) failed: %v", err)
	}
	if h.Offset() != device.CAP_4K {
		t.Errorf("Offset() = %d after clear, want %d", h.Offset(), device.CAP_4K)
	}
	h.Seek(0, io.SeekStart)
	got := make([]byte, device.CAP_4K)
	if n, err := h.Read(got); err != nil || n != device.CAP_4K {
		t.Fatalf("Read = %d, %v; want %d, nil", n, err, device.CAP_4K)
	}
	if !bytes.Equal(got, make([]byte, device.CAP_4K)) {
		t.Error("contents not zero after clear")
	}
}

func TestHandle_ControlUnknown(t *testing.T) {
	_, h := openDevice(t, device.CAP_4K)
	h.Write([]byte{1})
	for _, op := range []int{0, 1, device.IO(device.MEM_MAGIC, 1), device.IO('x', 0)} {
		if err := h.Control(op, nil); !errors.Is(err, device.ErrInvalidArgument) {
			t.Errorf("Control(%#x) error = %v, want ErrInvalidArgument", op, err)
		}
	}
	h.Seek(0, io.SeekStart)
	b := make([]byte, 1)
	h.Read(b)
	if b[0] != 1 {
		t.Error("unknown control command changed contents")
	}
}

func TestDevice_ResetVisibleToAllHandles(t *testing.T) {
	dev, a := openDevice(t, device.CAP_8K)
	b, _ := dev.Open()
	a.Write(fill(64, 0xFF))
	b.Seek(32, io.SeekStart)

	dev.Reset()

	if b.Offset() != 32 {
		t.Errorf("Offset() = %d after reset, want 32", b.Offset())
	}
	b.Seek(0, io.SeekStart)
	got := make([]byte, device.CAP_8K)
	b.Read(got)
	if !bytes.Equal(got, make([]byte, device.CAP_8K)) {
		t.Error("contents not zero after reset")
	}
}

// =============================================================================
// Fault Tests
// =============================================================================

func TestHandle_ReadToFault(t *testing.T) {
	_, h := openDevice(t, device.CAP_4K)
	mem := usermem.New()
	mem.MemMap(0x1000, 0x10, usermem.MEM_PROT_READ)

	n, err := h.ReadTo(usermem.ToPointer(mem, 0x1000), 8)
	if !errors.Is(err, device.ErrIOFault) {
		t.Errorf("ReadTo read-only memory error = %v, want ErrIOFault", err)
	}
	if n != 0 || h.Offset() != 0 {
		t.Errorf("ReadTo = %d, offset %d; want 0, 0", n, h.Offset())
	}
}

func TestHandle_WriteFromFault(t *testing.T) {
	_, h := openDevice(t, device.CAP_4K)
	h.Seek(10, io.SeekStart)
	mem := usermem.New()
	mem.MemMap(0x1000, 4, usermem.MEM_PROT_ALL)
	mem.MemWrite(0x1000, []byte{9, 9, 9, 9})

	_, err := h.WriteFrom(usermem.ToPointer(mem, 0x1000), 8)
	if !errors.Is(err, device.ErrIOFault) {
		t.Errorf("WriteFrom past mapping error = %v, want ErrIOFault", err)
	}
	if h.Offset() != 10 {
		t.Errorf("Offset() = %d after fault, want 10", h.Offset())
	}
	h.Seek(0, io.SeekStart)
	got := make([]byte, 32)
	h.Read(got)
	if !bytes.Equal(got, make([]byte, 32)) {
		t.Error("faulted write changed contents")
	}
}

func TestHandle_UserMemoryRoundTrip(t *testing.T) {
	_, h := openDevice(t, device.CAP_4K)
	mem := usermem.New()
	mem.MemMap(0x8000, 0x100, usermem.MEM_PROT_ALL)
	src := usermem.ToPointer(mem, 0x8000)
	src.MemWrite([]byte("user data"))

	if n, err := h.WriteFrom(src, 9); err != nil || n != 9 {
		t.Fatalf("WriteFrom = %d, %v; want 9, nil", n, err)
	}
	h.Seek(0, io.SeekStart)
	dst := src.Add(0x80)
	if n, err := h.ReadTo(dst, 9); err != nil || n != 9 {
		t.Fatalf("ReadTo = %d, %v; want 9, nil", n, err)
	}
	got, _ := dst.MemRead(9)
	if string(got) != "user data" {
		t.Errorf("user memory = %q, want %q", got, "user data")
	}
}

func TestHandle_ConcurrentReadToSharedMemory(t *testing.T) {
	dev, h := openDevice(t, device.CAP_4K)
	h.Write(fill(64, 0x5a))
	h.Close()
	mem := usermem.New()
	mem.MemMap(0x1000, 0x100, usermem.MEM_PROT_ALL)
	dst := usermem.ToPointer(mem, 0x1000)

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := dev.Open()
			if err != nil {
				t.Errorf("Open failed: %v", err)
				return
			}
			defer h.Close()
			for range 100 {
				h.Seek(0, io.SeekStart)
				if n, err := h.ReadTo(dst, 64); err != nil || n != 64 {
					t.Errorf("ReadTo = %d, %v; want 64, nil", n, err)
					return
				}
			}
		}()
	}
	wg.Wait()
	got, _ := dst.MemRead(64)
	if !bytes.Equal(got, fill(64, 0x5a)) {
		t.Errorf("user memory = %x, want 64 bytes of 5a", got)
	}
}

func TestHandle_BufferErrorsSurface(t *testing.T) {
	_, h := openDevice(t, device.CAP_4K)
	h.(*handle).off = -8
	if _, err := h.Read(make([]byte, 4)); !errors.Is(err, storage.ErrOffset) {
		t.Errorf("Read at -8 error = %v, want storage.ErrOffset", err)
	}
	if _, err := h.Write([]byte("abcd")); !errors.Is(err, storage.ErrOffset) {
		t.Errorf("Write at -8 error = %v, want storage.ErrOffset", err)
	}
	if off := h.Offset(); off != -8 {
		t.Errorf("Offset() = %d after failed I/O, want -8", off)
	}
}

func TestHandle_WriteAtCapacitySkipsSource(t *testing.T) {
	_, h := openDevice(t, device.CAP_4K)
	h.Seek(device.CAP_4K, io.SeekStart)
	n, err := h.WriteFrom(usermem.ToPointer(usermem.New(), 0x1000), 4)
	if err != nil || n != 0 {
		t.Errorf("WriteFrom at capacity = %d, %v; want 0, nil", n, err)
	}
}

// =============================================================================
// Close Tests
// =============================================================================

func TestHandle_Closed(t *testing.T) {
	dev, h := openDevice(t, device.CAP_4K)
	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := h.Close(); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("second Close error = %v, want fs.ErrClosed", err)
	}
	if dev.OpenCount() != 0 {
		t.Errorf("OpenCount() = %d, want 0", dev.OpenCount())
	}
	if _, err := h.Read(make([]byte, 1)); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Read after Close error = %v, want fs.ErrClosed", err)
	}
	if _, err := h.Write([]byte{1}); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Write after Close error = %v, want fs.ErrClosed", err)
	}
	if _, err := h.Seek(0, io.SeekStart); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Seek after Close error = %v, want fs.ErrClosed", err)
	}
	if err := h.Control(device.CMD_MEM_CLEAR, nil); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Control after Close error = %v, want fs.ErrClosed", err)
	}
}

func TestHandle_Stat(t *testing.T) {
	_, h := openDevice(t, device.CAP_8K)
	fi, err := h.Stat()
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if fi.Name() != "vdisk0" {
		t.Errorf("Name() = %q, want %q", fi.Name(), "vdisk0")
	}
	if fi.Size() != device.CAP_8K {
		t.Errorf("Size() = %d, want %d", fi.Size(), device.CAP_8K)
	}
	if fi.Mode()&fs.ModeCharDevice == 0 {
		t.Errorf("Mode() = %v, want char device", fi.Mode())
	}
	info, ok := fi.Sys().(device.Info)
	if !ok || info.OpenCount != 1 {
		t.Errorf("Sys() = %#v, want device.Info with one open handle", fi.Sys())
	}
}
