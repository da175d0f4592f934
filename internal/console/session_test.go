package console

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"strconv"
	"strings"
	"testing"

	"github.com/wnxd/vdisk/device"
	"github.com/wnxd/vdisk/device/virtual"
	"github.com/wnxd/vdisk/filesystem"
)

func newSession(t *testing.T) (*Session, device.Registry) {
	t.Helper()
	reg, err := virtual.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	if _, err := virtual.Populate(reg, "vdisk", 2, device.CAP_4K); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}
	s := NewSession(reg)
	t.Cleanup(func() { s.Close() })
	return s, reg
}

func exec(t *testing.T, s *Session, line string) string {
	t.Helper()
	var out bytes.Buffer
	args, err := ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine(%q) failed: %v", line, err)
	}
	if err := s.Exec(&out, args); err != nil {
		t.Fatalf("%q failed: %v", line, err)
	}
	return out.String()
}

// =============================================================================
// Command Tests
// =============================================================================

func TestSession_OpenWriteRead(t *testing.T) {
	s, _ := newSession(t)
	if got := exec(t, s, "open vdisk0 rw"); got != "fd 3\n" {
		t.Fatalf("open = %q, want %q", got, "fd 3\n")
	}
	if got := exec(t, s, `write 3 "hello world"`); got != "wrote 11 of 11 bytes\n" {
		t.Errorf("write = %q", got)
	}
	exec(t, s, "seek 3 0")
	if got := exec(t, s, "read 3 5 text"); got != "5 bytes \"hello\"\n" {
		t.Errorf("read text = %q", got)
	}
	if got := exec(t, s, "read 3 2"); got != "2 bytes 2077\n" {
		t.Errorf("read hex = %q", got)
	}
	if got := exec(t, s, "stat 3"); got != "vdisk0 230:0 capacity 4096 open 1 offset 7\n" {
		t.Errorf("stat = %q", got)
	}
}

func TestSession_TailBehaviour(t *testing.T) {
	s, _ := newSession(t)
	exec(t, s, "open vdisk1")
	exec(t, s, "seek 3 4090")
	if got := exec(t, s, "read 3 10"); !strings.HasPrefix(got, "6 bytes ") {
		t.Errorf("tail read = %q, want 6 bytes", got)
	}
	if got := exec(t, s, "writex 3 deadbeef"); got != "wrote 0 of 4 bytes\n" {
		t.Errorf("write at capacity = %q", got)
	}
	if err := s.Exec(new(bytes.Buffer), []string{"read", "3", "1"}); !errors.Is(err, io.EOF) {
		t.Errorf("read at capacity error = %v, want io.EOF", err)
	}
}

func TestSession_SeekErrors(t *testing.T) {
	s, _ := newSession(t)
	exec(t, s, "open vdisk0")
	for _, line := range []string{"seek 3 4097", "seek 3 -1 cur", "seek 3 0 end"} {
		args, _ := ParseLine(line)
		if err := s.Exec(new(bytes.Buffer), args); !errors.Is(err, device.ErrInvalidArgument) {
			t.Errorf("%q error = %v, want ErrInvalidArgument", line, err)
		}
	}
	if got := exec(t, s, "seek 3 0x10"); got != "offset 16\n" {
		t.Errorf("seek hex = %q", got)
	}
	if got := exec(t, s, "seek 3 -6 cur"); got != "offset 10\n" {
		t.Errorf("seek cur = %q", got)
	}
}

func TestSession_DupSharesOffset(t *testing.T) {
	s, reg := newSession(t)
	exec(t, s, "open vdisk0")
	if got := exec(t, s, "dup 3"); got != "fd 4\n" {
		t.Fatalf("dup = %q, want %q", got, "fd 4\n")
	}
	exec(t, s, "write 3 abc")
	if got := exec(t, s, "stat 4"); !strings.HasSuffix(got, "offset 3\n") {
		t.Errorf("stat of dup = %q, want offset 3", got)
	}

	dev, _ := reg.LookupName("vdisk0")
	exec(t, s, "close 3")
	if dev.OpenCount() != 1 {
		t.Errorf("OpenCount() = %d after closing one of two fds, want 1", dev.OpenCount())
	}
	exec(t, s, "close 4")
	if dev.OpenCount() != 0 {
		t.Errorf("OpenCount() = %d after closing both fds, want 0", dev.OpenCount())
	}
	if err := s.Exec(new(bytes.Buffer), []string{"close", "4"}); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("close of closed fd error = %v, want fs.ErrNotExist", err)
	}
}

func TestSession_ClearAndIoctl(t *testing.T) {
	s, _ := newSession(t)
	exec(t, s, "open vdisk0")
	exec(t, s, "writex 3 0102030405")
	exec(t, s, "clear 3")
	exec(t, s, "seek 3 0")
	if got := exec(t, s, "read 3 5"); got != "5 bytes 0000000000\n" {
		t.Errorf("read after clear = %q", got)
	}
	exec(t, s, "ioctl 3 0x6700")
	if err := s.Exec(new(bytes.Buffer), []string{"ioctl", "3", "0x6701"}); !errors.Is(err, device.ErrInvalidArgument) {
		t.Errorf("ioctl 0x6701 error = %v, want ErrInvalidArgument", err)
	}
}

func TestSession_PutGet(t *testing.T) {
	s, _ := newSession(t)
	exec(t, s, "open vdisk0")
	exec(t, s, "put 3 u32 0xCAFEBABE")
	exec(t, s, "put 3 i16 -300")
	exec(t, s, "put 3 f64 1.25")
	exec(t, s, "seek 3 0")
	if got := exec(t, s, "get 3 u32"); got != "u32 at 0 = 3405691582\n" {
		t.Errorf("get u32 = %q", got)
	}
	if got := exec(t, s, "get 3 i16"); got != "i16 at 4 = -300\n" {
		t.Errorf("get i16 = %q", got)
	}
	if got := exec(t, s, "get 3 f64"); got != "f64 at 6 = 1.25\n" {
		t.Errorf("get f64 = %q", got)
	}
	if err := s.Exec(new(bytes.Buffer), []string{"put", "3", "u8", "256"}); !errors.Is(err, ErrUsage) {
		t.Errorf("put u8 256 error = %v, want ErrUsage", err)
	}
	if err := s.Exec(new(bytes.Buffer), []string{"get", "3", "str"}); !errors.Is(err, ErrUsage) {
		t.Errorf("get str error = %v, want ErrUsage", err)
	}
}

func TestSession_AccessMode(t *testing.T) {
	s, _ := newSession(t)
	exec(t, s, "open vdisk0 r")
	if err := s.Exec(new(bytes.Buffer), []string{"write", "3", "x"}); !errors.Is(err, fs.ErrPermission) {
		t.Errorf("write on read-only fd error = %v, want fs.ErrPermission", err)
	}
	if err := s.Exec(new(bytes.Buffer), []string{"open", "vdisk0", "x"}); !errors.Is(err, ErrUsage) {
		t.Errorf("open with bad mode error = %v, want ErrUsage", err)
	}
	if err := s.Exec(new(bytes.Buffer), []string{"open", "vdisk7"}); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("open missing device error = %v, want fs.ErrNotExist", err)
	}
}

type unseekable struct {
	filesystem.File
}

func (unseekable) Seek(int64, int) (int64, error) {
	return 0, fs.ErrInvalid
}

func TestSession_StatSeekError(t *testing.T) {
	s, _ := newSession(t)
	f, err := s.fs.OpenFile("vdisk0", filesystem.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	fd := s.files.create(unseekable{f})
	out := new(bytes.Buffer)
	if err := s.Exec(out, []string{"stat", strconv.Itoa(fd)}); !errors.Is(err, fs.ErrInvalid) {
		t.Errorf("stat error = %v, want fs.ErrInvalid", err)
	}
	if out.Len() != 0 {
		t.Errorf("stat printed %q on error", out.String())
	}
}

func TestSession_Devices(t *testing.T) {
	s, _ := newSession(t)
	exec(t, s, "open vdisk1")
	want := "vdisk0\t230:0\t4096 bytes\t0 open\nvdisk1\t230:1\t4096 bytes\t1 open\n"
	if got := exec(t, s, "devices"); got != want {
		t.Errorf("devices = %q, want %q", got, want)
	}
}

func TestSession_ExecErrors(t *testing.T) {
	s, _ := newSession(t)
	if err := s.Exec(new(bytes.Buffer), []string{"format"}); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("unknown command error = %v, want ErrUnknownCommand", err)
	}
	if err := s.Exec(new(bytes.Buffer), []string{"read", "3"}); !errors.Is(err, ErrUsage) {
		t.Errorf("short args error = %v, want ErrUsage", err)
	}
	if err := s.Exec(new(bytes.Buffer), []string{"stat", "three"}); !errors.Is(err, ErrUsage) {
		t.Errorf("bad fd error = %v, want ErrUsage", err)
	}
	if err := s.Exec(new(bytes.Buffer), nil); err != nil {
		t.Errorf("empty args error = %v, want nil", err)
	}
}

func TestSession_CloseReleasesHandles(t *testing.T) {
	reg, _ := virtual.NewRegistry()
	virtual.Populate(reg, "vdisk", 1, device.CAP_4K)
	s := NewSession(reg)
	exec(t, s, "open vdisk0")
	exec(t, s, "open vdisk0")
	exec(t, s, "dup 3")
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	dev, _ := reg.LookupName("vdisk0")
	if dev.OpenCount() != 0 {
		t.Errorf("OpenCount() = %d after session close, want 0", dev.OpenCount())
	}
}
