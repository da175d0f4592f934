package device

import (
	"io"
	"io/fs"
)

type Device interface {
	Name() string
	Number() Number
	Capacity() int
	OpenCount() int
	Open() (Handle, error)
	Reset()
	Info() Info
}

// Handle is one open session on a device. Its offset is private to the
// handle; a single handle must not be used by two goroutines at once.
type Handle interface {
	io.ReadWriteSeeker
	io.Closer
	Stat() (fs.FileInfo, error)
	Control(op int, arg any) error
	// ReadTo copies up to n bytes at the cursor into dst at offset 0.
	ReadTo(dst io.WriterAt, n int) (int, error)
	// WriteFrom copies up to n bytes from src at offset 0 to the cursor.
	WriteFrom(src io.ReaderAt, n int) (int, error)
	Offset() int64
	Device() Device
}

type Registry interface {
	Major() uint32
	Register(dev Device) (Number, error)
	RegisterAt(minor uint32, dev Device) (Number, error)
	Unregister(num Number) error
	Lookup(num Number) (Device, error)
	LookupName(name string) (Device, error)
	Open(num Number) (Handle, error)
	Devices() []Info
}

type Info struct {
	Name      string
	Number    Number
	Capacity  int
	OpenCount int
}
