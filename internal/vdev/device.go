package vdev

import (
	"io/fs"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/wnxd/vdisk/device"
	"github.com/wnxd/vdisk/storage"
)

type Option func(*virtualDevice)

func WithTrace(callback device.TraceCallback) Option {
	return func(dev *virtualDevice) {
		dev.trace = callback
	}
}

func WithNumber(num device.Number) Option {
	return func(dev *virtualDevice) {
		dev.num.Store(uint32(num))
	}
}

type virtualDevice struct {
	name    string
	buf     *storage.Buffer
	count   int64
	num     atomic.Uint32
	trace   device.TraceCallback
	created time.Time
}

func NewDevice(name string, capacity int, opts ...Option) (device.Device, error) {
	buf, err := storage.New(capacity, device.CAP_MAX)
	if err != nil {
		return nil, errors.Wrapf(device.ErrResourceExhausted, "allocate %d bytes for %s", capacity, name)
	}
	dev := &virtualDevice{name: name, buf: buf, created: time.Now()}
	for _, opt := range opts {
		opt(dev)
	}
	return dev, nil
}

func (dev *virtualDevice) Name() string {
	return dev.name
}

func (dev *virtualDevice) Number() device.Number {
	return device.Number(dev.num.Load())
}

func (dev *virtualDevice) Capacity() int {
	return dev.buf.Cap()
}

func (dev *virtualDevice) OpenCount() int {
	return int(atomic.LoadInt64(&dev.count))
}

func (dev *virtualDevice) Open() (device.Handle, error) {
	n := atomic.AddInt64(&dev.count, 1)
	dev.emit(device.Event{Op: device.OP_OPEN, Device: dev.name, Count: int(n)})
	return &handle{dev: dev}, nil
}

func (dev *virtualDevice) release() {
	n := atomic.AddInt64(&dev.count, -1)
	dev.emit(device.Event{Op: device.OP_CLOSE, Device: dev.name, Count: int(n)})
}

func (dev *virtualDevice) Reset() {
	dev.buf.Zero()
	dev.emit(device.Event{Op: device.OP_RESET, Device: dev.name})
}

func (dev *virtualDevice) Info() device.Info {
	return device.Info{
		Name:      dev.name,
		Number:    dev.Number(),
		Capacity:  dev.Capacity(),
		OpenCount: dev.OpenCount(),
	}
}

// bind records the number a registry assigned. A device already bound to a
// different number stays with its first registration.
func (dev *virtualDevice) bind(num device.Number) bool {
	return dev.num.CompareAndSwap(0, uint32(num)) || dev.num.Load() == uint32(num)
}

func (dev *virtualDevice) unbind(num device.Number) {
	dev.num.CompareAndSwap(uint32(num), 0)
}

func (dev *virtualDevice) emit(ev device.Event) {
	if dev.trace != nil {
		dev.trace(ev)
	}
}

// NewFileInfo describes a device as a character file whose size is its
// capacity. Sys returns the device.Info.
func NewFileInfo(info device.Info, modTime time.Time) fs.FileInfo {
	return deviceInfo{info: info, modTime: modTime}
}

type deviceInfo struct {
	info    device.Info
	modTime time.Time
}

func (fi deviceInfo) Name() string {
	return fi.info.Name
}

func (fi deviceInfo) Size() int64 {
	return int64(fi.info.Capacity)
}

func (fi deviceInfo) Mode() fs.FileMode {
	return fs.ModeDevice | fs.ModeCharDevice | 0o666
}

func (fi deviceInfo) ModTime() time.Time {
	return fi.modTime
}

func (fi deviceInfo) IsDir() bool {
	return false
}

func (fi deviceInfo) Sys() any {
	return fi.info
}
