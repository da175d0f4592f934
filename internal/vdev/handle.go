package vdev

import (
	"io"
	"io/fs"

	"github.com/pkg/errors"
	"github.com/wnxd/vdisk/device"
	"github.com/wnxd/vdisk/storage"
)

type handle struct {
	dev    *virtualDevice
	off    int64
	closed bool
}

func (h *handle) Device() device.Device {
	return h.dev
}

func (h *handle) Offset() int64 {
	return h.off
}

func (h *handle) Close() error {
	if h.closed {
		return fs.ErrClosed
	}
	h.closed = true
	h.dev.release()
	return nil
}

func (h *handle) Stat() (fs.FileInfo, error) {
	if h.closed {
		return nil, fs.ErrClosed
	}
	return NewFileInfo(h.dev.Info(), h.dev.created), nil
}

func (h *handle) Seek(offset int64, whence int) (int64, error) {
	if h.closed {
		return 0, fs.ErrClosed
	}
	capacity := int64(h.dev.Capacity())
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = h.off + offset
		if (offset > 0 && target < h.off) || (offset < 0 && target > h.off) {
			return 0, h.fail(device.OP_SEEK, errors.Wrapf(device.ErrInvalidArgument, "seek %+d from %d overflows", offset, h.off))
		}
	default:
		return 0, h.fail(device.OP_SEEK, errors.Wrapf(device.ErrInvalidArgument, "seek whence %d unsupported", whence))
	}
	if target < 0 || target > capacity {
		return 0, h.fail(device.OP_SEEK, errors.Wrapf(device.ErrInvalidArgument, "seek %d outside [0, %d]", target, capacity))
	}
	h.off = target
	h.dev.emit(device.Event{Op: device.OP_SEEK, Device: h.dev.name, Offset: target})
	return target, nil
}

func (h *handle) Read(b []byte) (int, error) {
	return h.ReadTo(storage.Bytes(b), len(b))
}

func (h *handle) Write(b []byte) (int, error) {
	return h.WriteFrom(storage.Bytes(b), len(b))
}

func (h *handle) ReadTo(dst io.WriterAt, n int) (int, error) {
	if h.closed {
		return 0, fs.ErrClosed
	} else if n < 0 {
		return 0, h.fail(device.OP_READ, errors.Wrapf(device.ErrInvalidArgument, "read length %d", n))
	}
	capacity := int64(h.dev.Capacity())
	if h.off >= capacity {
		if n == 0 {
			return 0, nil
		}
		return 0, h.fail(device.OP_READ, errors.Wrapf(device.ErrOutOfRange, "read at %d, capacity %d", h.off, capacity))
	}
	count := storage.Span(h.off, int64(n), capacity)
	chunk := make([]byte, count)
	if read, err := h.dev.buf.ReadAt(chunk, h.off); err != nil {
		return 0, h.fail(device.OP_READ, errors.Wrapf(err, "read %d bytes at %d", count, h.off))
	} else if int64(read) != count {
		return 0, h.fail(device.OP_READ, errors.Wrapf(device.ErrIOFault, "read %d of %d bytes at %d", read, count, h.off))
	}
	if count > 0 {
		written, err := dst.WriteAt(chunk, 0)
		if err != nil {
			return 0, h.fail(device.OP_READ, errors.Wrapf(device.ErrIOFault, "copy %d bytes out: %v", count, err))
		} else if written != len(chunk) {
			return 0, h.fail(device.OP_READ, errors.Wrapf(device.ErrIOFault, "copy out %d of %d bytes", written, count))
		}
	}
	h.dev.emit(device.Event{Op: device.OP_READ, Device: h.dev.name, Offset: h.off, Count: int(count)})
	h.off += count
	return int(count), nil
}

func (h *handle) WriteFrom(src io.ReaderAt, n int) (int, error) {
	if h.closed {
		return 0, fs.ErrClosed
	} else if n < 0 {
		return 0, h.fail(device.OP_WRITE, errors.Wrapf(device.ErrInvalidArgument, "write length %d", n))
	}
	capacity := int64(h.dev.Capacity())
	count := storage.Span(h.off, int64(n), capacity)
	if count == 0 {
		return 0, nil
	}
	staged := make([]byte, count)
	read, err := src.ReadAt(staged, 0)
	if read != len(staged) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return 0, h.fail(device.OP_WRITE, errors.Wrapf(device.ErrIOFault, "copy %d bytes in: %v", count, err))
	}
	if written, err := h.dev.buf.WriteAt(staged, h.off); err != nil {
		return 0, h.fail(device.OP_WRITE, errors.Wrapf(err, "write %d bytes at %d", count, h.off))
	} else if int64(written) != count {
		return 0, h.fail(device.OP_WRITE, errors.Wrapf(device.ErrIOFault, "wrote %d of %d bytes at %d", written, count, h.off))
	}
	h.dev.emit(device.Event{Op: device.OP_WRITE, Device: h.dev.name, Offset: h.off, Count: int(count)})
	h.off += count
	return int(count), nil
}

func (h *handle) Control(op int, arg any) error {
	if h.closed {
		return fs.ErrClosed
	}
	switch op {
	case device.CMD_MEM_CLEAR:
		h.dev.buf.Zero()
		h.dev.emit(device.Event{Op: device.OP_CONTROL, Device: h.dev.name, Offset: h.off})
		return nil
	}
	return h.fail(device.OP_CONTROL, errors.Wrapf(device.ErrInvalidArgument, "control command %#x", op))
}

func (h *handle) fail(op device.Op, err error) error {
	h.dev.emit(device.Event{Op: op, Device: h.dev.name, Offset: h.off, Err: err})
	return err
}
