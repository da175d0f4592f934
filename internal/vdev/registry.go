package vdev

import (
	"io/fs"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"github.com/wnxd/vdisk/device"
)

type RegistryOption func(*registry)

// WithMajor sets the major number. Zero keeps device.DEFAULT_MAJOR.
func WithMajor(major uint32) RegistryOption {
	return func(r *registry) {
		if major != 0 {
			r.major = major
		}
	}
}

// WithLimit caps the number of devices, never above device.MAX_DEVICES.
func WithLimit(limit int) RegistryOption {
	return func(r *registry) {
		if limit > 0 && limit < r.limit {
			r.limit = limit
		}
	}
}

type registry struct {
	major   uint32
	limit   int
	next    uint32
	rw      sync.RWMutex
	devices map[uint32]device.Device
}

type binder interface {
	bind(device.Number) bool
	unbind(device.Number)
}

// NewRegistry fails with device.ErrInvalidArgument when the major does not
// fit above the minor bits of a device.Number.
func NewRegistry(opts ...RegistryOption) (device.Registry, error) {
	r := &registry{
		major:   device.DEFAULT_MAJOR,
		limit:   device.MAX_DEVICES,
		devices: make(map[uint32]device.Device),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.major > device.MAX_MAJOR {
		return nil, errors.Wrapf(device.ErrInvalidArgument, "major %d above %d", r.major, device.MAX_MAJOR)
	}
	return r, nil
}

func (r *registry) Major() uint32 {
	return r.major
}

func (r *registry) Register(dev device.Device) (device.Number, error) {
	r.rw.Lock()
	defer r.rw.Unlock()
	if err := r.check(dev); err != nil {
		return 0, err
	}
	for ; r.next <= device.MAX_MINOR; r.next++ {
		if _, ok := r.devices[r.next]; !ok {
			minor := r.next
			r.next++
			return r.insert(minor, dev)
		}
	}
	return 0, errors.Wrapf(device.ErrResourceExhausted, "minor numbers above %d", device.MAX_MINOR)
}

func (r *registry) RegisterAt(minor uint32, dev device.Device) (device.Number, error) {
	r.rw.Lock()
	defer r.rw.Unlock()
	if minor > device.MAX_MINOR {
		return 0, errors.Wrapf(device.ErrInvalidArgument, "minor %d above %d", minor, device.MAX_MINOR)
	}
	if err := r.check(dev); err != nil {
		return 0, err
	}
	if _, ok := r.devices[minor]; ok {
		return 0, errors.Wrapf(fs.ErrExist, "minor %d", minor)
	}
	return r.insert(minor, dev)
}

func (r *registry) check(dev device.Device) error {
	if dev == nil {
		return errors.Wrap(device.ErrInvalidArgument, "nil device")
	}
	if len(r.devices) >= r.limit {
		return errors.Wrapf(device.ErrResourceExhausted, "registry holds %d devices", r.limit)
	}
	for _, d := range r.devices {
		if d == dev {
			return errors.Wrapf(fs.ErrExist, "device %s", dev.Name())
		} else if d.Name() == dev.Name() {
			return errors.Wrapf(fs.ErrExist, "device name %s", dev.Name())
		}
	}
	return nil
}

func (r *registry) insert(minor uint32, dev device.Device) (device.Number, error) {
	num := device.MkNumber(r.major, minor)
	if b, ok := dev.(binder); ok && !b.bind(num) {
		return 0, errors.Wrapf(device.ErrBusy, "device %s registered as %s", dev.Name(), dev.Number())
	}
	r.devices[minor] = dev
	return num, nil
}

func (r *registry) Unregister(num device.Number) error {
	r.rw.Lock()
	defer r.rw.Unlock()
	dev, err := r.lookup(num)
	if err != nil {
		return err
	}
	if n := dev.OpenCount(); n > 0 {
		return errors.Wrapf(device.ErrBusy, "device %s has %d open handles", dev.Name(), n)
	}
	delete(r.devices, num.Minor())
	if b, ok := dev.(binder); ok {
		b.unbind(num)
	}
	return nil
}

func (r *registry) Lookup(num device.Number) (device.Device, error) {
	r.rw.RLock()
	defer r.rw.RUnlock()
	return r.lookup(num)
}

func (r *registry) lookup(num device.Number) (device.Device, error) {
	if num.Major() != r.major {
		return nil, errors.Wrapf(fs.ErrNotExist, "device %s", num)
	}
	dev, ok := r.devices[num.Minor()]
	if !ok {
		return nil, errors.Wrapf(fs.ErrNotExist, "device %s", num)
	}
	return dev, nil
}

func (r *registry) LookupName(name string) (device.Device, error) {
	r.rw.RLock()
	defer r.rw.RUnlock()
	for _, dev := range r.devices {
		if dev.Name() == name {
			return dev, nil
		}
	}
	return nil, errors.Wrapf(fs.ErrNotExist, "device %s", name)
}

func (r *registry) Open(num device.Number) (device.Handle, error) {
	dev, err := r.Lookup(num)
	if err != nil {
		return nil, err
	}
	return dev.Open()
}

// Devices lists registered devices ordered by minor number.
func (r *registry) Devices() []device.Info {
	r.rw.RLock()
	defer r.rw.RUnlock()
	arr := make([]device.Info, 0, len(r.devices))
	for minor, dev := range r.devices {
		info := dev.Info()
		info.Number = device.MkNumber(r.major, minor)
		arr = append(arr, info)
	}
	slices.SortFunc(arr, func(a, b device.Info) int { return int(a.Number.Minor()) - int(b.Number.Minor()) })
	return arr
}
