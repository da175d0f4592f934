// Package virtual builds in-memory devices and the registry that numbers them.
package virtual

import (
	"strconv"

	"github.com/wnxd/vdisk/device"
	"github.com/wnxd/vdisk/internal/vdev"
)

type (
	Option         = vdev.Option
	RegistryOption = vdev.RegistryOption
)

// New creates a device whose buffer holds exactly capacity zero bytes.
// A capacity outside (0, device.CAP_MAX] fails with
// device.ErrResourceExhausted.
func New(name string, capacity int, opts ...Option) (device.Device, error) {
	return vdev.NewDevice(name, capacity, opts...)
}

// WithTrace installs a callback invoked after every operation.
func WithTrace(callback device.TraceCallback) Option {
	return vdev.WithTrace(callback)
}

func WithNumber(num device.Number) Option {
	return vdev.WithNumber(num)
}

// NewRegistry fails with device.ErrInvalidArgument for a major above
// device.MAX_MAJOR.
func NewRegistry(opts ...RegistryOption) (device.Registry, error) {
	return vdev.NewRegistry(opts...)
}

func WithMajor(major uint32) RegistryOption {
	return vdev.WithMajor(major)
}

func WithLimit(limit int) RegistryOption {
	return vdev.WithLimit(limit)
}

// Populate registers count devices named prefix0, prefix1, ... of the given
// capacity. Devices registered before a failure stay registered.
func Populate(reg device.Registry, prefix string, count, capacity int, opts ...Option) ([]device.Device, error) {
	devs := make([]device.Device, 0, count)
	for i := range count {
		dev, err := New(prefix+strconv.Itoa(i), capacity, opts...)
		if err != nil {
			return devs, err
		}
		if _, err = reg.Register(dev); err != nil {
			return devs, err
		}
		devs = append(devs, dev)
	}
	return devs, nil
}

