package device

import "errors"

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrOutOfRange        = errors.New("out of range")
	ErrIOFault           = errors.New("io fault")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrBusy              = errors.New("device busy")
)
