package encoding

import "errors"

var (
	ErrUnsupportedType = errors.New("unsupported type")
	ErrNotPointer      = errors.New("decode target is not a non-nil pointer")
)
