package usermem

import (
	"errors"
	"fmt"
)

var (
	ErrFault         = errors.New("bad address")
	ErrRegionInvalid = errors.New("region invalid")
	ErrRegionOverlap = errors.New("region overlap")
)

// FaultError reports an access that touched unmapped memory or memory
// whose protection forbids it.
type FaultError struct {
	Addr, Size uint64
	Write      bool
	Prot       MemProt
}

func (e *FaultError) Error() string {
	access := "read"
	if e.Write {
		access = "write"
	}
	return fmt.Sprintf("[Fault] %s, addr: %016X, size: %d, prot: %d", access, e.Addr, e.Size, e.Prot)
}

func (e *FaultError) Is(target error) bool {
	return target == ErrFault
}
