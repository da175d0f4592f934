package device

import "fmt"

type Op int

const (
	OP_OPEN Op = iota
	OP_CLOSE
	OP_READ
	OP_WRITE
	OP_SEEK
	OP_CONTROL
	OP_RESET
)

var opNames = [...]string{"open", "close", "read", "write", "seek", "control", "reset"}

func (op Op) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return fmt.Sprintf("op(%d)", int(op))
	}
	return opNames[op]
}

// Event describes one finished operation on a device.
type Event struct {
	Op     Op
	Device string
	Offset int64
	Count  int
	Err    error
}

type TraceCallback = func(Event)

func (e Event) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s at %d failed: %v", e.Device, e.Op, e.Offset, e.Err)
	}
	switch e.Op {
	case OP_READ:
		return fmt.Sprintf("%s: read %d bytes from %d", e.Device, e.Count, e.Offset)
	case OP_WRITE:
		return fmt.Sprintf("%s: write %d bytes to %d", e.Device, e.Count, e.Offset)
	case OP_SEEK:
		return fmt.Sprintf("%s: seek to %d", e.Device, e.Offset)
	case OP_RESET, OP_CONTROL:
		return fmt.Sprintf("%s: memory cleaned", e.Device)
	}
	return fmt.Sprintf("%s: %s, %d open", e.Device, e.Op, e.Count)
}
