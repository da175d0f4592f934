package device

import "fmt"

const (
	CAP_4K  = 0x1000
	CAP_8K  = 0x2000
	CAP_MAX = 0x100000
)

const (
	DEFAULT_MAJOR = 230
	MAX_DEVICES   = 4
)

const (
	MEM_MAGIC = 'g'

	CMD_MEM_CLEAR = int(MEM_MAGIC)<<8 | 0
)

const (
	minorBits = 20
	minorMask = 1<<minorBits - 1

	MAX_MINOR = minorMask
	MAX_MAJOR = 1<<(32-minorBits) - 1
)

// IO builds a command number without a data direction or argument size,
// the same packing as the Linux _IO macro.
func IO(magic, nr uint8) int {
	return int(magic)<<8 | int(nr)
}

// Number identifies a registered device by major and minor.
type Number uint32

func MkNumber(major, minor uint32) Number {
	return Number(major<<minorBits | minor&minorMask)
}

func (n Number) Major() uint32 {
	return uint32(n) >> minorBits
}

func (n Number) Minor() uint32 {
	return uint32(n) & minorMask
}

func (n Number) String() string {
	return fmt.Sprintf("%d:%d", n.Major(), n.Minor())
}
