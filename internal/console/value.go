package console

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/wnxd/vdisk/encoding"
)

// Values are encoded with the block size of a 64-bit host.
const blockSize = 8

func (s *Session) put(out io.Writer, args []string) error {
	stream, err := s.stream(args[0])
	if err != nil {
		return err
	}
	val, err := parseValue(args[1], args[2])
	if err != nil {
		return err
	}
	start := stream.Offset()
	if err = encoding.Encode(stream, val); err != nil {
		return err
	}
	fmt.Fprintf(out, "put %s at %d\n", args[1], start)
	return nil
}

func (s *Session) get(out io.Writer, args []string) error {
	stream, err := s.stream(args[0])
	if err != nil {
		return err
	}
	ptr, err := newValue(args[1])
	if err != nil {
		return err
	}
	start := stream.Offset()
	if err = encoding.Decode(stream, ptr); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s at %d = %v\n", args[1], start, deref(ptr))
	return nil
}

func (s *Session) stream(arg string) (encoding.Stream, error) {
	file, err := s.file(arg)
	if err != nil {
		return nil, err
	}
	rws, ok := file.(io.ReadWriteSeeker)
	if !ok {
		return nil, ErrNotSupported
	}
	return encoding.SeekStream(rws, blockSize)
}

func newValue(typ string) (any, error) {
	switch typ {
	case "u8":
		return new(uint8), nil
	case "u16":
		return new(uint16), nil
	case "u32":
		return new(uint32), nil
	case "u64":
		return new(uint64), nil
	case "i8":
		return new(int8), nil
	case "i16":
		return new(int16), nil
	case "i32":
		return new(int32), nil
	case "i64":
		return new(int64), nil
	case "f32":
		return new(float32), nil
	case "f64":
		return new(float64), nil
	}
	return nil, errors.Wrapf(ErrUsage, "type %q", typ)
}

func parseValue(typ, text string) (any, error) {
	ptr, err := newValue(typ)
	if err != nil {
		return nil, err
	}
	switch p := ptr.(type) {
	case *uint8, *uint16, *uint32, *uint64:
		var u uint64
		if u, err = strconv.ParseUint(text, 0, bits(typ)); err == nil {
			switch p := p.(type) {
			case *uint8:
				*p = uint8(u)
			case *uint16:
				*p = uint16(u)
			case *uint32:
				*p = uint32(u)
			case *uint64:
				*p = u
			}
		}
	case *int8, *int16, *int32, *int64:
		var i int64
		if i, err = strconv.ParseInt(text, 0, bits(typ)); err == nil {
			switch p := p.(type) {
			case *int8:
				*p = int8(i)
			case *int16:
				*p = int16(i)
			case *int32:
				*p = int32(i)
			case *int64:
				*p = i
			}
		}
	case *float32:
		var f float64
		f, err = strconv.ParseFloat(text, 32)
		*p = float32(f)
	case *float64:
		*p, err = strconv.ParseFloat(text, 64)
	}
	if err != nil {
		return nil, errors.Wrapf(ErrUsage, "%s value %q", typ, text)
	}
	return ptr, nil
}

func bits(typ string) int {
	n, _ := strconv.Atoi(typ[1:])
	return n
}

func deref(ptr any) any {
	switch p := ptr.(type) {
	case *uint8:
		return *p
	case *uint16:
		return *p
	case *uint32:
		return *p
	case *uint64:
		return *p
	case *int8:
		return *p
	case *int16:
		return *p
	case *int32:
		return *p
	case *int64:
		return *p
	case *float32:
		return *p
	case *float64:
		return *p
	}
	return ptr
}

func hexString(b []byte) string {
	if len(b) == 0 {
		return "-"
	}
	return hex.EncodeToString(b)
}

func parseHex(text string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(text, "0x"))
}
