package encoding

import (
	"reflect"
	"unsafe"

	"github.com/modern-go/reflect2"
)

// DecodeSize returns how many bytes Decode consumes for the value val
// points to.
func DecodeSize(blockSize int, val any) (int, error) {
	typ, _, err := target(val)
	if err != nil {
		return 0, err
	}
	l, err := getLayout(&decodeProcess, typ, blockSize, decode)
	if err != nil {
		return 0, err
	}
	return l.size, nil
}

// Decode fills the value val points to from the layout Encode produces.
func Decode(stream Stream, val any) error {
	typ, ptr, err := target(val)
	if err != nil {
		return err
	}
	l, err := getLayout(&decodeProcess, typ, stream.BlockSize(), decode)
	if err != nil {
		return err
	}
	return l.handler(stream, ptr)
}

func target(val any) (reflect2.Type, unsafe.Pointer, error) {
	typ := reflect2.TypeOf(val)
	if typ == nil || typ.Kind() != reflect.Pointer {
		return nil, nil, ErrNotPointer
	}
	ptr := reflect2.PtrOf(val)
	if ptr == nil {
		return nil, nil, ErrNotPointer
	}
	return typ.(reflect2.PtrType).Elem(), ptr, nil
}

func decode(typ reflect2.Type, bs int) (*layout, error) {
	if size, ok := scalarSize(typ, bs); ok {
		native := int(typ.Type1().Size())
		if native == size {
			return &layout{rawReader(size), size, scalarAlign(typ, size)}, nil
		}
		return &layout{resizeReader(native, size), size, size}, nil
	}
	switch typ.Kind() {
	case reflect.Array:
		return decodeArray(typ.(reflect2.ArrayType), bs)
	case reflect.Struct:
		return decodeStruct(typ.(reflect2.StructType), bs)
	}
	return nil, unsupported(typ)
}

func rawReader(size int) handler {
	return func(stream Stream, ptr unsafe.Pointer) error {
		_, err := stream.Read(unsafe.Slice((*byte)(ptr), size))
		return err
	}
}

// resizeReader fills a native word from size bytes, zeroing the rest. Signed
// kinds are not sign-extended; the word holds the low bytes as stored.
func resizeReader(native, size int) handler {
	n, skip := min(native, size), max(size-native, 0)
	return func(stream Stream, ptr unsafe.Pointer) error {
		word := unsafe.Slice((*byte)(ptr), native)
		clear(word)
		if _, err := stream.Read(word[:n]); err != nil {
			return err
		}
		if skip > 0 {
			return stream.Skip(skip)
		}
		return nil
	}
}

func skipPad(stream Stream, pad int) error {
	if pad > 0 {
		return stream.Skip(pad)
	}
	return nil
}

func decodeArray(typ reflect2.ArrayType, bs int) (*layout, error) {
	count := typ.Len()
	elem, err := decode(typ.Elem(), bs)
	if err != nil {
		return nil, err
	}
	if isRaw(typ, bs) {
		size := int(typ.Type1().Size())
		return &layout{rawReader(size), size, elem.align}, nil
	}
	stride := typ.Elem().Type1().Size()
	return &layout{func(stream Stream, ptr unsafe.Pointer) error {
		for i := 0; i < count; i++ {
			if err := elem.handler(stream, unsafe.Add(ptr, uintptr(i)*stride)); err != nil {
				return err
			}
		}
		return nil
	}, elem.size * count, elem.align}, nil
}

func decodeStruct(typ reflect2.StructType, bs int) (*layout, error) {
	if isRaw(typ, bs) {
		size := int(typ.Type1().Size())
		return &layout{rawReader(size), size, typ.Type1().Align()}, nil
	}
	fields, size, maxAlign, err := structFields(typ, bs, decode)
	if err != nil {
		return nil, err
	}
	total := align(size, maxAlign)
	tail := total - size
	return &layout{func(stream Stream, ptr unsafe.Pointer) error {
		for _, field := range fields {
			if err := skipPad(stream, field.pad); err != nil {
				return err
			}
			if err := field.handler(stream, unsafe.Add(ptr, field.offset)); err != nil {
				return err
			}
		}
		return skipPad(stream, tail)
	}, total, maxAlign}, nil
}
