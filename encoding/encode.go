package encoding

import (
	"io"
	"reflect"
	"unsafe"

	"github.com/modern-go/reflect2"
	"github.com/pkg/errors"
)

// EncodeSize returns how many bytes Encode writes for val.
func EncodeSize(blockSize int, val any) (int, error) {
	typ := reflect2.TypeOf(val)
	if typ == nil {
		return 0, errors.Wrap(ErrUnsupportedType, "nil")
	} else if typ.Kind() == reflect.Pointer {
		typ = typ.(reflect2.PtrType).Elem()
	}
	l, err := getLayout(&encodeProcess, typ, blockSize, encode)
	if err != nil {
		return 0, err
	}
	return l.size, nil
}

// Encode writes val, or the value val points to, in host byte order with
// C struct alignment. Fields tagged `encoding:"ignore"` are left out.
// A record that does not fit before the end of a sized stream fails with
// io.ErrShortWrite and writes nothing.
func Encode(stream Stream, val any) error {
	typ := reflect2.TypeOf(val)
	if typ == nil {
		return errors.Wrap(ErrUnsupportedType, "nil")
	}
	ptr := reflect2.PtrOf(val)
	if typ.Kind() == reflect.Pointer {
		if ptr == nil {
			return errors.Wrap(ErrUnsupportedType, "nil pointer")
		}
		typ = typ.(reflect2.PtrType).Elem()
	}
	l, err := getLayout(&encodeProcess, typ, stream.BlockSize(), encode)
	if err != nil {
		return err
	}
	if ss, ok := stream.(sizedStream); ok {
		if left := ss.Remaining(); left >= 0 && left < int64(l.size) {
			return errors.Wrapf(io.ErrShortWrite, "%d byte record, %d bytes left", l.size, left)
		}
	}
	return l.handler(stream, ptr)
}

func encode(typ reflect2.Type, bs int) (*layout, error) {
	if size, ok := scalarSize(typ, bs); ok {
		native := int(typ.Type1().Size())
		if native == size {
			return &layout{rawWriter(size), size, scalarAlign(typ, size)}, nil
		}
		return &layout{resizeWriter(native, size), size, size}, nil
	}
	switch typ.Kind() {
	case reflect.Array:
		return encodeArray(typ.(reflect2.ArrayType), bs)
	case reflect.Struct:
		return encodeStruct(typ.(reflect2.StructType), bs)
	}
	return nil, unsupported(typ)
}

func rawWriter(size int) handler {
	return func(stream Stream, ptr unsafe.Pointer) error {
		_, err := stream.Write(unsafe.Slice((*byte)(ptr), size))
		return err
	}
}

// resizeWriter narrows or zero-extends a native word to size bytes.
func resizeWriter(native, size int) handler {
	n, pad := min(native, size), max(size-native, 0)
	return func(stream Stream, ptr unsafe.Pointer) error {
		_, err := stream.Write(unsafe.Slice((*byte)(ptr), n))
		if err != nil {
			return err
		}
		return writePad(stream, pad)
	}
}

func writePad(stream Stream, pad int) error {
	for pad > 0 {
		n := min(pad, len(padNull))
		if _, err := stream.Write(padNull[:n]); err != nil {
			return err
		}
		pad -= n
	}
	return nil
}

func encodeArray(typ reflect2.ArrayType, bs int) (*layout, error) {
	count := typ.Len()
	elem, err := encode(typ.Elem(), bs)
	if err != nil {
		return nil, err
	}
	if isRaw(typ, bs) {
		size := int(typ.Type1().Size())
		return &layout{rawWriter(size), size, elem.align}, nil
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

type fieldData struct {
	handler handler
	offset  uintptr
	pad     int
}

func encodeStruct(typ reflect2.StructType, bs int) (*layout, error) {
	if isRaw(typ, bs) {
		size := int(typ.Type1().Size())
		return &layout{rawWriter(size), size, typ.Type1().Align()}, nil
	}
	fields, size, maxAlign, err := structFields(typ, bs, encode)
	if err != nil {
		return nil, err
	}
	total := align(size, maxAlign)
	tail := total - size
	return &layout{func(stream Stream, ptr unsafe.Pointer) error {
		for _, field := range fields {
			if err := writePad(stream, field.pad); err != nil {
				return err
			}
			if err := field.handler(stream, unsafe.Add(ptr, field.offset)); err != nil {
				return err
			}
		}
		return writePad(stream, tail)
	}, total, maxAlign}, nil
}

// structFields lays out the encoded fields of typ, returning the unpadded
// size and the largest field alignment.
func structFields(typ reflect2.StructType, bs int, build func(reflect2.Type, int) (*layout, error)) ([]fieldData, int, int, error) {
	var (
		fields   []fieldData
		size     int
		maxAlign = 1
	)
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Tag().Get("encoding") == "ignore" {
			continue
		}
		l, err := build(field.Type(), bs)
		if err != nil {
			return nil, 0, 0, errors.Wrapf(err, "field %s", field.Name())
		}
		offset := align(size, l.align)
		fields = append(fields, fieldData{l.handler, field.Offset(), offset - size})
		size = offset + l.size
		maxAlign = max(maxAlign, l.align)
	}
	return fields, size, maxAlign, nil
}
