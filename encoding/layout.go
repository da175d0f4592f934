package encoding

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/modern-go/reflect2"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

type handler = func(Stream, unsafe.Pointer) error

// layout is the encoded form of one type: its handler, how many bytes it
// occupies on the stream and the boundary it is aligned to there.
type layout struct {
	handler handler
	size    int
	align   int
}

var (
	encodeProcess sync.Map
	decodeProcess sync.Map
	padNull       [8]byte
)

func getLayout(cache *sync.Map, typ reflect2.Type, bs int, build func(reflect2.Type, int) (*layout, error)) (*layout, error) {
	key := [2]uintptr{uintptr(bs), typ.RType()}
	if v, ok := cache.Load(key); ok {
		return v.(*layout), nil
	}
	l, err := build(typ, bs)
	if err != nil {
		return nil, err
	}
	cache.Store(key, l)
	return l, nil
}

// isRaw reports whether the in-memory bytes of typ are already its
// encoded form.
func isRaw(typ reflect2.Type, bs int) bool {
	switch typ.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		return int(typ.Type1().Size()) == bs
	case reflect.Array:
		return isRaw(typ.(reflect2.ArrayType).Elem(), bs)
	case reflect.Struct:
		st := typ.(reflect2.StructType)
		for i := 0; i < st.NumField(); i++ {
			field := st.Field(i)
			if field.Tag().Get("encoding") == "ignore" || !isRaw(field.Type(), bs) {
				return false
			}
		}
		return true
	}
	return false
}

// scalarSize returns the encoded width of a fixed-size kind, with int, uint
// and uintptr taking the stream's block size.
func scalarSize(typ reflect2.Type, bs int) (int, bool) {
	switch typ.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Float32, reflect.Float64:
		return int(typ.Type1().Size()), true
	case reflect.Complex64, reflect.Complex128:
		return int(typ.Type1().Size()), true
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		return bs, true
	}
	return 0, false
}

func scalarAlign(typ reflect2.Type, size int) int {
	switch typ.Kind() {
	case reflect.Complex64, reflect.Complex128:
		return size / 2
	}
	return size
}

func unsupported(typ reflect2.Type) error {
	return errors.Wrap(ErrUnsupportedType, typ.String())
}

func align[I constraints.Integer](a, b I) I {
	if b <= 1 {
		return a
	}
	return (a + b - 1) / b * b
}
