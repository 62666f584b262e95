package sqcrab

import (
	"fmt"
	"reflect"
	"strconv"

	lua "github.com/yuin/gopher-lua"
)

type baseType struct {
	name string
	kind Kind
}

func (bt *baseType) Name() string {
	return bt.name
}

func (bt *baseType) Kind() Kind {
	return bt.kind
}

// wireType converts between Go values of one reflect.Kind and engine values.
type wireType interface {
	Name() string
	Kind() Kind
	ToWire(vm *VM, rv reflect.Value) (lua.LValue, error)
	FromWire(vm *VM, lv lua.LValue, rt reflect.Type) (reflect.Value, error)
}

var (
	boolWire    = &boolType{baseType{name: "bool", kind: KindBool}}
	stringWire  = &stringType{baseType{name: "string", kind: KindString}}
	bytesWire   = &bytesType{baseType{name: "[]byte", kind: KindString}}
	float32Wire = &floatType{baseType: baseType{name: "float32", kind: KindFloat}, size: 4}
	float64Wire = &floatType{baseType: baseType{name: "float64", kind: KindFloat}, size: 8}
	anyWire     = &anyType{baseType{name: "any", kind: KindUnknown}}
	refWire     = &refType{baseType{name: "reference", kind: KindReference}}
	structWire  = &structType{baseType{name: "struct", kind: KindReference}}
)

func newIntType(name string, size int, signed bool) *intType {
	return &intType{
		baseType: baseType{name: name, kind: KindInteger},
		size:     size,
		signed:   signed,
	}
}

var intWires = map[reflect.Kind]*intType{
	reflect.Int:     newIntType("int", strconv.IntSize/8, true),
	reflect.Int8:    newIntType("int8", 1, true),
	reflect.Int16:   newIntType("int16", 2, true),
	reflect.Int32:   newIntType("int32", 4, true),
	reflect.Int64:   newIntType("int64", 8, true),
	reflect.Uint:    newIntType("uint", strconv.IntSize/8, false),
	reflect.Uint8:   newIntType("uint8", 1, false),
	reflect.Uint16:  newIntType("uint16", 2, false),
	reflect.Uint32:  newIntType("uint32", 4, false),
	reflect.Uint64:  newIntType("uint64", 8, false),
	reflect.Uintptr: newIntType("uintptr", strconv.IntSize/8, false),
}

func wireTypeFor(rt reflect.Type) (wireType, error) {
	if it, ok := intWires[rt.Kind()]; ok {
		return it, nil
	}

	switch rt.Kind() {
	case reflect.Bool:
		return boolWire, nil
	case reflect.String:
		return stringWire, nil
	case reflect.Float32:
		return float32Wire, nil
	case reflect.Float64:
		return float64Wire, nil
	case reflect.Interface:
		return anyWire, nil
	case reflect.Pointer:
		return refWire, nil
	case reflect.Struct:
		return structWire, nil
	case reflect.Slice:
		if rt.Elem().Kind() == reflect.Uint8 {
			return bytesWire, nil
		}
		elem, err := wireTypeFor(rt.Elem())
		if err != nil {
			return nil, err
		}
		return &sliceType{baseType: baseType{name: "[]" + elem.Name(), kind: KindArray}, elem: elem}, nil
	case reflect.Map:
		if rt.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map keys must be strings, have %s", ErrUnsupportedType, rt.Key())
		}
		elem, err := wireTypeFor(rt.Elem())
		if err != nil {
			return nil, err
		}
		return &mapType{baseType: baseType{name: "map[string]" + elem.Name(), kind: KindTable}, elem: elem}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, rt)
}
