package sqcrab

import (
	"fmt"
	"math"
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

type floatType struct {
	baseType
	size int
}

func (ft *floatType) FromWire(vm *VM, lv lua.LValue, rt reflect.Type) (reflect.Value, error) {
	n, ok := lv.(lua.LNumber)
	if !ok {
		return reflect.Value{}, mismatch(KindFloat, lv)
	}

	out := reflect.New(rt).Elem()
	if ft.size == 4 {
		f := float64(n)
		if !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
			return reflect.Value{}, fmt.Errorf("%w: %v does not fit %s", ErrOutOfRange, f, rt)
		}
		out.SetFloat(float64(float32(n)))
	} else {
		out.SetFloat(float64(n))
	}

	return out, nil
}

func (ft *floatType) ToWire(vm *VM, rv reflect.Value) (lua.LValue, error) {
	return lua.LNumber(rv.Float()), nil
}
