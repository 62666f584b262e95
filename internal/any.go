package sqcrab

import (
	"fmt"
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

// anyType handles interface typed values. Going to the host it picks the
// natural Go type for the engine value: integers become int64, other numbers
// float64, arrays []any and tables map[string]any. An empty table has no
// shape to go by and becomes an empty map[string]any. Functions and foreign
// userdata are passed through as engine values.
type anyType struct {
	baseType
}

func (at *anyType) natural(vm *VM, lv lua.LValue) (any, error) {
	switch v := lv.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(v), nil
	case lua.LString:
		return string(v), nil
	case lua.LNumber:
		if KindOf(v) == KindInteger && float64(v) <= maxExactInteger && float64(v) >= -maxExactInteger {
			return int64(v), nil
		}
		return float64(v), nil
	case *lua.LUserData:
		if handle, ok := v.Value.(*refHandle); ok {
			return vm.refs.resolve(handle)
		}
		return v, nil
	case *lua.LTable:
		release, err := vm.visit(v)
		if err != nil {
			return nil, err
		}
		defer release()

		if isArrayTable(v) {
			out := make([]any, 0, v.Len())
			for i := 1; i <= v.Len(); i++ {
				elem, err := at.natural(vm, v.RawGetInt(i))
				if err != nil {
					return nil, fmt.Errorf("could not convert element %d: %w", i-1, err)
				}
				out = append(out, elem)
			}
			return out, nil
		}

		out := map[string]any{}
		var convErr error
		v.ForEach(func(k lua.LValue, val lua.LValue) {
			if convErr != nil {
				return
			}
			elem, err := at.natural(vm, val)
			if err != nil {
				convErr = fmt.Errorf("could not convert field %s: %w", k, err)
				return
			}
			out[k.String()] = elem
		})
		if convErr != nil {
			return nil, convErr
		}
		return out, nil
	}

	return lv, nil
}

func (at *anyType) FromWire(vm *VM, lv lua.LValue, rt reflect.Type) (reflect.Value, error) {
	val, err := at.natural(vm, lv)
	if err != nil {
		return reflect.Value{}, err
	}

	out := reflect.New(rt).Elem()
	if val == nil {
		return out, nil
	}

	v := reflect.ValueOf(val)
	if !v.Type().AssignableTo(rt) {
		return reflect.Value{}, &TypeMismatchError{
			Expected: KindUnknown,
			Actual:   KindOf(lv),
			Want:     rt.String(),
			Got:      v.Type().String(),
		}
	}

	out.Set(v)
	return out, nil
}

func (at *anyType) ToWire(vm *VM, rv reflect.Value) (lua.LValue, error) {
	if rv.IsNil() {
		return lua.LNil, nil
	}

	return toWire(vm, rv.Elem().Interface())
}
