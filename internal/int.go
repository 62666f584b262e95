package sqcrab

import (
	"fmt"
	"math"
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

// maxExactInteger is the largest magnitude a float64 number holds without
// losing integer precision.
const maxExactInteger = 1 << 53

type intType struct {
	baseType
	size   int
	signed bool
}

func (it *intType) bounds() (float64, float64) {
	bits := uint(it.size * 8)
	if it.signed {
		return -math.Ldexp(1, int(bits-1)), math.Ldexp(1, int(bits-1))
	}
	return 0, math.Ldexp(1, int(bits))
}

func (it *intType) FromWire(vm *VM, lv lua.LValue, rt reflect.Type) (reflect.Value, error) {
	n, ok := lv.(lua.LNumber)
	if !ok {
		return reflect.Value{}, mismatch(KindInteger, lv)
	}

	f := float64(n)
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return reflect.Value{}, mismatch(KindInteger, lv)
	}

	// The upper bound is exclusive: 2^63 and 2^64 are not representable in
	// the integer types they bound.
	lo, hi := it.bounds()
	if f < lo || f >= hi {
		return reflect.Value{}, fmt.Errorf("%w: %v does not fit in %s", ErrOutOfRange, f, it.name)
	}

	out := reflect.New(rt).Elem()
	if it.signed {
		out.SetInt(int64(f))
	} else {
		out.SetUint(uint64(f))
	}

	return out, nil
}

func (it *intType) ToWire(vm *VM, rv reflect.Value) (lua.LValue, error) {
	if it.signed {
		v := rv.Int()
		if v > maxExactInteger || v < -maxExactInteger {
			return nil, fmt.Errorf("%w: %d cannot be represented exactly by the vm", ErrOutOfRange, v)
		}
		return lua.LNumber(v), nil
	}

	v := rv.Uint()
	if v > maxExactInteger {
		return nil, fmt.Errorf("%w: %d cannot be represented exactly by the vm", ErrOutOfRange, v)
	}
	return lua.LNumber(v), nil
}
