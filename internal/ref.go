package sqcrab

import (
	"fmt"
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

// refHandle is the payload of a reference userdata. It names a slot in the
// arena of the VM that created it, and is only valid while the slot still
// carries the same generation.
type refHandle struct {
	arena *refArena
	index int
	gen   uint64
}

type refSlot struct {
	value any
	gen   uint64
}

// refArena holds the host objects the VM may currently refer to. A scope is
// opened for each host to script transition, and every reference allocated
// inside it is invalidated when the scope closes.
type refArena struct {
	slots   []refSlot
	scopes  []int
	nextGen uint64
}

func (a *refArena) open() {
	a.scopes = append(a.scopes, len(a.slots))
}

func (a *refArena) close() {
	if len(a.scopes) == 0 {
		return
	}

	mark := a.scopes[len(a.scopes)-1]
	a.scopes = a.scopes[:len(a.scopes)-1]
	for i := mark; i < len(a.slots); i++ {
		a.slots[i] = refSlot{}
	}
	a.slots = a.slots[:mark]
}

func (a *refArena) depth() int {
	return len(a.scopes)
}

func (a *refArena) alloc(value any) (*refHandle, error) {
	if len(a.scopes) == 0 {
		return nil, ErrNoRefScope
	}

	a.nextGen++
	a.slots = append(a.slots, refSlot{value: value, gen: a.nextGen})
	return &refHandle{arena: a, index: len(a.slots) - 1, gen: a.nextGen}, nil
}

func (a *refArena) resolve(handle *refHandle) (any, error) {
	if handle.arena != a {
		return nil, fmt.Errorf("%w: reference belongs to another vm", ErrStaleReference)
	}
	if handle.index >= len(a.slots) || a.slots[handle.index].gen != handle.gen {
		return nil, ErrStaleReference
	}

	return a.slots[handle.index].value, nil
}

// refType carries pointers. Nil pointers travel as null.
type refType struct {
	baseType
}

func (rt *refType) FromWire(vm *VM, lv lua.LValue, t reflect.Type) (reflect.Value, error) {
	if lv == lua.LNil {
		return reflect.Value{}, ErrNullReference
	}

	ud, ok := lv.(*lua.LUserData)
	if !ok {
		return reflect.Value{}, mismatch(KindReference, lv)
	}
	handle, ok := ud.Value.(*refHandle)
	if !ok {
		return reflect.Value{}, mismatch(KindReference, lv)
	}

	value, err := vm.refs.resolve(handle)
	if err != nil {
		return reflect.Value{}, err
	}

	v := reflect.ValueOf(value)
	if !v.Type().AssignableTo(t) {
		return reflect.Value{}, &TypeMismatchError{
			Expected: KindReference,
			Actual:   KindReference,
			Want:     t.String(),
			Got:      v.Type().String(),
		}
	}

	return v, nil
}

func (rt *refType) ToWire(vm *VM, rv reflect.Value) (lua.LValue, error) {
	if rv.IsNil() {
		return lua.LNil, nil
	}

	handle, err := vm.refs.alloc(rv.Interface())
	if err != nil {
		return nil, err
	}

	ud := vm.frame.NewUserData()
	ud.Value = handle
	vm.frame.SetMetatable(ud, vm.refMeta)
	return ud, nil
}

// structType passes struct values by reference to a copy. Reading one back
// copies the referenced value out again.
type structType struct {
	baseType
}

func (st *structType) FromWire(vm *VM, lv lua.LValue, t reflect.Type) (reflect.Value, error) {
	ptr, err := refWire.FromWire(vm, lv, reflect.PointerTo(t))
	if err != nil {
		return reflect.Value{}, err
	}

	out := reflect.New(t).Elem()
	out.Set(ptr.Elem())
	return out, nil
}

func (st *structType) ToWire(vm *VM, rv reflect.Value) (lua.LValue, error) {
	ptr := reflect.New(rv.Type())
	ptr.Elem().Set(rv)
	return refWire.ToWire(vm, ptr)
}

func refToString(L *lua.LState) int {
	ud := L.CheckUserData(1)
	handle, ok := ud.Value.(*refHandle)
	if !ok {
		L.Push(lua.LString("reference"))
		return 1
	}

	value, err := handle.arena.resolve(handle)
	if err != nil {
		L.Push(lua.LString("reference (stale)"))
		return 1
	}

	L.Push(lua.LString(fmt.Sprintf("reference<%T>", value)))
	return 1
}

func errorToString(L *lua.LState) int {
	ud := L.CheckUserData(1)
	L.Push(lua.LString(fmt.Sprint(ud.Value)))
	return 1
}
