package sqcrab

import (
	"errors"
	"fmt"
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

// hostTable identifies a Go map or slice while it is being converted.
type hostTable struct {
	kind reflect.Kind
	ptr  uintptr
}

// visit marks a table as being converted until release is called. Meeting
// the same table again before that means it contains itself. Tables shared
// by siblings are fine.
func (vm *VM) visit(key any) (release func(), err error) {
	if vm.visiting == nil {
		vm.visiting = map[any]struct{}{}
	}
	if _, ok := vm.visiting[key]; ok {
		return nil, fmt.Errorf("%w: cyclic table", ErrUnsupportedType)
	}
	vm.visiting[key] = struct{}{}
	return func() { delete(vm.visiting, key) }, nil
}

func toWire(vm *VM, v any) (lua.LValue, error) {
	if v == nil {
		return lua.LNil, nil
	}
	if lv, ok := v.(lua.LValue); ok {
		return lv, nil
	}

	rv := reflect.ValueOf(v)
	wt, err := wireTypeFor(rv.Type())
	if err != nil {
		return nil, err
	}

	return wt.ToWire(vm, rv)
}

// Push converts v and pushes it on top of the current frame.
func Push(vm *VM, v any) error {
	lv, err := toWire(vm, v)
	if err != nil {
		return fmt.Errorf("could not push %T: %w", v, err)
	}

	vm.frame.Push(lv)
	return nil
}

// slot returns the value at depth, where depth 1 is the top of the frame.
func (vm *VM) slot(depth int) (lua.LValue, error) {
	top := vm.frame.GetTop()
	if depth < 1 || depth > top {
		return nil, fmt.Errorf("%w: position %d, frame holds %d", ErrOutOfFrame, depth, top)
	}

	return vm.frame.Get(top - depth + 1), nil
}

func (vm *VM) get(rt reflect.Type, depth int) (reflect.Value, error) {
	lv, err := vm.slot(depth)
	if err != nil {
		return reflect.Value{}, err
	}

	wt, err := wireTypeFor(rt)
	if err != nil {
		return reflect.Value{}, err
	}

	rv, err := wt.FromWire(vm, lv, rt)
	if err != nil {
		var tm *TypeMismatchError
		if errors.As(err, &tm) {
			tm.Depth = depth
		}
		return reflect.Value{}, err
	}

	return rv, nil
}

// Get reads the value at depth as a T. Depth 1 is the top of the frame, so
// with n parameters the i-th one (zero based) sits at depth n-i.
func Get[T any](vm *VM, depth int) (T, error) {
	var out T
	rv, err := vm.get(reflect.TypeOf(&out).Elem(), depth)
	if err != nil {
		return out, err
	}

	if rv.IsValid() {
		out, _ = rv.Interface().(T)
	}
	return out, nil
}

// KindAt reports the kind of the value at depth.
func KindAt(vm *VM, depth int) (Kind, error) {
	lv, err := vm.slot(depth)
	if err != nil {
		return KindUnknown, err
	}

	return KindOf(lv), nil
}

// Top is the number of values in the current frame.
func Top(vm *VM) int {
	return vm.frame.GetTop()
}

// CheckArity fails unless the frame holds exactly n values.
func CheckArity(vm *VM, n int) error {
	top := vm.frame.GetTop()
	if top != n {
		return fmt.Errorf("%w: expected %d, got %d", ErrArity, n, top)
	}

	return nil
}

// This returns the receiver bound by UsingReceiver.
func This[T any](vm *VM) (T, error) {
	var out T
	if len(vm.receivers) == 0 {
		return out, ErrNoReceiver
	}

	receiver := vm.receivers[len(vm.receivers)-1]
	out, ok := receiver.(T)
	if !ok {
		return out, &TypeMismatchError{
			Expected: KindReference,
			Actual:   KindReference,
			Want:     reflect.TypeOf(&out).Elem().String(),
			Got:      fmt.Sprintf("%T", receiver),
		}
	}

	return out, nil
}

// UsingReceiver binds obj as the ambient receiver while body runs. The
// previous receiver is restored on every exit path, panics included.
func (vm *VM) UsingReceiver(obj any, body func() error) error {
	vm.receivers = append(vm.receivers, obj)
	defer func() {
		vm.receivers[len(vm.receivers)-1] = nil
		vm.receivers = vm.receivers[:len(vm.receivers)-1]
	}()

	return body()
}
