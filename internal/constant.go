package sqcrab

import (
	"fmt"
	"reflect"
	"sort"

	"go.uber.org/zap"
)

// Constant is a host value published to scripts as a global.
type Constant interface {
	Name() string
	Value() any
	Kind() Kind
}

type registeredConstant struct {
	name  string
	value any
	kind  Kind
}

func (rc *registeredConstant) Name() string {
	return rc.name
}

func (rc *registeredConstant) Value() any {
	return rc.value
}

func (rc *registeredConstant) Kind() Kind {
	return rc.kind
}

// SetConstant publishes value as the global name. Setting the same name
// again is allowed only with an equal value. References cannot be constants
// because they do not outlive a host call.
func (vm *VM) SetConstant(name string, value any) error {
	if vm.status == StatusClosed {
		return ErrClosed
	}

	if existing, ok := vm.constants[name]; ok {
		if !reflect.DeepEqual(existing.value, value) {
			return fmt.Errorf("constant %s has a different value already (have: %v (%T), set: %v (%T))", name, existing.value, existing.value, value, value)
		}
		return nil
	}

	kind := KindNull
	if value != nil {
		wt, err := wireTypeFor(reflect.TypeOf(value))
		if err != nil {
			return fmt.Errorf("could not set constant %s: %w", name, err)
		}
		if wt.Kind() == KindReference {
			return fmt.Errorf("could not set constant %s: %w: references are bound to a call", name, ErrUnsupportedType)
		}
		kind = wt.Kind()
	}

	lv, err := toWire(vm, value)
	if err != nil {
		return fmt.Errorf("could not set constant %s: %w", name, err)
	}

	vm.state.SetGlobal(name, lv)
	vm.constants[name] = &registeredConstant{name: name, value: value, kind: kind}
	vm.logger.Debug("set constant", zap.String("constant", name), zap.Stringer("kind", kind))
	return nil
}

// Constants lists the constants set on the VM ordered by name.
func (vm *VM) Constants() []Constant {
	constants := make([]Constant, 0, len(vm.constants))
	for _, c := range vm.constants {
		constants = append(constants, c)
	}
	sort.Slice(constants, func(i, j int) bool {
		return constants[i].Name() < constants[j].Name()
	})
	return constants
}
