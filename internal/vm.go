package sqcrab

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Status is the lifecycle state of a VM.
type Status int

const (
	StatusRunning Status = iota
	StatusSuspended
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSuspended:
		return "suspended"
	case StatusClosed:
		return "closed"
	}
	return "unknown"
}

// Registrar adds the functions of one domain to a VM.
type Registrar interface {
	DomainName() string
	AddFunctions(vm *VM) error
}

// VM is a single script engine instance. It is not safe for concurrent use.
type VM struct {
	id        uuid.UUID
	state     *lua.LState
	frame     *lua.LState
	runtime   *Runtime
	config    Config
	logger    *zap.Logger
	callbacks *DebugCallbacks
	status    Status
	refs      *refArena
	receivers []any
	constants map[string]*registeredConstant
	refMeta   *lua.LTable
	errMeta   *lua.LTable
	visiting  map[any]struct{}
}

func (vm *VM) ID() uuid.UUID {
	return vm.id
}

// Handle is the engine state the registry keys this VM by.
func (vm *VM) Handle() *lua.LState {
	return vm.state
}

func (vm *VM) Status() Status {
	return vm.status
}

func (vm *VM) Config() Config {
	return vm.config
}

func (vm *VM) Runtime() *Runtime {
	return vm.runtime
}

func (vm *VM) Logger() *zap.Logger {
	return vm.logger
}

// SourceName is used for scripts imported without a name.
func (vm *VM) SourceName() string {
	return "sqvm@" + vm.id.String()
}

// Context returns the context of the host call currently executing.
func (vm *VM) Context() context.Context {
	if ctx := vm.state.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// EngineVersion reports the language version of the engine.
func (vm *VM) EngineVersion() (major int, minor int) {
	return EngineVersion()
}

// AddFunction binds fn to the global name.
func (vm *VM) AddFunction(name string, fn Adapter) error {
	if vm.status == StatusClosed {
		return ErrClosed
	}

	if err := vm.runtime.registry.Add(vm.state, name, fn); err != nil {
		return fmt.Errorf("could not add function %s: %w", name, err)
	}

	vm.state.SetGlobal(name, vm.state.NewClosure(vm.runtime.dispatch, lua.LString(name)))
	vm.logger.Debug("registered function", zap.String("function", name))
	return nil
}

// Register runs every registrar in order and stops at the first failure.
func (vm *VM) Register(registrars ...Registrar) error {
	for _, r := range registrars {
		if err := r.AddFunctions(vm); err != nil {
			return fmt.Errorf("could not register domain %s: %w", r.DomainName(), err)
		}
		vm.logger.Debug("registered domain", zap.String("domain", r.DomainName()))
	}

	return nil
}

func (vm *VM) Suspend() error {
	if vm.status != StatusRunning {
		return fmt.Errorf("%w: cannot suspend a %s vm", ErrInvalidTransition, vm.status)
	}

	vm.status = StatusSuspended
	return nil
}

func (vm *VM) Resume() error {
	if vm.status != StatusSuspended {
		return fmt.Errorf("%w: cannot resume a %s vm", ErrInvalidTransition, vm.status)
	}

	vm.status = StatusRunning
	return nil
}

// Close removes the VM from its runtime and releases the engine. It must not
// be called from inside a bound function.
func (vm *VM) Close() error {
	if vm.status == StatusClosed {
		return ErrClosed
	}

	vm.callbacks.reset()
	vm.runtime.registry.Remove(vm.state)
	vm.state.Close()
	vm.status = StatusClosed
	vm.logger.Debug("closed vm")
	return nil
}

func (vm *VM) enter() error {
	switch vm.status {
	case StatusClosed:
		return ErrClosed
	case StatusSuspended:
		return ErrSuspended
	}
	return nil
}

// protect runs body as a host to script transition: a reference scope is
// open, the frame is the main thread and the stack top is restored after.
func (vm *VM) protect(ctx context.Context, body func() error) error {
	L := vm.state
	top := L.GetTop()
	prevFrame := vm.frame
	vm.frame = L
	vm.refs.open()

	if ctx != nil && ctx.Done() != nil {
		prev := L.Context()
		L.SetContext(ctx)
		defer func() {
			if prev != nil {
				L.SetContext(prev)
			} else {
				L.RemoveContext()
			}
		}()
	}

	defer func() {
		vm.refs.close()
		vm.frame = prevFrame
		L.SetTop(top)
	}()

	return body()
}

// invoke runs a bound adapter on the thread L that called it. A failing
// adapter raises its error inside the script.
func (vm *VM) invoke(L *lua.LState, name string, adapter Adapter) int {
	prev := vm.frame
	vm.frame = L
	defer func() {
		vm.frame = prev
	}()

	source, line := vm.location(L)
	vm.callbacks.event(vm, EventCall, source, line, name)

	n, err := adapter(vm)
	if err != nil {
		vm.raise(L, name, err)
		return 0
	}

	vm.callbacks.event(vm, EventReturn, source, line, name)
	return n
}

func (vm *VM) raise(L *lua.LState, name string, err error) {
	ud := L.NewUserData()
	ud.Value = &AdapterError{Function: name, Err: err}
	L.SetMetatable(ud, vm.errMeta)
	L.Error(ud, 1)
}

// location is the script position of the caller of the running native
// function. It needs debug info and is skipped when nobody listens.
func (vm *VM) location(L *lua.LState) (string, int) {
	if !vm.config.DebugInfo || vm.callbacks.DebugHook == nil || !vm.callbacks.enabled(FlagDebugHook) {
		return "", -1
	}

	dbg, ok := L.GetStack(1)
	if !ok {
		return "", -1
	}
	if _, err := L.GetInfo("Sl", dbg, lua.LNil); err != nil {
		return "", -1
	}

	return dbg.Source, dbg.CurrentLine
}
