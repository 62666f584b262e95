package sqcrab

// DebugEvent is the kind of event reported to the debug hook.
type DebugEvent byte

const (
	EventCall   DebugEvent = 'c'
	EventReturn DebugEvent = 'r'
)

func (e DebugEvent) String() string {
	switch e {
	case EventCall:
		return "call"
	case EventReturn:
		return "return"
	}
	return "unknown"
}

// DebugFlags selects which callbacks are delivered.
type DebugFlags uint32

const (
	FlagPrint DebugFlags = 1 << iota
	FlagError
	FlagCompileError
	FlagDebugHook
	FlagException

	DefaultDebugFlags = FlagPrint | FlagError | FlagCompileError | FlagException
)

type PrintFunc func(msg string)

type CompileErrorFunc func(desc, source string, line, column int)

// DebugHookFunc receives a call and a return event around every bound
// function and every script function the host calls. The engine offers no
// hook of its own, so calls between script functions and single lines are
// not reported.
type DebugHookFunc func(event DebugEvent, source string, line int, function string)

type RuntimeErrorFunc func(vm *VM, err error)

type BreakpointFunc func(vm *VM, bp Breakpoint)

// Breakpoint fires its handler when Function emits the On event.
type Breakpoint struct {
	Function string
	On       DebugEvent
}

// DebugCallbacks are the host callbacks of one VM. Every method is a no-op
// for unset callbacks and disabled flags.
type DebugCallbacks struct {
	Print        PrintFunc
	Error        PrintFunc
	CompileError CompileErrorFunc
	DebugHook    DebugHookFunc
	RuntimeError RuntimeErrorFunc
	Breakpoint   BreakpointFunc

	flags       DebugFlags
	breakpoints []Breakpoint
}

func (c *DebugCallbacks) enabled(flag DebugFlags) bool {
	return c.flags&flag != 0
}

func (c *DebugCallbacks) print(msg string) {
	if c.Print != nil && c.enabled(FlagPrint) {
		c.Print(msg)
	}
}

func (c *DebugCallbacks) reportError(msg string) {
	if c.Error != nil && c.enabled(FlagError) {
		c.Error(msg)
	}
}

func (c *DebugCallbacks) exception(msg string) {
	if c.Error != nil && c.enabled(FlagException) {
		c.Error(msg)
	}
}

func (c *DebugCallbacks) compileError(err *CompileError) {
	if c.CompileError != nil && c.enabled(FlagCompileError) {
		c.CompileError(err.Desc, err.Source, err.Line, err.Column)
	}
}

func (c *DebugCallbacks) runtimeError(vm *VM, err error) {
	if c.RuntimeError != nil && c.enabled(FlagException) {
		c.RuntimeError(vm, err)
	}
}

func (c *DebugCallbacks) event(vm *VM, event DebugEvent, source string, line int, function string) {
	if c.DebugHook != nil && c.enabled(FlagDebugHook) {
		c.DebugHook(event, source, line, function)
	}

	if c.Breakpoint == nil {
		return
	}
	for _, bp := range c.breakpoints {
		if bp.Function == function && bp.On == event {
			c.Breakpoint(vm, bp)
		}
	}
}

func (c *DebugCallbacks) reset() {
	*c = DebugCallbacks{}
}

func (vm *VM) DebugFlags() DebugFlags {
	return vm.callbacks.flags
}

func (vm *VM) SetDebugFlags(flags DebugFlags) {
	vm.callbacks.flags = flags
}

func (vm *VM) AddBreakpoint(bp Breakpoint) {
	for _, existing := range vm.callbacks.breakpoints {
		if existing == bp {
			return
		}
	}

	vm.callbacks.breakpoints = append(vm.callbacks.breakpoints, bp)
}

func (vm *VM) RemoveBreakpoint(bp Breakpoint) bool {
	for i, existing := range vm.callbacks.breakpoints {
		if existing == bp {
			vm.callbacks.breakpoints = append(vm.callbacks.breakpoints[:i], vm.callbacks.breakpoints[i+1:]...)
			return true
		}
	}

	return false
}

func (vm *VM) Breakpoints() []Breakpoint {
	return append([]Breakpoint(nil), vm.callbacks.breakpoints...)
}
