package sqcrab

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Adapter is the host side of a bound function. It reads its arguments from
// the VM stack and returns how many results it pushed.
type Adapter func(vm *VM) (int, error)

type registryEntry struct {
	vm        *VM
	functions map[string]Adapter
	callbacks *DebugCallbacks
}

// Registry maps live VM handles to their bound functions and callbacks. The
// lock is held only for map access, never while an adapter runs, so adapters
// may register further functions.
type Registry struct {
	mu      sync.Mutex
	entries map[*lua.LState]*registryEntry
}

func NewRegistry() *Registry {
	return &Registry{
		entries: map[*lua.LState]*registryEntry{},
	}
}

// Insert creates the entry for vm. Inserting a handle that is already
// present does nothing and keeps its functions.
func (r *Registry) Insert(vm *VM, callbacks *DebugCallbacks) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[vm.state]; ok {
		return
	}

	r.entries[vm.state] = &registryEntry{
		vm:        vm,
		functions: map[string]Adapter{},
		callbacks: callbacks,
	}
}

func (r *Registry) Add(handle *lua.LState, name string, fn Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[handle]
	if !ok {
		return ErrUnknownHandle
	}

	if _, ok := entry.functions[name]; ok {
		return fmt.Errorf("%w: %s", ErrFunctionExists, name)
	}

	entry.functions[name] = fn
	return nil
}

// resolve finds the entry for handle. Coroutines run on their own thread, so
// the parent chain is walked until a registered handle is found.
func (r *Registry) resolve(handle *lua.LState) (*registryEntry, bool) {
	for L := handle; L != nil; L = L.Parent {
		if entry, ok := r.entries[L]; ok {
			return entry, true
		}
	}

	return nil, false
}

func (r *Registry) Lookup(handle *lua.LState, name string) (*VM, Adapter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.resolve(handle)
	if !ok {
		return nil, nil, false
	}

	fn, ok := entry.functions[name]
	if !ok {
		return entry.vm, nil, false
	}

	return entry.vm, fn, true
}

func (r *Registry) Callbacks(handle *lua.LState) (*DebugCallbacks, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.resolve(handle)
	if !ok {
		return nil, false
	}

	return entry.callbacks, true
}

func (r *Registry) Remove(handle *lua.LState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, handle)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}

// Functions returns the number of functions bound to handle.
func (r *Registry) Functions(handle *lua.LState) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[handle]
	if !ok {
		return 0
	}

	return len(entry.functions)
}
