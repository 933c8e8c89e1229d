// Package handles maps Go values to uintptr handles that can be stored in
// native memory and passed back through engine callbacks.
//
// Native code never sees a Go pointer: it gets a small integer, and the
// callback trampoline resolves it back to the Go value. Handles are never 0,
// so 0 can be used as "no buffer" on the native side.
package handles

import "sync"

// Table is a handle registry for one kind of value.
// The zero value is ready to use.
type Table[T any] struct {
	mu     sync.RWMutex
	values map[uintptr]T
	nextID uintptr
}

// Register stores v and returns its handle.
func (t *Table[T]) Register(v T) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.values == nil {
		t.values = make(map[uintptr]T)
	}
	t.nextID++
	t.values[t.nextID] = v
	return t.nextID
}

// Lookup resolves a handle. ok is false if the handle is not registered.
func (t *Table[T]) Lookup(id uintptr) (v T, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok = t.values[id]
	return v, ok
}

// Unregister drops a handle so the value can be garbage collected.
func (t *Table[T]) Unregister(id uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.values, id)
}

// Range calls fn for every registered value until fn returns false.
// fn must not register or unregister handles.
func (t *Table[T]) Range(fn func(id uintptr, v T) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for id, v := range t.values {
		if !fn(id, v) {
			return
		}
	}
}

// Count returns the number of registered handles.
func (t *Table[T]) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.values)
}
