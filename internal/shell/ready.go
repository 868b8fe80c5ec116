package shell

import (
	"sync"

	"dorthy/internal/widget"
)

// ReadyRef is the caller-held slot for the control handle of the most
// recently ready widget. It is empty until the first ready event.
type ReadyRef struct {
	mu     sync.RWMutex
	handle widget.Handle
	ok     bool
}

func (r *ReadyRef) Store(handle widget.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handle = handle
	r.ok = true
}

func (r *ReadyRef) Load() (widget.Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handle, r.ok
}

func (r *ReadyRef) Clear(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ok && r.handle.InstanceID == instanceID {
		r.handle = widget.Handle{}
		r.ok = false
	}
}
