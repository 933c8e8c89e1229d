package avcdec

import "github.com/thesyncim/avcdec/internal/handles"

// refTracker owns the per-slot reference counts. The engine pins and unpins
// slots through Bind/Unbind; draining a slot adds the implicit hold that the
// engine releases later through the same Unbind path.
type refTracker struct {
	slots handles.Table[*OutputSlot]
}

// track gives the slot a control block and an opaque engine reference.
func (t *refTracker) track(s *OutputSlot, mem Memory, native bool) {
	s.ctrl = &slotControl{mem: mem, native: native}
	s.ctrl.handle = t.slots.Register(s)
}

// forget drops the slot's engine reference. The slot must not be queued.
func (t *refTracker) forget(s *OutputSlot) {
	if s.ctrl == nil {
		return
	}
	t.slots.Unregister(s.ctrl.handle)
	s.ctrl = nil
}

// resolve maps an engine-supplied opaque reference back to its slot.
func (t *refTracker) resolve(ref uintptr) (*OutputSlot, bool) {
	s, ok := t.slots.Lookup(ref)
	if !ok || s.ctrl == nil {
		return nil, false
	}
	return s, true
}

// assign records the picture id the slot is about to be decoded as.
func (t *refTracker) assign(s *OutputSlot, id PictureID) {
	s.ctrl.picture = id
}

// bind is invoked by the engine when it pins a slot as a reference frame.
func (t *refTracker) bind(ref uintptr) bool {
	s, ok := t.resolve(ref)
	if !ok {
		return false
	}
	s.ctrl.refs++
	return true
}

// unbind is invoked by the engine when it releases a pin. Clamped at 0.
func (t *refTracker) unbind(ref uintptr) bool {
	s, ok := t.resolve(ref)
	if !ok {
		return false
	}
	if s.ctrl.refs > 0 {
		s.ctrl.refs--
	}
	return true
}

// hold adds the implicit hold taken when a slot is delivered to the consumer.
func (t *refTracker) hold(s *OutputSlot) {
	s.ctrl.refs++
}

// reclaim zeroes every count. Used once the engine has dropped all of its
// reference buffers, so no pin can be released through Unbind anymore.
func (t *refTracker) reclaim() {
	t.slots.Range(func(_ uintptr, s *OutputSlot) bool {
		if s.ctrl != nil {
			s.ctrl.refs = 0
		}
		return true
	})
}

// tracked returns the number of slots with a control block.
func (t *refTracker) tracked() int { return t.slots.Count() }

// firstFree scans queue in arrival order for the first slot with no holds.
// A slot without a control block is reported through missing.
func firstFree(queue []*OutputSlot) (idx int, missing bool) {
	for i, s := range queue {
		if s.ctrl == nil {
			return i, true
		}
		if s.ctrl.refs == 0 {
			return i, false
		}
	}
	return -1, false
}
