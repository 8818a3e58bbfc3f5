package ui

// Slot is the handle of a slot node. It starts in the loading state and leaves
// it exactly once, either resolved to a final fragment or aborted.
type Slot struct {
	sink *Sink
	id   string
}

// ID returns the node id.
func (s *Slot) ID() string { return s.id }

// Resolve swaps the loading fragment for the final one.
func (s *Slot) Resolve(final Fragment) error {
	return s.sink.mutate(s.id, func(n *Node) (Update, error) {
		if n.State != SlotLoading {
			return Update{}, ErrSlotSettled
		}
		n.State = SlotFinal
		n.Fragment = &final
		n.Closed = true
		return Update{Op: OpReplace, Fragment: &final}, nil
	})
}

// Abort abandons the slot, leaving its loading fragment in place.
func (s *Slot) Abort() error {
	return s.sink.mutate(s.id, func(n *Node) (Update, error) {
		if n.State != SlotLoading {
			return Update{}, ErrSlotSettled
		}
		n.State = SlotAborted
		n.Closed = true
		return Update{Op: OpAbort}, nil
	})
}

// State returns the current slot state.
func (s *Slot) State() SlotState {
	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()
	return s.sink.index[s.id].State
}
