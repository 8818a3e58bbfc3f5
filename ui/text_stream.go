package ui

// TextStream is the handle of a text node: a value that keeps changing until
// it is closed.
type TextStream struct {
	sink *Sink
	id   string
}

// ID returns the node id.
func (t *TextStream) ID() string { return t.id }

// Append adds a fragment of text to the stream.
func (t *TextStream) Append(delta string) error {
	return t.sink.mutate(t.id, func(n *Node) (Update, error) {
		if n.Closed {
			return Update{}, ErrStreamClosed
		}
		n.Text += delta
		return Update{Op: OpDelta, Delta: delta}, nil
	})
}

// Close marks the stream complete. It succeeds exactly once.
func (t *TextStream) Close() error {
	return t.sink.mutate(t.id, func(n *Node) (Update, error) {
		if n.Closed {
			return Update{}, ErrStreamClosed
		}
		n.Closed = true
		return Update{Op: OpClose}, nil
	})
}

// Text returns the accumulated content.
func (t *TextStream) Text() string {
	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	return t.sink.index[t.id].Text
}

// Closed reports whether the stream was closed.
func (t *TextStream) Closed() bool {
	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	return t.sink.index[t.id].Closed
}
