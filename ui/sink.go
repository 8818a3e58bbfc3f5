package ui

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
)

// NodeKind identifies the kind of a sink node.
type NodeKind string

const (
	// NodeFragment is a static fragment.
	NodeFragment NodeKind = "fragment"
	// NodeText is a growing text stream.
	NodeText NodeKind = "text"
	// NodeSlot is a loading placeholder resolved exactly once.
	NodeSlot NodeKind = "slot"
)

// SlotState is the lifecycle state of a slot node.
type SlotState string

const (
	SlotLoading SlotState = "loading"
	SlotFinal   SlotState = "final"
	SlotAborted SlotState = "aborted"
)

// Op is the kind of mutation described by an Update.
type Op string

const (
	// OpAppend adds a new node at the end of the sink.
	OpAppend Op = "append"
	// OpDelta appends text to a text node.
	OpDelta Op = "delta"
	// OpReplace swaps the fragment of a slot node.
	OpReplace Op = "replace"
	// OpClose marks a text node as complete.
	OpClose Op = "close"
	// OpAbort marks a slot node as abandoned; its fragment is left unchanged.
	OpAbort Op = "abort"
)

// Update is one mutation of the sink, delivered to the consumer in order.
type Update struct {
	Seq      int       `json:"seq"`
	Op       Op        `json:"op"`
	NodeID   string    `json:"node_id"`
	Kind     NodeKind  `json:"kind,omitempty"`
	Fragment *Fragment `json:"fragment,omitempty"`
	Delta    string    `json:"delta,omitempty"`
}

// Node is a point-in-time view of one sink node.
type Node struct {
	ID       string    `json:"id"`
	Kind     NodeKind  `json:"kind"`
	Fragment *Fragment `json:"fragment,omitempty"`
	Text     string    `json:"text,omitempty"`
	State    SlotState `json:"state,omitempty"`
	Closed   bool      `json:"closed"`
}

// Sink is the ordered, append-only, eventually closed output of an
// orchestrator pass. It is safe for one writer and one reader to use
// concurrently; concurrent uncoordinated writers are not supported.
type Sink struct {
	mu     sync.Mutex
	nodes  []*Node
	index  map[string]*Node
	queue  []Update
	seq    int
	notify chan struct{}
	closed bool
	err    error
	done   chan struct{}
}

// NewSink creates an open, empty Sink.
func NewSink() *Sink {
	return &Sink{
		index:  make(map[string]*Node),
		notify: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// AppendFragment appends a static fragment node and returns its id.
func (s *Sink) AppendFragment(f Fragment) (string, error) {
	n, err := s.appendNode(NodeFragment, &f, "")
	if err != nil {
		return "", err
	}
	return n.ID, nil
}

// OpenText appends a new, empty text node and returns its stream handle.
func (s *Sink) OpenText() (*TextStream, error) {
	n, err := s.appendNode(NodeText, nil, "")
	if err != nil {
		return nil, err
	}
	return &TextStream{sink: s, id: n.ID}, nil
}

// OpenSlot appends a slot node showing the loading fragment.
func (s *Sink) OpenSlot(loading Fragment) (*Slot, error) {
	n, err := s.appendNode(NodeSlot, &loading, SlotLoading)
	if err != nil {
		return nil, err
	}
	return &Slot{sink: s, id: n.ID}, nil
}

func (s *Sink) appendNode(kind NodeKind, f *Fragment, state SlotState) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSinkClosed
	}
	n := &Node{ID: uuid.NewString(), Kind: kind, Fragment: f, State: state, Closed: kind == NodeFragment}
	s.nodes = append(s.nodes, n)
	s.index[n.ID] = n
	s.publishLocked(Update{Op: OpAppend, NodeID: n.ID, Kind: kind, Fragment: f})
	return n, nil
}

// mutate applies fn to the node with the given id under the sink lock and
// publishes the resulting update.
func (s *Sink) mutate(id string, fn func(n *Node) (Update, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	n := s.index[id]
	u, err := fn(n)
	if err != nil {
		return err
	}
	u.NodeID = id
	u.Kind = n.Kind
	s.publishLocked(u)
	return nil
}

func (s *Sink) publishLocked(u Update) {
	s.seq++
	u.Seq = s.seq
	s.queue = append(s.queue, u)
	close(s.notify)
	s.notify = make(chan struct{})
}

// Close signals that no more nodes or mutations will follow. err records why
// the producing pass ended, nil for a clean end. Close succeeds once; further
// calls return ErrSinkClosed.
func (s *Sink) Close(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.closed = true
	s.err = err
	close(s.notify)
	close(s.done)
	return nil
}

// Done returns a channel closed once the sink is closed.
func (s *Sink) Done() <-chan struct{} { return s.done }

// Closed reports whether Close has been called.
func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Err returns the error the sink was closed with.
func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Next returns the next undelivered update, blocking until one is available.
// It returns io.EOF once the sink is closed and every update was delivered.
func (s *Sink) Next(ctx context.Context) (Update, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			u := s.queue[0]
			s.queue[0] = Update{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return u, nil
		}
		if s.closed {
			s.mu.Unlock()
			return Update{}, io.EOF
		}
		wait := s.notify
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Update{}, ctx.Err()
		case <-wait:
		}
	}
}

// Updates pumps Next into a channel that is closed when the sink is drained or
// ctx is done. A caller that stops reading before the channel is closed must
// cancel ctx, otherwise the pump goroutine stays blocked on the send.
func (s *Sink) Updates(ctx context.Context) <-chan Update {
	out := make(chan Update)
	go func() {
		defer close(out)
		for {
			u, err := s.Next(ctx)
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case out <- u:
			}
		}
	}()
	return out
}

// Snapshot returns a copy of the current node list.
func (s *Sink) Snapshot() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Node, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = *n
		if n.Fragment != nil {
			f := *n.Fragment
			out[i].Fragment = &f
		}
	}
	return out
}

// Len returns the number of nodes appended so far.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}
