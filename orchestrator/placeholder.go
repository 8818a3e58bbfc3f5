package orchestrator

import (
	"fmt"

	"github.com/hupe1980/genui/trace"
	"github.com/hupe1980/genui/ui"
)

// openTool is the single in-flight tool placeholder of a pass.
type openTool struct {
	call      trace.ToolCall
	component ui.Component
	slot      *ui.Slot
}

// placeholders manages the tool slot lifecycle: open → final, never reopened.
type placeholders struct {
	sink       *ui.Sink
	components ui.Components
	current    *openTool
	opened     int
}

func newPlaceholders(sink *ui.Sink, components ui.Components) *placeholders {
	return &placeholders{sink: sink, components: components}
}

// open appends the loading fragment of the named tool and records it as the
// open placeholder. The caller guarantees no placeholder is open.
func (m *placeholders) open(call trace.ToolCall) error {
	comp, ok := m.components.Lookup(call.Name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTool, call.Name)
	}
	loading, err := render(call.Name, comp.Loading)
	if err != nil {
		return err
	}
	slot, err := m.sink.OpenSlot(loading)
	if err != nil {
		return err
	}
	m.current = &openTool{call: call, component: comp, slot: slot}
	m.opened++
	return nil
}

// finalize swaps the open slot to the tool's final fragment and clears it.
func (m *placeholders) finalize(result any) error {
	if m.current == nil {
		return ErrNoOpenPlaceholder
	}
	cur := m.current
	final, err := render(cur.call.Name, func() ui.Fragment { return cur.component.Final(result) })
	if err != nil {
		return err
	}
	if err := cur.slot.Resolve(final); err != nil {
		return err
	}
	m.current = nil
	return nil
}

// render calls a component factory, turning a panic into ErrComponentPanic.
// A failed finalize leaves the slot open so finish aborts it.
func render(tool string, factory func() ui.Fragment) (f ui.Fragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %q: %v", ErrComponentPanic, tool, r)
		}
	}()
	return factory(), nil
}

// abort abandons the open slot, if any.
func (m *placeholders) abort() error {
	if m.current == nil {
		return nil
	}
	cur := m.current
	m.current = nil
	return cur.slot.Abort()
}

func (m *placeholders) isOpen() bool { return m.current != nil }

func (m *placeholders) openName() string {
	if m.current == nil {
		return ""
	}
	return m.current.call.Name
}
