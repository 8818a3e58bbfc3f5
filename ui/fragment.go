package ui

import "fmt"

// Fragment is an opaque renderable unit. Component names the client-side
// renderer; Props is its JSON-serializable input.
type Fragment struct {
	Component string `json:"component"`
	Props     any    `json:"props,omitempty"`
}

// Component pairs the loading and final fragment factories of a tool.
type Component struct {
	Loading func() Fragment
	Final   func(result any) Fragment
}

// Components maps tool names to their presentation components.
type Components map[string]Component

// Lookup returns the component registered for a tool name.
func (c Components) Lookup(toolName string) (Component, bool) {
	comp, ok := c[toolName]
	if !ok || comp.Loading == nil || comp.Final == nil {
		return Component{}, false
	}
	return comp, true
}

// Names returns the registered tool names.
func (c Components) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	return names
}

// StaticComponent builds a Component from two component names: the loading
// fragment has no props and the final fragment receives the tool result as props.
func StaticComponent(loading, final string) Component {
	return Component{
		Loading: func() Fragment { return Fragment{Component: loading} },
		Final:   func(result any) Fragment { return Fragment{Component: final, Props: result} },
	}
}

// String implements fmt.Stringer.
func (f Fragment) String() string {
	if f.Props == nil {
		return f.Component + "()"
	}
	return fmt.Sprintf("%s(%v)", f.Component, f.Props)
}
