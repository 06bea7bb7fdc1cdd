// Package pagetree models the page/region/component tree of a resolved
// content item and folds the flat component list delivered by the metadata
// call into that tree.
package pagetree

// Kind tags the component variants guillotine delivers.
type Kind string

const (
	KindPage     Kind = "page"
	KindPart     Kind = "part"
	KindLayout   Kind = "layout"
	KindText     Kind = "text"
	KindFragment Kind = "fragment"
)

// PageComponent is one node of the component tree. Exactly one of the
// variant payloads is set, matching Kind. Data and Error are mutually
// exclusive post-processing outcomes attached before tree construction.
type PageComponent struct {
	Kind Kind   `json:"type"`
	Path string `json:"path"`

	Part     *PartData     `json:"part,omitempty"`
	Layout   *LayoutData   `json:"layout,omitempty"`
	Page     *PageData     `json:"page,omitempty"`
	Text     *TextData     `json:"text,omitempty"`
	Fragment *FragmentData `json:"fragment,omitempty"`

	// Regions is the nested region tree owned by layout components and the
	// page root. It is populated lazily while the tree is built.
	Regions map[string]*PageRegion `json:"regions,omitempty"`

	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`

	// RawConfig holds the namespaced configAsJson blob as delivered by the
	// backend. It is consumed (flattened into the variant payload) during
	// descriptor collection and not serialized.
	RawConfig map[string]any `json:"-"`
}

// PartData describes a part component.
type PartData struct {
	Descriptor string         `json:"descriptor"`
	Config     map[string]any `json:"config,omitempty"`
}

// LayoutData describes a layout component.
type LayoutData struct {
	Descriptor string         `json:"descriptor"`
	Config     map[string]any `json:"config,omitempty"`
}

// PageData describes the page root component.
type PageData struct {
	Descriptor string         `json:"descriptor"`
	Template   string         `json:"template,omitempty"`
	Config     map[string]any `json:"config,omitempty"`
}

// TextData carries a text component's processed HTML.
type TextData struct {
	Value string `json:"value"`
}

// FragmentData carries a fragment reference and its resolved component list.
type FragmentData struct {
	ID         string           `json:"id,omitempty"`
	Components []*PageComponent `json:"components,omitempty"`
}

// PageRegion is one named region. Components are ordered by their slot
// index, not by arrival order.
type PageRegion struct {
	Name       string           `json:"name"`
	Components []*PageComponent `json:"components"`
}

// Descriptor returns the registry key of the component, or "" for kinds
// without one.
func (c *PageComponent) Descriptor() string {
	switch {
	case c.Part != nil:
		return c.Part.Descriptor
	case c.Layout != nil:
		return c.Layout.Descriptor
	case c.Page != nil:
		return c.Page.Descriptor
	}
	return ""
}

// Config returns the component's flattened configuration, or nil.
func (c *PageComponent) Config() map[string]any {
	switch {
	case c.Part != nil:
		return c.Part.Config
	case c.Layout != nil:
		return c.Layout.Config
	case c.Page != nil:
		return c.Page.Config
	}
	return nil
}

// SetConfig stores a flattened configuration on the variant payload.
func (c *PageComponent) SetConfig(config map[string]any) {
	switch {
	case c.Part != nil:
		c.Part.Config = config
	case c.Layout != nil:
		c.Layout.Config = config
	case c.Page != nil:
		c.Page.Config = config
	}
}

// insert splices the component into the region at the given slot index,
// preserving the left-to-right order the backend declares regardless of the
// order components arrive in.
func (r *PageRegion) insert(c *PageComponent, index int) {
	if index < 0 {
		index = 0
	}
	if index >= len(r.Components) {
		r.Components = append(r.Components, c)
		return
	}
	r.Components = append(r.Components[:index], append([]*PageComponent{c}, r.Components[index:]...)...)
}
