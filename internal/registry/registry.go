// Package registry holds the application's dispatch table: the mapping from
// content types and component descriptors to their query contracts,
// post-processors and view capability. It is populated at process start and
// read-only afterwards.
package registry

import (
	"context"
	"fmt"

	pagetree "github.com/pagegraph/pagegraph/internal/pagetree"
)

// CatchAllType is the content-type key matching any type without an exact
// registration.
const CatchAllType = "*"

// RequestContext carries the externally supplied request classification
// signals. It travels as an explicit value, never process-wide state.
type RequestContext struct {
	// RequestType is one of "page", "type" or "component".
	RequestType string
	// RenderMode is the render-mode signal, e.g. "live", "edit", "preview".
	RenderMode string
	// ComponentPath is the target sub-path for component-scoped requests.
	ComponentPath string
}

// VariablesFn resolves the variables of a component query.
type VariablesFn func(path string, ctx RequestContext, config map[string]any) map[string]any

// ProcessorFn post-processes one component's slice of the batched result.
type ProcessorFn func(ctx context.Context, data any) (any, error)

// QueryContract pairs a query with its variable resolver. A nil Variables
// falls back to DefaultVariables.
type QueryContract struct {
	Query     string
	Variables VariablesFn
}

// Entry is one registration: an optional query contract, an optional
// post-processor and whether a view exists for rendering.
type Entry struct {
	Query     *QueryContract
	Processor ProcessorFn
	View      bool
}

// DefaultVariables is the variable resolver used when a contract declares
// none.
func DefaultVariables(path string, _ RequestContext, _ map[string]any) map[string]any {
	return map[string]any{"path": path}
}

// DefaultProcessor passes data through, substituting an empty object when
// the backend returned nothing.
func DefaultProcessor(_ context.Context, data any) (any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	return data, nil
}

// Registry is the dispatch table. Registrations panic once Freeze has been
// called; a late registration is a programming error, not a runtime
// condition.
type Registry struct {
	contentTypes map[string]*Entry
	components   map[pagetree.Kind]map[string]*Entry
	pages        map[string]*Entry
	common       *QueryContract
	frozen       bool
}

func New() *Registry {
	return &Registry{
		contentTypes: map[string]*Entry{},
		components:   map[pagetree.Kind]map[string]*Entry{},
		pages:        map[string]*Entry{},
	}
}

// Freeze marks the registry read-only.
func (r *Registry) Freeze() { r.frozen = true }

func (r *Registry) checkWritable(what, key string) {
	if r.frozen {
		panic(fmt.Sprintf("registry: cannot register %s %q after freeze", what, key))
	}
}

// RegisterContentType maps a content-type name (or CatchAllType) to an entry.
func (r *Registry) RegisterContentType(name string, e *Entry) {
	r.checkWritable("content type", name)
	r.contentTypes[name] = e
}

// RegisterComponent maps a component descriptor to an entry for the given
// component kind.
func (r *Registry) RegisterComponent(kind pagetree.Kind, descriptor string, e *Entry) {
	r.checkWritable(string(kind), descriptor)
	byDescriptor := r.components[kind]
	if byDescriptor == nil {
		byDescriptor = map[string]*Entry{}
		r.components[kind] = byDescriptor
	}
	byDescriptor[descriptor] = e
}

// RegisterPage maps a page descriptor to an entry.
func (r *Registry) RegisterPage(descriptor string, e *Entry) {
	r.checkWritable("page", descriptor)
	r.pages[descriptor] = e
}

// SetCommonQuery sets the query dispatched once per request alongside the
// content-type query.
func (r *Registry) SetCommonQuery(q *QueryContract) {
	r.checkWritable("common query", "")
	r.common = q
}

// ContentType looks up a content-type entry, falling back to the catch-all
// registration. catchAll reports whether the fallback was used.
func (r *Registry) ContentType(name string) (e *Entry, catchAll bool) {
	if e := r.contentTypes[name]; e != nil {
		return e, false
	}
	if e := r.contentTypes[CatchAllType]; e != nil {
		return e, true
	}
	return nil, false
}

// Component looks up a component entry by kind and descriptor.
func (r *Registry) Component(kind pagetree.Kind, descriptor string) *Entry {
	return r.components[kind][descriptor]
}

// Page looks up a page entry by descriptor.
func (r *Registry) Page(descriptor string) *Entry {
	return r.pages[descriptor]
}

// CommonQuery returns the common query contract, or nil.
func (r *Registry) CommonQuery() *QueryContract {
	return r.common
}
