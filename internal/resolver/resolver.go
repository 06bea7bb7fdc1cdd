// Package resolver drives content resolution: one metadata call to discover
// the content type and component tree, one batched call combining every
// registered component query, then stitching the flat result back into a
// typed page tree.
package resolver

import (
	"context"
	"errors"
	"time"

	contentpath "github.com/pagegraph/pagegraph/internal/contentpath"
	ctxlog "github.com/pagegraph/pagegraph/internal/ctxlog"
	eventbus "github.com/pagegraph/pagegraph/internal/eventbus"
	events "github.com/pagegraph/pagegraph/internal/events"
	guillotine "github.com/pagegraph/pagegraph/internal/guillotine"
	pagetree "github.com/pagegraph/pagegraph/internal/pagetree"
	querybatch "github.com/pagegraph/pagegraph/internal/querybatch"
	registry "github.com/pagegraph/pagegraph/internal/registry"
)

// Request classification values. Unknown signals normalize to the defaults.
const (
	RequestTypePage      = "page"
	RequestTypeType      = "type"
	RequestTypeComponent = "component"

	RenderModeLive    = "live"
	RenderModeEdit    = "edit"
	RenderModePreview = "preview"
	RenderModeInline  = "inline"
)

// Meta classifies the request and the resolved content. It is populated on
// every result, including failures, so the rendering layer never receives a
// null meta.
type Meta struct {
	Type               string                  `json:"type"`
	Path               string                  `json:"path"`
	RequestType        string                  `json:"requestType"`
	RenderMode         string                  `json:"renderMode"`
	CanRender          bool                    `json:"canRender"`
	CatchAll           bool                    `json:"catchAll"`
	RequestedComponent *pagetree.PageComponent `json:"requestedComponent,omitempty"`
}

// FetchContentResult is the terminal output handed to the rendering layer.
type FetchContentResult struct {
	Data   any                     `json:"data"`
	Common any                     `json:"common"`
	Meta   Meta                    `json:"meta"`
	Page   *pagetree.PageComponent `json:"page"`
	Error  *guillotine.APIError    `json:"error,omitempty"`
}

// Resolver resolves content paths against one graph API endpoint using the
// application's registry. All request state is threaded explicitly; a
// Resolver is safe for concurrent use.
type Resolver struct {
	client *guillotine.Client
	reg    *registry.Registry
	appKey string
}

type Option func(*Resolver)

// WithAppKey sets the application namespace used to flatten component
// configuration blobs, e.g. "com.example.site".
func WithAppKey(key string) Option { return func(r *Resolver) { r.appKey = key } }

func New(client *guillotine.Client, reg *registry.Registry, opts ...Option) *Resolver {
	r := &Resolver{client: client, reg: reg}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchContent resolves one content path. rawPath may be a string or a
// sequence of path segments. The returned result always carries a populated
// Meta; failures set Error and leave Data, Common and Page null.
func (r *Resolver) FetchContent(ctx context.Context, rawPath any, rc registry.RequestContext) *FetchContentResult {
	meta := Meta{
		RequestType: normalizeRequestType(rc.RequestType),
		RenderMode:  normalizeRenderMode(rc.RenderMode),
	}
	rc.RequestType = meta.RequestType
	rc.RenderMode = meta.RenderMode

	path, err := contentpath.Canonicalize(rawPath)
	if err != nil {
		return failed(meta, guillotine.NewAPIError("400", "%v", err))
	}
	meta.Path = path

	start := time.Now()
	eventbus.Publish(ctx, events.ResolveStart{Path: path, RequestType: meta.RequestType, RenderMode: meta.RenderMode})
	result := r.fetchContent(ctx, path, meta, rc)
	finish := events.ResolveFinish{
		Path:        path,
		ContentType: result.Meta.Type,
		Duration:    time.Since(start),
	}
	if result.Error != nil {
		finish.ErrorCode = result.Error.Code
	}
	eventbus.Publish(ctx, finish)
	return result
}

func (r *Resolver) fetchContent(ctx context.Context, path string, meta Meta, rc registry.RequestContext) *FetchContentResult {
	logger := ctxlog.FromContext(ctx)

	contentMeta, err := r.client.FetchMeta(ctx, path)
	if err != nil {
		return failed(meta, asAPIError(err))
	}
	if contentMeta == nil {
		return failed(meta, guillotine.NewAPIError("404", "no content found at %q", path))
	}
	if contentMeta.Type == "" {
		return failed(meta, guillotine.NewAPIError("500", "metadata for %q is missing the content type", path))
	}
	meta.Type = contentMeta.Type
	if contentMeta.Path != "" {
		meta.Path = contentMeta.Path
	}

	typeEntry, catchAll := r.reg.ContentType(contentMeta.Type)
	meta.CatchAll = catchAll
	meta.CanRender = r.canRender(typeEntry, contentMeta.Components)
	if meta.RequestType == RequestTypeComponent {
		meta.RequestedComponent = findComponent(contentMeta.Components, rc.ComponentPath)
	}

	// Live traffic has no placeholder rendering to fall back to. Data-only
	// requests are exempt; they never render.
	if !meta.CanRender && meta.RenderMode == RenderModeLive && meta.RequestType != RequestTypeType {
		return failed(meta, guillotine.NewAPIError("403", "content type %q cannot be rendered", contentMeta.Type))
	}

	descriptors := r.collectDescriptors(contentMeta, typeEntry, rc)
	combined := querybatch.Combine(queryInputs(descriptors))
	for _, i := range combined.Dropped {
		logger.Warn("component query does not match the expected shape and was dropped",
			"index", i, "component", componentPathAt(descriptors, i))
	}
	if combined.Empty() {
		return failed(meta, guillotine.NewAPIError("400", "no usable query for content type %q", contentMeta.Type))
	}

	body, err := r.client.Fetch(ctx, guillotine.Request{
		Query:     combined.Query,
		Variables: combined.Variables,
	})
	if err != nil {
		return failed(meta, asAPIError(err))
	}
	if apiErr := guillotine.ResponseErrors(ctx, body); apiErr != nil {
		return failed(meta, apiErr)
	}

	result := &FetchContentResult{Meta: meta}
	r.stitch(ctx, result, descriptors, aliasedResults(body, descriptors))

	page, err := pagetree.BuildPage(contentMeta.Type, contentMeta.Components)
	if err != nil {
		return failed(meta, asAPIError(err))
	}
	result.Page = page
	return result
}

// canRender reports whether a view exists for the content: either the
// content-type registration declares one, or the page descriptor does.
func (r *Resolver) canRender(typeEntry *registry.Entry, components []*pagetree.PageComponent) bool {
	if typeEntry != nil && typeEntry.View {
		return true
	}
	for _, c := range components {
		if c.Kind == pagetree.KindPage && c.Page != nil && c.Page.Descriptor != "" {
			if pageEntry := r.reg.Page(c.Page.Descriptor); pageEntry != nil && pageEntry.View {
				return true
			}
		}
	}
	return false
}

func findComponent(components []*pagetree.PageComponent, path string) *pagetree.PageComponent {
	if path == "" {
		return nil
	}
	for _, c := range components {
		if c.Path == path {
			return c
		}
	}
	return nil
}

func failed(meta Meta, apiErr *guillotine.APIError) *FetchContentResult {
	return &FetchContentResult{Meta: meta, Error: apiErr}
}

func asAPIError(err error) *guillotine.APIError {
	var apiErr *guillotine.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return guillotine.NewAPIError("500", "%v", err)
}

func normalizeRequestType(s string) string {
	switch s {
	case RequestTypeType, RequestTypeComponent:
		return s
	default:
		return RequestTypePage
	}
}

func normalizeRenderMode(s string) string {
	switch s {
	case RenderModeEdit, RenderModePreview, RenderModeInline:
		return s
	default:
		return RenderModeLive
	}
}
