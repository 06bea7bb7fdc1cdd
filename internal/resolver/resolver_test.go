package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	guillotine "github.com/pagegraph/pagegraph/internal/guillotine"
	pagetree "github.com/pagegraph/pagegraph/internal/pagetree"
	querybatch "github.com/pagegraph/pagegraph/internal/querybatch"
	registry "github.com/pagegraph/pagegraph/internal/registry"
)

const simpleQuery = `query ($path: ID!) { guillotine { get(key: $path) { displayName } } }`

// stubBackend serves the metadata query from metaBody and every other query
// from batchBody. The metadata query is recognized by its pageAsJson field.
func stubBackend(t *testing.T, metaBody, batchBody string) *guillotine.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req guillotine.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(req.Query, "pageAsJson") {
			_, _ = w.Write([]byte(metaBody))
			return
		}
		_, _ = w.Write([]byte(batchBody))
	}))
	t.Cleanup(srv.Close)
	return guillotine.NewClient(srv.URL)
}

func metaBodyFor(contentType, path, componentsJSON string) string {
	return `{"data": {"guillotine": {"get": {
	  "_path": "` + path + `",
	  "type": "` + contentType + `",
	  "pageAsJson": null,
	  "components": ` + componentsJSON + `
	}}}}`
}

func TestFetchContent_MissingPathIs404(t *testing.T) {
	client := stubBackend(t, `{"data": {"guillotine": {"get": null}}}`, `{}`)
	res := New(client, registry.New())

	result := res.FetchContent(context.Background(), "/site/absent", registry.RequestContext{})
	require.NotNil(t, result.Error)
	require.Equal(t, "404", result.Error.Code)
	require.Equal(t, "/site/absent", result.Meta.Path)
	require.Equal(t, RequestTypePage, result.Meta.RequestType)
	require.Equal(t, RenderModeLive, result.Meta.RenderMode)
	require.False(t, result.Meta.CanRender)
	require.Nil(t, result.Data)
	require.Nil(t, result.Page)
}

func TestFetchContent_BadPathIs400(t *testing.T) {
	res := New(guillotine.NewClient("http://unused.invalid"), registry.New())

	result := res.FetchContent(context.Background(), 42, registry.RequestContext{})
	require.NotNil(t, result.Error)
	require.Equal(t, "400", result.Error.Code)
}

func TestFetchContent_NoViewIsNotRenderableButResolvesInPreview(t *testing.T) {
	reg := registry.New()
	reg.RegisterContentType("com.example:article", &registry.Entry{
		Query: &registry.QueryContract{Query: simpleQuery},
	})
	reg.Freeze()

	client := stubBackend(t,
		metaBodyFor("com.example:article", "/site/a", "[]"),
		`{"data": {"`+querybatch.Alias(0)+`": {"displayName": "A"}}}`)
	res := New(client, reg)

	result := res.FetchContent(context.Background(), "/site/a", registry.RequestContext{RenderMode: RenderModePreview})
	require.Nil(t, result.Error)
	require.False(t, result.Meta.CanRender)
	require.Equal(t, map[string]any{"displayName": "A"}, result.Data)
}

func TestFetchContent_UnrenderableLiveRequestIs403(t *testing.T) {
	reg := registry.New()
	reg.RegisterContentType("com.example:article", &registry.Entry{
		Query: &registry.QueryContract{Query: simpleQuery},
	})
	reg.Freeze()

	client := stubBackend(t, metaBodyFor("com.example:article", "/site/a", "[]"), `{}`)
	res := New(client, reg)

	result := res.FetchContent(context.Background(), "/site/a", registry.RequestContext{})
	require.NotNil(t, result.Error)
	require.Equal(t, "403", result.Error.Code)
	require.Equal(t, "com.example:article", result.Meta.Type)
}

func TestFetchContent_DataOnlyRequestBypassesRenderCheck(t *testing.T) {
	reg := registry.New()
	reg.RegisterContentType("com.example:article", &registry.Entry{
		Query: &registry.QueryContract{Query: simpleQuery},
	})
	reg.Freeze()

	client := stubBackend(t,
		metaBodyFor("com.example:article", "/site/a", "[]"),
		`{"data": {"`+querybatch.Alias(0)+`": {"displayName": "A"}}}`)
	res := New(client, reg)

	result := res.FetchContent(context.Background(), "/site/a", registry.RequestContext{RequestType: RequestTypeType})
	require.Nil(t, result.Error)
	require.Equal(t, RequestTypeType, result.Meta.RequestType)
	require.Equal(t, map[string]any{"displayName": "A"}, result.Data)
}

func TestFetchContent_NoUsableQueryIs400(t *testing.T) {
	reg := registry.New()
	reg.RegisterContentType("com.example:article", &registry.Entry{View: true})
	reg.Freeze()

	client := stubBackend(t, metaBodyFor("com.example:article", "/site/a", "[]"), `{}`)
	res := New(client, reg)

	result := res.FetchContent(context.Background(), "/site/a", registry.RequestContext{})
	require.NotNil(t, result.Error)
	require.Equal(t, "400", result.Error.Code)
	require.True(t, result.Meta.CanRender)
}

func TestFetchContent_CatchAllTypeIsFlagged(t *testing.T) {
	reg := registry.New()
	reg.RegisterContentType(registry.CatchAllType, &registry.Entry{
		Query: &registry.QueryContract{Query: simpleQuery},
		View:  true,
	})
	reg.Freeze()

	client := stubBackend(t,
		metaBodyFor("com.example:unmapped", "/site/a", "[]"),
		`{"data": {"`+querybatch.Alias(0)+`": {}}}`)
	res := New(client, reg)

	result := res.FetchContent(context.Background(), "/site/a", registry.RequestContext{})
	require.Nil(t, result.Error)
	require.True(t, result.Meta.CatchAll)
	require.True(t, result.Meta.CanRender)
}

func TestFetchContent_FullPageWithComponents(t *testing.T) {
	reg := registry.New()
	reg.RegisterContentType("com.example:article", &registry.Entry{
		Query: &registry.QueryContract{Query: simpleQuery},
	})
	reg.SetCommonQuery(&registry.QueryContract{
		Query: `query ($path: ID!) { guillotine { getSite(key: $path) { displayName } } }`,
	})
	reg.RegisterPage("com.example:main", &registry.Entry{View: true})
	reg.RegisterComponent(pagetree.KindPart, "com.example:child-list", &registry.Entry{
		Query: &registry.QueryContract{
			Query: `query ($path: ID!) { guillotine { getChildren(key: $path) { _path } } }`,
		},
	})
	reg.Freeze()

	componentsJSON := `[
	  {"type": "page", "path": "/", "page": {"descriptor": "com.example:main"}},
	  {"type": "part", "path": "/main/0", "part": {"descriptor": "com.example:child-list"}},
	  {"type": "part", "path": "/main/1", "part": {"descriptor": "com.example:unregistered"}}
	]`
	// slots: 0 content, 1 common, then components in tree order starting
	// with the page root (which carries no query of its own)
	batchBody := `{"data": {
	  "` + querybatch.Alias(0) + `": {"displayName": "A"},
	  "` + querybatch.Alias(1) + `": {"siteName": "S"},
	  "` + querybatch.Alias(3) + `": {"children": [1, 2]}
	}}`

	client := stubBackend(t, metaBodyFor("com.example:article", "/site/a", componentsJSON), batchBody)
	res := New(client, reg)

	result := res.FetchContent(context.Background(), "/site/a", registry.RequestContext{})
	require.Nil(t, result.Error)

	require.True(t, result.Meta.CanRender, "page descriptor view should make the content renderable")
	require.Equal(t, map[string]any{"displayName": "A"}, result.Data)
	require.Equal(t, map[string]any{"siteName": "S"}, result.Common)

	require.NotNil(t, result.Page)
	main := result.Page.Regions["main"]
	require.NotNil(t, main)
	require.Len(t, main.Components, 2)

	queried := main.Components[0]
	require.Equal(t, "com.example:child-list", queried.Part.Descriptor)
	require.Equal(t, map[string]any{"children": []any{float64(1), float64(2)}}, queried.Data)

	unregistered := main.Components[1]
	require.Nil(t, unregistered.Data)
	require.Empty(t, unregistered.Error)
}

func TestFetchContent_PathSegmentsAreJoined(t *testing.T) {
	client := stubBackend(t, `{"data": {"guillotine": {"get": null}}}`, `{}`)
	res := New(client, registry.New())

	result := res.FetchContent(context.Background(), []string{"site", "articles", "a"}, registry.RequestContext{})
	require.Equal(t, "site/articles/a", result.Meta.Path)
	require.Equal(t, "404", result.Error.Code)
}

func TestFetchContent_ComponentRequestLocatesTarget(t *testing.T) {
	reg := registry.New()
	reg.RegisterContentType("com.example:article", &registry.Entry{
		Query: &registry.QueryContract{Query: simpleQuery},
		View:  true,
	})
	reg.Freeze()

	componentsJSON := `[
	  {"type": "page", "path": "/", "page": {"descriptor": "com.example:main"}},
	  {"type": "part", "path": "/main/0", "part": {"descriptor": "com.example:child-list"}}
	]`
	client := stubBackend(t,
		metaBodyFor("com.example:article", "/site/a", componentsJSON),
		`{"data": {"`+querybatch.Alias(0)+`": {}}}`)
	res := New(client, reg)

	result := res.FetchContent(context.Background(), "/site/a", registry.RequestContext{
		RequestType:   RequestTypeComponent,
		ComponentPath: "/main/0",
	})
	require.Nil(t, result.Error)
	require.NotNil(t, result.Meta.RequestedComponent)
	require.Equal(t, "/main/0", result.Meta.RequestedComponent.Path)
}

func TestFlattenConfig(t *testing.T) {
	res := New(nil, registry.New(), WithAppKey("com.example.site"))

	raw := map[string]any{
		"com-example-site": map[string]any{
			"child-list": map[string]any{"count": float64(3)},
		},
	}
	got := res.flattenConfig(raw, "com.example.site:child.list")
	require.Equal(t, map[string]any{"count": float64(3)}, got)

	// unknown component name falls back to the app-scoped map
	scoped := res.flattenConfig(raw, "com.example.site:other")
	require.Equal(t, raw["com-example-site"], scoped)

	// foreign app namespace yields nothing
	require.Nil(t, res.flattenConfig(map[string]any{"other-app": map[string]any{}}, "x:y"))
}

func TestNormalizeRequestClassification(t *testing.T) {
	require.Equal(t, RequestTypePage, normalizeRequestType(""))
	require.Equal(t, RequestTypePage, normalizeRequestType("bogus"))
	require.Equal(t, RequestTypeType, normalizeRequestType("type"))
	require.Equal(t, RequestTypeComponent, normalizeRequestType("component"))

	require.Equal(t, RenderModeLive, normalizeRenderMode(""))
	require.Equal(t, RenderModeLive, normalizeRenderMode("bogus"))
	require.Equal(t, RenderModeEdit, normalizeRenderMode("edit"))
	require.Equal(t, RenderModeInline, normalizeRenderMode("inline"))
}
