package guillotine

import (
	"context"
	"strings"

	ctxlog "github.com/pagegraph/pagegraph/internal/ctxlog"
	pagetree "github.com/pagegraph/pagegraph/internal/pagetree"
)

// MetaQuery retrieves the content type, resolved path and component tree for
// one content path.
const MetaQuery = `query ($path: ID!) {
  guillotine {
    get(key: $path) {
      _path
      type
      pageAsJson
      components(resolveTemplate: true, resolveFragment: false) {
        type
        path
        page {
          descriptor
          configAsJson
          template {
            _path
          }
        }
        part {
          descriptor
          configAsJson
        }
        layout {
          descriptor
          configAsJson
        }
        text {
          value {
            processedHtml
          }
        }
        fragment {
          id
          fragment {
            components {
              type
              path
              part {
                descriptor
                configAsJson
              }
              layout {
                descriptor
                configAsJson
              }
              text {
                value {
                  processedHtml
                }
              }
            }
          }
        }
      }
    }
  }
}`

// Meta is the metadata payload of a resolved content item.
type Meta struct {
	Type       string
	Path       string
	PageAsJSON map[string]any
	Components []*pagetree.PageComponent
}

// FetchMeta runs the metadata query for the given canonical content path.
// It returns (nil, nil) when the path resolves to no content. Backend error
// details are logged, not surfaced; the caller only sees a count.
func (c *Client) FetchMeta(ctx context.Context, path string) (*Meta, error) {
	if strings.TrimSpace(c.metaQuery) == "" {
		return nil, NewAPIError("400", "metadata query is blank")
	}

	body, err := c.Fetch(ctx, Request{
		Query:     c.metaQuery,
		Variables: map[string]any{"path": path},
	})
	if err != nil {
		return nil, err
	}
	if apiErr := ResponseErrors(ctx, body); apiErr != nil {
		return nil, apiErr
	}

	get := dig(body, "data", "guillotine", "get")
	if get == nil {
		return nil, nil
	}
	return &Meta{
		Type:       str(get["type"]),
		Path:       str(get["_path"]),
		PageAsJSON: asMap(get["pageAsJson"]),
		Components: pagetree.ParseComponents(get["components"]),
	}, nil
}

// ResponseErrors inspects a parsed response for a top-level errors
// collection, normalizing a single error object into a one-element list.
// Each entry is logged; the returned error carries only the count.
func ResponseErrors(ctx context.Context, body map[string]any) *APIError {
	raw, present := body["errors"]
	if !present || raw == nil {
		return nil
	}
	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	default:
		list = []any{v}
	}
	if len(list) == 0 {
		return nil
	}
	logger := ctxlog.FromContext(ctx)
	for i, entry := range list {
		logger.Error("graph API returned an error", "index", i, "error", entry)
	}
	return NewAPIError("500", "%d error(s) in response; see log", len(list))
}

func dig(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		m = asMap(m[k])
		if m == nil {
			return nil
		}
	}
	return m
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
