package pagetree

import (
	"errors"
	"fmt"

	contentpath "github.com/pagegraph/pagegraph/internal/contentpath"
)

// ErrStructuralInconsistency marks a component list whose paths reference a
// layout that is not present in the list. Tree construction aborts.
var ErrStructuralInconsistency = errors.New("structural inconsistency in component tree")

// BuildPage folds the flat component list into one page tree. The component
// at path "/" with kind page seeds the root; every other component is routed
// to its owning region and spliced in at its slot index.
func BuildPage(contentType string, components []*PageComponent) (*PageComponent, error) {
	page := &PageComponent{
		Kind:    KindPage,
		Path:    "/",
		Regions: map[string]*PageRegion{},
	}
	for _, cmp := range components {
		if cmp.Path == "/" && cmp.Kind == KindPage {
			page.Page = cmp.Page
			page.Data = cmp.Data
			page.Error = cmp.Error
			continue
		}
		segments := contentpath.ParseComponentPath(contentType, cmp.Path)
		if len(segments) == 0 {
			continue
		}
		region, err := parentRegion(page.Regions, contentType, segments, components, true)
		if err != nil {
			return nil, err
		}
		region.insert(cmp, segments[len(segments)-1].Index)
	}
	return page, nil
}

// parentRegion walks the parsed component path down through nested region
// trees and returns the region owning the terminal segment. Every
// non-terminal segment must name a layout component already present in the
// flat list; that layout supplies the next nesting level.
func parentRegion(tree map[string]*PageRegion, contentType string, segments []contentpath.Segment, all []*PageComponent, createMissing bool) (*PageRegion, error) {
	isFragment := contentType == contentpath.ContentTypeFragment
	for i, segment := range segments {
		if i == len(segments)-1 {
			region := tree[segment.Region]
			if region == nil {
				if !createMissing {
					return nil, fmt.Errorf("%w: region %q not found", ErrStructuralInconsistency, segment.Region)
				}
				region = &PageRegion{Name: segment.Region}
				tree[segment.Region] = region
			}
			return region, nil
		}

		parentPath := contentpath.ComponentPathString(segments[:i+1], isFragment)
		layout := findLayout(all, parentPath)
		if layout == nil {
			return nil, fmt.Errorf("%w: no layout component at %q", ErrStructuralInconsistency, parentPath)
		}
		if layout.Regions == nil {
			layout.Regions = map[string]*PageRegion{}
		}
		tree = layout.Regions
	}
	return nil, fmt.Errorf("%w: empty component path", ErrStructuralInconsistency)
}

func findLayout(components []*PageComponent, path string) *PageComponent {
	for _, c := range components {
		if c.Kind == KindLayout && c.Path == path {
			return c
		}
	}
	return nil
}
