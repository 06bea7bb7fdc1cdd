package resolver

import (
	"strings"

	guillotine "github.com/pagegraph/pagegraph/internal/guillotine"
	pagetree "github.com/pagegraph/pagegraph/internal/pagetree"
	querybatch "github.com/pagegraph/pagegraph/internal/querybatch"
	registry "github.com/pagegraph/pagegraph/internal/registry"
)

// ComponentDescriptor drives one slot of the batched query. Descriptors are
// ephemeral: built per request, discarded with it.
type ComponentDescriptor struct {
	Entry     *registry.Entry
	Component *pagetree.PageComponent
	Query     *querybatch.QueryAndVariables
}

// Fixed positions in the descriptor list. Component descriptors follow.
const (
	slotContent = 0
	slotCommon  = 1
)

// collectDescriptors produces the ordered descriptor list: the content-type
// query first, the common query second, then one descriptor per component.
// Fragment components are not queried directly; their nested components are
// promoted to the outer list.
func (r *Resolver) collectDescriptors(meta *guillotine.Meta, typeEntry *registry.Entry, rc registry.RequestContext) []*ComponentDescriptor {
	descriptors := make([]*ComponentDescriptor, 2)

	descriptors[slotContent] = &ComponentDescriptor{Entry: typeEntry}
	if typeEntry != nil && typeEntry.Query != nil {
		descriptors[slotContent].Query = resolveContract(typeEntry.Query, meta.Path, rc, nil)
	}

	descriptors[slotCommon] = &ComponentDescriptor{}
	if common := r.reg.CommonQuery(); common != nil {
		descriptors[slotCommon].Query = resolveContract(common, meta.Path, rc, nil)
	}

	r.walkComponents(meta.Components, meta.Path, rc, &descriptors)
	return descriptors
}

func (r *Resolver) walkComponents(components []*pagetree.PageComponent, contentPath string, rc registry.RequestContext, out *[]*ComponentDescriptor) {
	for _, cmp := range components {
		if cmp.RawConfig != nil {
			cmp.SetConfig(r.flattenConfig(cmp.RawConfig, cmp.Descriptor()))
			cmp.RawConfig = nil
		}
		if cmp.Kind == pagetree.KindFragment {
			if cmp.Fragment != nil {
				r.walkComponents(cmp.Fragment.Components, contentPath, rc, out)
			}
			continue
		}
		descriptor := &ComponentDescriptor{Component: cmp}
		if key := cmp.Descriptor(); key != "" {
			if entry := r.reg.Component(cmp.Kind, key); entry != nil {
				descriptor.Entry = entry
				if entry.Query != nil {
					descriptor.Query = resolveContract(entry.Query, contentPath, rc, cmp.Config())
				}
			}
		}
		*out = append(*out, descriptor)
	}
}

// flattenConfig extracts the configuration scoped to the application's
// namespace from the raw configAsJson blob. The guillotine convention keys
// the blob by the dash-escaped application name, then by the dash-escaped
// component name from the descriptor.
func (r *Resolver) flattenConfig(raw map[string]any, descriptorKey string) map[string]any {
	if r.appKey == "" || len(raw) == 0 {
		return nil
	}
	scoped, ok := raw[strings.ReplaceAll(r.appKey, ".", "-")].(map[string]any)
	if !ok {
		return nil
	}
	name := descriptorKey
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	if cfg, ok := scoped[strings.ReplaceAll(name, ".", "-")].(map[string]any); ok {
		return cfg
	}
	return scoped
}

func resolveContract(contract *registry.QueryContract, path string, rc registry.RequestContext, config map[string]any) *querybatch.QueryAndVariables {
	variablesFn := contract.Variables
	if variablesFn == nil {
		variablesFn = registry.DefaultVariables
	}
	return &querybatch.QueryAndVariables{
		Query:     contract.Query,
		Variables: variablesFn(path, rc, config),
	}
}

func queryInputs(descriptors []*ComponentDescriptor) []*querybatch.QueryAndVariables {
	inputs := make([]*querybatch.QueryAndVariables, len(descriptors))
	for i, d := range descriptors {
		inputs[i] = d.Query
	}
	return inputs
}

func componentPathAt(descriptors []*ComponentDescriptor, i int) string {
	if i < 0 || i >= len(descriptors) || descriptors[i].Component == nil {
		return ""
	}
	return descriptors[i].Component.Path
}

// aliasedResults maps the batched response back onto descriptor positions
// via the request<i> aliases.
func aliasedResults(body map[string]any, descriptors []*ComponentDescriptor) []any {
	data, _ := body["data"].(map[string]any)
	results := make([]any, len(descriptors))
	if data == nil {
		return results
	}
	for i := range descriptors {
		results[i] = data[querybatch.Alias(i)]
	}
	return results
}
