package pagetree

// ParseComponents decodes the component list of a metadata response into
// PageComponent nodes. Unknown or malformed entries are skipped; the
// metadata shape is trusted beyond basic presence checks.
func ParseComponents(raw any) []*PageComponent {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]*PageComponent, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if c := parseComponent(m); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func parseComponent(m map[string]any) *PageComponent {
	c := &PageComponent{
		Kind: Kind(asString(m["type"])),
		Path: asString(m["path"]),
	}
	switch c.Kind {
	case KindPart:
		p := asMap(m["part"])
		c.Part = &PartData{Descriptor: asString(p["descriptor"])}
		c.RawConfig = asMap(p["configAsJson"])
	case KindLayout:
		l := asMap(m["layout"])
		c.Layout = &LayoutData{Descriptor: asString(l["descriptor"])}
		c.RawConfig = asMap(l["configAsJson"])
	case KindPage:
		p := asMap(m["page"])
		c.Page = &PageData{
			Descriptor: asString(p["descriptor"]),
			Template:   asString(asMap(p["template"])["_path"]),
		}
		c.RawConfig = asMap(p["configAsJson"])
	case KindText:
		t := asMap(m["text"])
		value := asString(t["value"])
		if value == "" {
			value = asString(asMap(t["value"])["processedHtml"])
		}
		c.Text = &TextData{Value: value}
	case KindFragment:
		f := asMap(m["fragment"])
		nested := f["components"]
		if nested == nil {
			nested = asMap(f["fragment"])["components"]
		}
		c.Fragment = &FragmentData{
			ID:         asString(f["id"]),
			Components: ParseComponents(nested),
		}
	default:
		return nil
	}
	return c
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
