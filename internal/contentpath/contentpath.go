// Package contentpath canonicalizes site-relative content paths and parses
// the slash-delimited component paths guillotine uses to address components
// inside nested page regions.
package contentpath

import (
	"fmt"
	"strconv"
	"strings"
)

// ContentTypeFragment is the content type whose root component has no owning
// region and is addressed with a synthetic default region instead.
const ContentTypeFragment = "portal:fragment"

// FragmentDefaultRegion is the region name prepended to component paths of
// fragment contents.
const FragmentDefaultRegion = "main"

// Canonicalize turns a content path supplied as a string or a sequence of
// segments into one canonical slash-joined string. A nil path canonicalizes
// to the empty string. Any other shape is rejected.
func Canonicalize(v any) (string, error) {
	switch p := v.(type) {
	case nil:
		return "", nil
	case string:
		return p, nil
	case []string:
		return strings.Join(p, "/"), nil
	case []any:
		segs := make([]string, len(p))
		for i, s := range p {
			str, ok := s.(string)
			if !ok {
				return "", fmt.Errorf("content path segment %d is %T, not a string", i, s)
			}
			segs[i] = str
		}
		return strings.Join(segs, "/"), nil
	default:
		return "", fmt.Errorf("content path must be a string or a list of segments, got %T", v)
	}
}

// Segment is one (region, index) pair of a component path.
type Segment struct {
	Region string
	Index  int
}

// ParseComponentPath splits a component path such as "/main/0/left/1" into
// its (region, index) pairs, left to right. For fragment contents a synthetic
// leading pair is prepended because the fragment root is addressed as "/"
// without a real owning region.
func ParseComponentPath(contentType, path string) []Segment {
	var segments []Segment
	if contentType == ContentTypeFragment {
		segments = append(segments, Segment{Region: FragmentDefaultRegion, Index: 0})
	}
	parts := strings.Split(path, "/")
	for i := 0; i+1 < len(parts); i++ {
		region := parts[i]
		if region == "" {
			continue
		}
		index, err := strconv.Atoi(parts[i+1])
		if err != nil {
			continue
		}
		segments = append(segments, Segment{Region: region, Index: index})
		i++
	}
	return segments
}

// ComponentPathString renders parsed segments back into the canonical
// component path string. When fragment is true the synthetic leading segment
// is dropped, so the rendered path matches the paths the backend declares on
// fragment components.
func ComponentPathString(segments []Segment, fragment bool) string {
	if fragment && len(segments) > 0 {
		segments = segments[1:]
	}
	if len(segments) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(s.Region)
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(s.Index))
	}
	return b.String()
}
