package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	pagetree "github.com/pagegraph/pagegraph/internal/pagetree"
	registry "github.com/pagegraph/pagegraph/internal/registry"
)

func passthroughEntry() *registry.Entry {
	return &registry.Entry{Processor: registry.DefaultProcessor}
}

func rejectingEntry(err error) *registry.Entry {
	return &registry.Entry{
		Processor: func(ctx context.Context, data any) (any, error) { return nil, err },
	}
}

func partComponent(path string) *pagetree.PageComponent {
	return &pagetree.PageComponent{Kind: pagetree.KindPart, Path: path, Part: &pagetree.PartData{Descriptor: "com.example:p"}}
}

func TestStitch_OneFailureDoesNotAbortTheOthers(t *testing.T) {
	r := New(nil, registry.New())
	first := partComponent("/main/0")
	second := partComponent("/main/1")
	third := partComponent("/main/2")

	descriptors := []*ComponentDescriptor{
		{Entry: passthroughEntry()},
		{},
		{Entry: passthroughEntry(), Component: first},
		{Entry: rejectingEntry(errors.New("boom")), Component: second},
		{Entry: passthroughEntry(), Component: third},
	}
	results := []any{
		map[string]any{"content": true},
		nil,
		map[string]any{"a": 1},
		map[string]any{"b": 2},
		map[string]any{"c": 3},
	}

	result := &FetchContentResult{}
	r.stitch(context.Background(), result, descriptors, results)

	require.Equal(t, map[string]any{"content": true}, result.Data)
	require.Equal(t, map[string]any{"a": 1}, first.Data)
	require.Equal(t, map[string]any{"c": 3}, third.Data)

	require.Nil(t, second.Data)
	require.Contains(t, second.Error, "boom")
}

func TestStitch_PanickingProcessorSettlesAsError(t *testing.T) {
	r := New(nil, registry.New())
	cmp := partComponent("/main/0")
	descriptors := []*ComponentDescriptor{
		{Entry: passthroughEntry()},
		{},
		{
			Component: cmp,
			Entry: &registry.Entry{
				Processor: func(ctx context.Context, data any) (any, error) { panic("oh no") },
			},
		},
	}

	result := &FetchContentResult{}
	r.stitch(context.Background(), result, descriptors, []any{nil, nil, nil})

	require.Contains(t, cmp.Error, "processor panicked")
	require.Contains(t, cmp.Error, "oh no")
}

func TestStitch_ContentProcessorFailureLeavesDataNull(t *testing.T) {
	r := New(nil, registry.New())
	descriptors := []*ComponentDescriptor{
		{Entry: rejectingEntry(errors.New("nope"))},
		{Entry: passthroughEntry()},
	}

	result := &FetchContentResult{}
	r.stitch(context.Background(), result, descriptors, []any{map[string]any{"x": 1}, map[string]any{"y": 2}})

	require.Nil(t, result.Data)
	require.Equal(t, map[string]any{"y": 2}, result.Common)
}

func TestStitch_UnregisteredComponentStaysUntouched(t *testing.T) {
	r := New(nil, registry.New())
	cmp := partComponent("/main/0")
	descriptors := []*ComponentDescriptor{
		{},
		{},
		{Component: cmp}, // no Entry: nothing was queried for it
	}

	result := &FetchContentResult{}
	r.stitch(context.Background(), result, descriptors, []any{nil, nil, nil})

	require.Nil(t, cmp.Data)
	require.Empty(t, cmp.Error)
	// the content and common slots still settle through the default processor
	require.Equal(t, map[string]any{}, result.Data)
	require.Equal(t, map[string]any{}, result.Common)
}
