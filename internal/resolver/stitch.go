package resolver

import (
	"context"
	"fmt"
	"sync"

	ctxlog "github.com/pagegraph/pagegraph/internal/ctxlog"
	registry "github.com/pagegraph/pagegraph/internal/registry"
)

// outcome is one processor's settled result: exactly one of value or err.
type outcome struct {
	value any
	err   error
}

// stitch runs every descriptor's post-processor over its slice of the
// batched result and attaches the outcomes: the content and common slots
// onto the result itself, the rest onto their owning components. Processors
// run concurrently and settle independently; one failure never aborts or
// blocks the others.
func (r *Resolver) stitch(ctx context.Context, result *FetchContentResult, descriptors []*ComponentDescriptor, results []any) {
	outcomes := settle(ctx, descriptors, results)
	logger := ctxlog.FromContext(ctx)

	for i, d := range descriptors {
		o := outcomes[i]
		if o == nil {
			continue
		}
		switch {
		case i == slotContent:
			if o.err != nil {
				logger.Error("content query processor failed", "error", o.err)
				continue
			}
			result.Data = o.value
		case i == slotCommon:
			if o.err != nil {
				logger.Error("common query processor failed", "error", o.err)
				continue
			}
			result.Common = o.value
		case d.Component != nil:
			if o.err != nil {
				d.Component.Error = o.err.Error()
				logger.Error("component processor failed", "path", d.Component.Path, "error", o.err)
				continue
			}
			d.Component.Data = o.value
		}
	}
}

// settle runs the processors and collects per-slot outcomes. Slots without a
// registration settle to nil and are left untouched by the caller.
func settle(ctx context.Context, descriptors []*ComponentDescriptor, results []any) []*outcome {
	outcomes := make([]*outcome, len(descriptors))
	var wg sync.WaitGroup
	for i, d := range descriptors {
		processor := processorFor(d)
		if processor == nil {
			continue
		}
		wg.Add(1)
		go func(i int, processor registry.ProcessorFn) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					outcomes[i] = &outcome{err: fmt.Errorf("processor panicked: %v", p)}
				}
			}()
			value, err := processor(ctx, results[i])
			outcomes[i] = &outcome{value: value, err: err}
		}(i, processor)
	}
	wg.Wait()
	return outcomes
}

// processorFor picks the processor for a descriptor. The content and common
// slots always settle; components settle only when registered, so unqueried
// components are not annotated with empty data.
func processorFor(d *ComponentDescriptor) registry.ProcessorFn {
	if d.Entry != nil && d.Entry.Processor != nil {
		return d.Entry.Processor
	}
	if d.Component != nil && d.Entry == nil {
		return nil
	}
	return registry.DefaultProcessor
}
