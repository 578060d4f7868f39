package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchBeforeParseOrder(t *testing.T) {
	d := NewDispatcher()
	var calls []string

	record := func(name string) BeforeParseListener {
		return func(_ context.Context, event *BeforeParseEvent) error {
			calls = append(calls, name)
			return nil
		}
	}
	d.OnBeforeParse(record("low"), -10)
	d.OnBeforeParse(record("first default"), 0)
	d.OnBeforeParse(record("high"), 100)
	d.OnBeforeParse(record("second default"), 0)

	require.NoError(t, d.DispatchBeforeParse(context.Background(), &BeforeParseEvent{}))
	assert.Equal(t, []string{"high", "first default", "second default", "low"}, calls)

	parse, render := d.Count()
	assert.Equal(t, 4, parse)
	assert.Equal(t, 0, render)
}

func TestDispatchBeforeParseMutatesEvent(t *testing.T) {
	d := NewDispatcher()
	d.OnBeforeParse(func(_ context.Context, event *BeforeParseEvent) error {
		event.TemplateName = "ce_text_custom"
		event.TemplateData["headline"] = "Changed"
		return nil
	}, 0)

	event := &BeforeParseEvent{TemplateName: "ce_text", TemplateData: map[string]any{}}
	require.NoError(t, d.DispatchBeforeParse(context.Background(), event))
	assert.Equal(t, "ce_text_custom", event.TemplateName)
	assert.Equal(t, "Changed", event.TemplateData["headline"])
}

func TestDispatchStopsOnError(t *testing.T) {
	d := NewDispatcher()
	stop := errors.New("stop")
	reached := false

	d.OnBeforeRender(func(context.Context, *BeforeRenderEvent) error { return stop }, 10)
	d.OnBeforeRender(func(context.Context, *BeforeRenderEvent) error {
		reached = true
		return nil
	}, 0)

	err := d.DispatchBeforeRender(context.Background(), &BeforeRenderEvent{})
	assert.ErrorIs(t, err, stop)
	assert.False(t, reached)
}

func TestDispatchBeforeRenderChangesPath(t *testing.T) {
	d := NewDispatcher()
	d.OnBeforeRender(func(_ context.Context, event *BeforeRenderEvent) error {
		event.TemplatePath = "@Acme/ce_text.html.twig"
		return nil
	}, 0)

	event := &BeforeRenderEvent{TemplateName: "ce_text", TemplatePath: "ce_text.html.twig"}
	require.NoError(t, d.DispatchBeforeRender(context.Background(), event))
	assert.Equal(t, "@Acme/ce_text.html.twig", event.TemplatePath)
}

func TestNilDispatcher(t *testing.T) {
	var d *Dispatcher
	assert.NoError(t, d.DispatchBeforeParse(context.Background(), &BeforeParseEvent{}))
	assert.NoError(t, d.DispatchBeforeRender(context.Background(), &BeforeRenderEvent{}))
}

func TestConcurrentRegistration(t *testing.T) {
	d := NewDispatcher()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(priority int) {
			defer wg.Done()
			d.OnBeforeParse(func(context.Context, *BeforeParseEvent) error { return nil }, priority)
		}(i)
		go func() {
			defer wg.Done()
			_ = d.DispatchBeforeParse(context.Background(), &BeforeParseEvent{})
		}()
	}
	wg.Wait()

	parse, _ := d.Count()
	assert.Equal(t, 20, parse)
}
