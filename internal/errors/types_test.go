package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicates(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name      string
		err       error
		predicate func(error) bool
	}{
		{"not found", NewTemplateNotFoundError("ce_text"), IsNotFound},
		{"insecure path", NewInsecurePathError("../x"), IsInsecurePath},
		{"invalid configuration", NewInvalidConfigurationError("bad source"), IsInvalidConfiguration},
		{"skip", NewSkipError(), IsSkip},
		{"loader", NewLoaderError("a.html.twig", cause), IsRenderError},
		{"syntax", NewSyntaxError("a.html.twig", cause), IsRenderError},
		{"runtime", NewRuntimeError("a.html.twig", cause), IsRenderError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.predicate(tt.err))
			assert.True(t, tt.predicate(fmt.Errorf("wrapped: %w", tt.err)))
			assert.False(t, tt.predicate(cause))
		})
	}
}

func TestRenderErrorsKeepCause(t *testing.T) {
	cause := errors.New("unexpected token")
	err := NewSyntaxError("@Acme/ce_text.html.twig", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "@Acme/ce_text.html.twig")
	assert.Contains(t, err.Error(), ErrCodeSyntax)

	var te *TwigError
	require.ErrorAs(t, fmt.Errorf("render: %w", err), &te)
	assert.Equal(t, ErrorTypeRender, te.Type)
}

func TestIsComparesTypeAndCode(t *testing.T) {
	assert.ErrorIs(t, fmt.Errorf("listener: %w", NewSkipError()), NewSkipError())
	assert.NotErrorIs(t, NewTemplateNotFoundError("a"), NewSkipError())
	assert.ErrorIs(t, NewTemplateNotFoundError("a"), NewTemplateNotFoundError("b"))
}

func TestSkipErrorsAreIndependent(t *testing.T) {
	decorated := NewSkipError().WithTemplate("ce_text").WithContext("listener", "acme")

	fresh := NewSkipError()
	assert.Empty(t, fresh.Template)
	assert.Nil(t, fresh.Context)
	assert.NotSame(t, decorated, fresh)
	assert.ErrorIs(t, decorated, fresh)
	assert.True(t, IsSkip(decorated))
}

func TestRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(NewSkipError()))
	assert.False(t, IsRecoverable(NewInsecurePathError("/etc")))
	assert.False(t, IsRecoverable(errors.New("plain")))
}

type recordingLogger struct {
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(_ context.Context, _ error, msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(_ context.Context, _ error, msg string, _ ...interface{}) {
	l.warns = append(l.warns, msg)
}

func TestErrorHandler(t *testing.T) {
	logger := &recordingLogger{}
	h := NewErrorHandler(logger)
	ctx := context.Background()

	h.Handle(ctx, nil)
	h.Handle(ctx, NewSkipError())
	h.Handle(ctx, NewTemplateNotFoundError("ce_text"))
	h.Handle(ctx, NewRuntimeError("a.html.twig", errors.New("nil deref")))
	h.Handle(ctx, NewInsecurePathError("../x"))
	h.Handle(ctx, errors.New("plain"))

	assert.Equal(t, []string{"Template error occurred", "Template error occurred"}, logger.warns)
	assert.Equal(t, []string{"Security error occurred", "Unhandled error occurred"}, logger.errors)

	assert.NotPanics(t, func() { NewErrorHandler(nil).Handle(ctx, errors.New("x")) })
}
