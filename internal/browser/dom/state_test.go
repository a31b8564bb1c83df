// File: internal/browser/dom/state_test.go
package dom_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pmensalt/primefaces/internal/browser/dom"
	"github.com/pmensalt/primefaces/internal/mocks"
)

func cleanButton() *mocks.MockElement {
	el := new(mocks.MockElement)
	el.On("IsDisplayed", mock.Anything).Return(true, nil)
	el.On("IsEnabled", mock.Anything).Return(true, nil)
	el.On("Attribute", mock.Anything, "class").Return("ui-button ui-widget ui-state-default", nil)
	return el
}

func TestIsElementEnabled(t *testing.T) {
	ctx := context.Background()

	t.Run("natively enabled without marker", func(t *testing.T) {
		ok, err := dom.IsElementEnabled(ctx, cleanButton())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("natively enabled with disabled marker", func(t *testing.T) {
		el := new(mocks.MockElement)
		el.On("IsEnabled", mock.Anything).Return(true, nil)
		el.On("Attribute", mock.Anything, "class").Return("ui-button UI-STATE-DISABLED", nil)

		ok, err := dom.IsElementEnabled(ctx, el)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("natively disabled skips class lookup", func(t *testing.T) {
		el := new(mocks.MockElement)
		el.On("IsEnabled", mock.Anything).Return(false, nil)

		ok, err := dom.IsElementEnabled(ctx, el)
		require.NoError(t, err)
		assert.False(t, ok)
		el.AssertNotCalled(t, "Attribute", mock.Anything, mock.Anything)
	})

	t.Run("stale element is not enabled", func(t *testing.T) {
		el := new(mocks.MockElement)
		el.On("IsEnabled", mock.Anything).Return(false, dom.ErrStaleElement)

		ok, err := dom.IsElementEnabled(ctx, el)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestIsElementClickable(t *testing.T) {
	ctx := context.Background()

	t.Run("clean element", func(t *testing.T) {
		el := cleanButton()
		ok, err := dom.IsElementClickable(ctx, el)
		require.NoError(t, err)
		assert.True(t, ok)
		el.AssertExpectations(t)
	})

	t.Run("hidden element short-circuits", func(t *testing.T) {
		el := new(mocks.MockElement)
		el.On("IsDisplayed", mock.Anything).Return(false, nil)

		ok, err := dom.IsElementClickable(ctx, el)
		require.NoError(t, err)
		assert.False(t, ok)
		el.AssertNotCalled(t, "IsEnabled", mock.Anything)
	})

	t.Run("marked disabled", func(t *testing.T) {
		el := new(mocks.MockElement)
		el.On("IsDisplayed", mock.Anything).Return(true, nil)
		el.On("IsEnabled", mock.Anything).Return(true, nil)
		el.On("Attribute", mock.Anything, "class").Return("ui-state-disabled", nil)

		ok, err := dom.IsElementClickable(ctx, el)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("detached element", func(t *testing.T) {
		el := new(mocks.MockElement)
		el.On("IsDisplayed", mock.Anything).Return(false, fmt.Errorf("%w: #save", dom.ErrStaleElement))

		ok, err := dom.IsElementClickable(ctx, el)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("other errors propagate", func(t *testing.T) {
		boom := errors.New("websocket closed")
		el := new(mocks.MockElement)
		el.On("IsDisplayed", mock.Anything).Return(false, boom)

		ok, err := dom.IsElementClickable(ctx, el)
		assert.ErrorIs(t, err, boom)
		assert.False(t, ok)
	})
}

func TestProbe(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		err     error
		want    dom.Presence
		wantErr bool
	}{
		{name: "present", err: nil, want: dom.Present},
		{name: "missing", err: dom.ErrNoSuchElement, want: dom.Absent},
		{name: "stale", err: fmt.Errorf("resolve: %w", dom.ErrStaleElement), want: dom.Stale},
		{name: "transport error", err: errors.New("timeout"), want: dom.Absent, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := new(mocks.MockElement)
			el.On("IsDisplayed", mock.Anything).Return(false, tt.err)

			got, err := dom.Probe(ctx, el)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	p, err := dom.Probe(ctx, nil)
	assert.NoError(t, err)
	assert.Equal(t, dom.Absent, p)
	assert.Equal(t, "stale", dom.Stale.String())
}

func TestIsElementPresent_HiddenButAttached(t *testing.T) {
	el := new(mocks.MockElement)
	el.On("IsDisplayed", mock.Anything).Return(false, nil)

	ok, err := dom.IsElementPresent(context.Background(), el)
	require.NoError(t, err)
	assert.True(t, ok, "an attached element is present even when hidden")
}

func TestHasCSSClass(t *testing.T) {
	ctx := context.Background()
	el := new(mocks.MockElement)
	el.On("Attribute", mock.Anything, "class").Return("  ui-inputfield  ui-state-Error\tui-widget ", nil)

	ok, err := dom.HasCSSClass(ctx, el, "ui-inputfield", "UI-STATE-ERROR")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = dom.HasCSSClass(ctx, el, "ui-inputfield", "ui-state-focus")
	require.NoError(t, err)
	assert.False(t, ok, "every class must be present")
}

func TestSelectorVariants(t *testing.T) {
	ctx := context.Background()

	finder := new(mocks.MockFinder)
	finder.On("FindElement", mock.Anything, "#save").Return(cleanButton(), nil)
	finder.On("FindElement", mock.Anything, "#gone").Return(nil, fmt.Errorf("%w: #gone", dom.ErrNoSuchElement))

	ok, err := dom.IsClickable(ctx, finder, "#save")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = dom.IsEnabled(ctx, finder, "#save")
	require.NoError(t, err)
	assert.True(t, ok)

	for name, check := range map[string]func(context.Context, dom.Finder, string) (bool, error){
		"present":   dom.IsPresent,
		"displayed": dom.IsDisplayed,
		"enabled":   dom.IsEnabled,
		"clickable": dom.IsClickable,
	} {
		ok, err := check(ctx, finder, "#gone")
		assert.NoError(t, err, name)
		assert.False(t, ok, name)
	}

	p, err := dom.ProbeSelector(ctx, finder, "#gone")
	require.NoError(t, err)
	assert.Equal(t, dom.Absent, p)

	p, err = dom.ProbeSelector(ctx, finder, "#save")
	require.NoError(t, err)
	assert.Equal(t, dom.Present, p)
}
