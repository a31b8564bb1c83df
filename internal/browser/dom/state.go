// File: internal/browser/dom/state.go
package dom

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNoSuchElement is returned when a lookup matches nothing.
	ErrNoSuchElement = errors.New("no such element")
	// ErrStaleElement is returned when an element handle outlived its document
	// or was detached from it.
	ErrStaleElement = errors.New("stale element reference")
)

// DisabledClass is the widget-library marker for elements that are disabled
// even though the native control may still report itself enabled.
const DisabledClass = "ui-state-disabled"

// Element is a handle to a node in the page.
type Element interface {
	IsDisplayed(ctx context.Context) (bool, error)
	IsEnabled(ctx context.Context) (bool, error)
	// Attribute returns the attribute value, or "" if it is absent.
	Attribute(ctx context.Context, name string) (string, error)
}

// Finder looks elements up by CSS selector.
type Finder interface {
	FindElement(ctx context.Context, selector string) (Element, error)
}

// Presence is the outcome of probing an element.
type Presence int

const (
	Present Presence = iota
	Absent
	Stale
)

func (p Presence) String() string {
	switch p {
	case Present:
		return "present"
	case Absent:
		return "absent"
	case Stale:
		return "stale"
	}
	return "unknown"
}

// classify maps lookup failures onto a Presence. Any other error is returned
// unchanged.
func classify(err error) (Presence, error) {
	switch {
	case err == nil:
		return Present, nil
	case errors.Is(err, ErrNoSuchElement):
		return Absent, nil
	case errors.Is(err, ErrStaleElement):
		return Stale, nil
	default:
		return Absent, err
	}
}

// Probe touches el and reports whether it is still attached to the page.
func Probe(ctx context.Context, el Element) (Presence, error) {
	if el == nil {
		return Absent, nil
	}
	_, err := el.IsDisplayed(ctx)
	return classify(err)
}

// ProbeSelector looks selector up and probes the first match.
func ProbeSelector(ctx context.Context, f Finder, selector string) (Presence, error) {
	el, err := f.FindElement(ctx, selector)
	if p, err := classify(err); p != Present || err != nil {
		return p, err
	}
	return Probe(ctx, el)
}

// IsElementPresent reports whether el can still be queried.
func IsElementPresent(ctx context.Context, el Element) (bool, error) {
	p, err := Probe(ctx, el)
	return p == Present, err
}

// IsElementDisplayed reports whether el is rendered and visible.
func IsElementDisplayed(ctx context.Context, el Element) (bool, error) {
	if el == nil {
		return false, nil
	}
	ok, err := el.IsDisplayed(ctx)
	return settle(ok, err)
}

// IsElementEnabled reports whether el is natively enabled and not marked with
// DisabledClass.
func IsElementEnabled(ctx context.Context, el Element) (bool, error) {
	if el == nil {
		return false, nil
	}
	ok, err := el.IsEnabled(ctx)
	if ok, err = settle(ok, err); !ok || err != nil {
		return false, err
	}
	marked, err := HasCSSClass(ctx, el, DisabledClass)
	if err != nil {
		return settle(false, err)
	}
	return !marked, nil
}

// IsElementClickable reports whether el is displayed, natively enabled and
// not marked disabled. It stops at the first check that fails.
func IsElementClickable(ctx context.Context, el Element) (bool, error) {
	displayed, err := IsElementDisplayed(ctx, el)
	if !displayed || err != nil {
		return false, err
	}
	return IsElementEnabled(ctx, el)
}

// HasCSSClass reports whether el carries every one of classes. The
// comparison ignores case.
func HasCSSClass(ctx context.Context, el Element, classes ...string) (bool, error) {
	attr, err := el.Attribute(ctx, "class")
	if err != nil {
		return false, err
	}
	have := make(map[string]struct{})
	for _, c := range strings.Fields(attr) {
		have[strings.ToLower(c)] = struct{}{}
	}
	for _, want := range classes {
		if _, ok := have[strings.ToLower(want)]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// settle folds not-found and stale errors into a plain false.
func settle(ok bool, err error) (bool, error) {
	if err == nil {
		return ok, nil
	}
	if errors.Is(err, ErrNoSuchElement) || errors.Is(err, ErrStaleElement) {
		return false, nil
	}
	return false, err
}

func find(ctx context.Context, f Finder, selector string, check func(context.Context, Element) (bool, error)) (bool, error) {
	el, err := f.FindElement(ctx, selector)
	if err != nil {
		return settle(false, err)
	}
	return check(ctx, el)
}

// IsPresent is IsElementPresent for the first element matching selector.
func IsPresent(ctx context.Context, f Finder, selector string) (bool, error) {
	return find(ctx, f, selector, IsElementPresent)
}

// IsDisplayed is IsElementDisplayed for the first element matching selector.
func IsDisplayed(ctx context.Context, f Finder, selector string) (bool, error) {
	return find(ctx, f, selector, IsElementDisplayed)
}

// IsEnabled is IsElementEnabled for the first element matching selector.
func IsEnabled(ctx context.Context, f Finder, selector string) (bool, error) {
	return find(ctx, f, selector, IsElementEnabled)
}

// IsClickable is IsElementClickable for the first element matching selector.
func IsClickable(ctx context.Context, f Finder, selector string) (bool, error) {
	return find(ctx, f, selector, IsElementClickable)
}
