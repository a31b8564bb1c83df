// File: internal/guard/signal.go
package guard

import (
	"context"
	_ "embed"
	"fmt"
)

// CounterScript installs the partial-update completion counter in a document.
// It is registered to run in every new document and is re-evaluated, as a
// no-op when already present, on every partial-update signal read.
//
//go:embed completion.js
var CounterScript string

func partialSignalScript() string {
	return CounterScript + "\nreturn window.pfgo.completed;"
}

// The time origin changes with every new document, so a freshly loaded page
// always reports a larger value than the one it replaced. The baseline is
// read whatever the document's state; the wait only accepts a value from a
// complete document, and a loading one reports 0.
const (
	fullPageBaselineScript = `return Math.floor(performance.timeOrigin * 1000);`
	fullPageSignalScript   = `return document.readyState === 'complete' ? Math.floor(performance.timeOrigin * 1000) : 0;`
)

// ScriptRunner evaluates JavaScript in the page and decodes its return value
// into res. Browser sessions satisfy it.
type ScriptRunner interface {
	RunScript(ctx context.Context, script string, res any, args ...any) error
}

// readBaseline returns the value a later signal must exceed.
func readBaseline(ctx context.Context, r ScriptRunner, kind Kind) (int64, error) {
	if kind == FullPageLoad {
		return evalSignal(ctx, r, kind, fullPageBaselineScript)
	}
	return evalSignal(ctx, r, kind, partialSignalScript())
}

// readSignal returns the current completion value for kind.
func readSignal(ctx context.Context, r ScriptRunner, kind Kind) (int64, error) {
	if kind == FullPageLoad {
		return evalSignal(ctx, r, kind, fullPageSignalScript)
	}
	return evalSignal(ctx, r, kind, partialSignalScript())
}

func evalSignal(ctx context.Context, r ScriptRunner, kind Kind, script string) (int64, error) {
	var v int64
	if err := r.RunScript(ctx, script, &v); err != nil {
		return 0, fmt.Errorf("reading %s completion signal: %w", kind, err)
	}
	return v, nil
}
