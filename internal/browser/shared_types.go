// internal/browser/shared_types.go
package browser

import (
	"context"
	"time"
)

// valueOnlyContext inherits values but not cancellation. Quit uses it so a
// browser still shuts down when the caller's context is already done.
type valueOnlyContext struct{ context.Context }

func (valueOnlyContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (valueOnlyContext) Done() <-chan struct{}       { return nil }
func (valueOnlyContext) Err() error                  { return nil }

func detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}

// combineContext derives from primary, which carries the chromedp target,
// and is also canceled when secondary is. The caller must call the returned
// cancel func.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}
