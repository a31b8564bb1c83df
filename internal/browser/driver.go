// internal/browser/driver.go
package browser

import (
	"context"
	"time"

	"github.com/pmensalt/primefaces/internal/browser/dom"
)

// Cookie is a browser cookie as reported by the driver.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time
	HTTPOnly bool
	Secure   bool
}

// Driver is one live browser instance the pool can command and destroy.
// Implementations must tolerate Quit being called more than once.
type Driver interface {
	dom.Finder

	// RunScript evaluates script as the body of a function invoked with args
	// and decodes its return value into res. res may be nil.
	RunScript(ctx context.Context, script string, res any, args ...any) error
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
	SetWindowSize(ctx context.Context, width, height int64) error
	// AddScriptOnNewDocument registers source to run in every document loaded
	// from now on, before the page's own scripts.
	AddScriptOnNewDocument(ctx context.Context, source string) error
	Cookies(ctx context.Context) ([]Cookie, error)
	DeleteAllCookies(ctx context.Context) error
	Quit(ctx context.Context) error
}

// WebStorage is implemented by drivers that can read and clear the page's
// local and session storage.
type WebStorage interface {
	LocalStorage(ctx context.Context) (map[string]string, error)
	SessionStorage(ctx context.Context) (map[string]string, error)
	ClearStorage(ctx context.Context) error
}

// Factory creates drivers. CreateDriver may fail transiently.
type Factory interface {
	CreateDriver(ctx context.Context) (Driver, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context) (Driver, error)

func (f FactoryFunc) CreateDriver(ctx context.Context) (Driver, error) {
	return f(ctx)
}
