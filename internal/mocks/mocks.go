// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pmensalt/primefaces/internal/browser"
	"github.com/pmensalt/primefaces/internal/browser/dom"
)

// -- Browser Mocks --

// MockFactory mocks browser.Factory.
type MockFactory struct {
	mock.Mock
}

func (m *MockFactory) CreateDriver(ctx context.Context) (browser.Driver, error) {
	args := m.Called(ctx)
	if d := args.Get(0); d != nil {
		return d.(browser.Driver), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockDriver mocks browser.Driver.
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) FindElement(ctx context.Context, selector string) (dom.Element, error) {
	args := m.Called(ctx, selector)
	if el := args.Get(0); el != nil {
		return el.(dom.Element), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDriver) RunScript(ctx context.Context, script string, res any, scriptArgs ...any) error {
	args := m.Called(ctx, script, res, scriptArgs)
	return args.Error(0)
}

func (m *MockDriver) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockDriver) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) Click(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *MockDriver) SetWindowSize(ctx context.Context, width, height int64) error {
	return m.Called(ctx, width, height).Error(0)
}

func (m *MockDriver) AddScriptOnNewDocument(ctx context.Context, source string) error {
	return m.Called(ctx, source).Error(0)
}

func (m *MockDriver) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	args := m.Called(ctx)
	if c := args.Get(0); c != nil {
		return c.([]browser.Cookie), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDriver) DeleteAllCookies(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDriver) Quit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockStorageDriver is a MockDriver that also offers browser.WebStorage.
type MockStorageDriver struct {
	MockDriver
}

func (m *MockStorageDriver) LocalStorage(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockStorageDriver) SessionStorage(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockStorageDriver) ClearStorage(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockElement mocks dom.Element.
type MockElement struct {
	mock.Mock
}

func (m *MockElement) IsDisplayed(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockElement) IsEnabled(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockElement) Attribute(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

// MockFinder mocks dom.Finder.
type MockFinder struct {
	mock.Mock
}

func (m *MockFinder) FindElement(ctx context.Context, selector string) (dom.Element, error) {
	args := m.Called(ctx, selector)
	if el := args.Get(0); el != nil {
		return el.(dom.Element), args.Error(1)
	}
	return nil, args.Error(1)
}

var (
	_ browser.Factory    = (*MockFactory)(nil)
	_ browser.Driver     = (*MockDriver)(nil)
	_ browser.WebStorage = (*MockStorageDriver)(nil)
	_ dom.Element        = (*MockElement)(nil)
	_ dom.Finder         = (*MockFinder)(nil)
)
