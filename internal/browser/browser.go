// Package browser drives the Chrome session used by the export workflow:
// launch or connect via Rod, route downloads to a directory, and expose the
// handful of element primitives the workflow needs.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// By selects how a Selector's Value is interpreted.
type By int

const (
	ByID   By = iota // element id attribute
	ByCSS            // CSS selector
	ByText           // exact visible text of an element
)

// Selector locates an element on the current page.
type Selector struct {
	By    By
	Value string
}

// ID returns a selector matching the element with the given id attribute.
func ID(id string) Selector { return Selector{By: ByID, Value: id} }

// CSS returns a selector matching a CSS expression.
func CSS(css string) Selector { return Selector{By: ByCSS, Value: css} }

// Text returns a selector matching an element whose visible text equals s.
func Text(s string) Selector { return Selector{By: ByText, Value: s} }

func (s Selector) String() string {
	switch s.By {
	case ByID:
		return "id=" + s.Value
	case ByCSS:
		return "css=" + s.Value
	case ByText:
		return fmt.Sprintf("text=%q", s.Value)
	}
	return s.Value
}

// ErrWaitTimeout is returned when an element does not reach the awaited
// state within the allotted time.
var ErrWaitTimeout = errors.New("browser: wait timed out")

// Element is a handle on a located page element.
type Element interface {
	// Click performs a real mouse click. It fails when the element is
	// covered or otherwise not accepting pointer input.
	Click() error
	// ForceClick dispatches a click programmatically, bypassing hit tests.
	ForceClick() error
	// ClearValue empties the element's value directly, without keystrokes.
	ClearValue() error
	// Type focuses the element and inserts text at the caret, firing the
	// page's input events. It does not send individual key events.
	Type(text string) error
	// PressTab sends a Tab key to move focus on and commit the field.
	PressTab() error
}

// Driver is the browser session the workflow runs against.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// Find returns the element matching sel without waiting.
	Find(ctx context.Context, sel Selector) (Element, error)
	// FindAll returns every element matching sel in document order.
	FindAll(ctx context.Context, sel Selector) ([]Element, error)
	// WaitPresent waits up to timeout for sel to be attached to the DOM.
	WaitPresent(ctx context.Context, sel Selector, timeout time.Duration) (Element, error)
	// WaitClickable waits up to timeout for sel to be visible and enabled.
	WaitClickable(ctx context.Context, sel Selector, timeout time.Duration) (Element, error)
	Close() error
}
