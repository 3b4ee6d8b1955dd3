// Package browser wraps the driven browser behind small capability
// interfaces so the checkout logic can be exercised against synthetic pages.
package browser

import "time"

// Locator names an element declaratively. Selector is a CSS selector; Text,
// when set, is a JavaScript-style regexp ("/pay/i") matched against element
// text among Selector's matches; XPath, when set, wins over both.
type Locator struct {
	Selector string
	Text     string
	XPath    string
}

// Css builds a plain CSS locator.
func Css(selector string) Locator { return Locator{Selector: selector} }

// TextMatch builds a locator matching Selector elements whose text matches
// the given regexp.
func TextMatch(selector, re string) Locator { return Locator{Selector: selector, Text: re} }

// XPath builds an XPath locator.
func XPath(expr string) Locator { return Locator{XPath: expr} }

func (l Locator) String() string {
	if l.XPath != "" {
		return l.XPath
	}
	if l.Text != "" {
		return l.Selector + " " + l.Text
	}
	return l.Selector
}

// Elem is one located element on a page.
type Elem interface {
	Visible() bool
	Enabled() bool
	Text() (string, error)
	Click() error
	// ForceClick dispatches a synthetic click, for elements a normal click
	// does not register on.
	ForceClick() error
	Fill(value string) error
	SelectOption(value string) error
	// Find looks up a descendant of this element.
	Find(loc Locator, timeout time.Duration) (Elem, error)
}

// Page is the capability surface the checkout flow needs from a live page.
// The flow never owns browser lifecycle decisions beyond what Session
// exposes.
type Page interface {
	Navigate(url string) error
	// WaitReady blocks until the page finished loading and settled, or the
	// timeout expires.
	WaitReady(timeout time.Duration) error
	URL() string
	Find(loc Locator, timeout time.Duration) (Elem, error)
	// FindAll waits for at least one match, then returns every match.
	FindAll(loc Locator, timeout time.Duration) ([]Elem, error)
	// Visible reports whether loc resolves to a visible element within the
	// timeout. It never returns an error: not-found is simply false.
	Visible(loc Locator, timeout time.Duration) bool
	// Frame resolves an iframe element and returns its content document as
	// a Page.
	Frame(loc Locator, timeout time.Duration) (Page, error)
	Screenshot(path string) error
}
