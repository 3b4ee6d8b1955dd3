package browser

import (
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// RodPage adapts a rod page to the Page interface.
type RodPage struct {
	page *rod.Page
}

func NewRodPage(page *rod.Page) *RodPage {
	return &RodPage{page: page}
}

// Rod exposes the underlying page for callers that need raw CDP access,
// such as the login response watcher.
func (p *RodPage) Rod() *rod.Page { return p.page }

func (p *RodPage) Navigate(url string) error {
	if err := p.page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *RodPage) WaitReady(timeout time.Duration) error {
	pg := p.page.Timeout(timeout)
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("page failed to load: %w", err)
	}
	// Stability is best-effort: a page with a long-polling widget never
	// settles, and that must not fail the step.
	_ = pg.WaitStable(time.Second)
	return nil
}

func (p *RodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *RodPage) find(loc Locator, timeout time.Duration) (*rod.Element, error) {
	pg := p.page.Timeout(timeout)
	switch {
	case loc.XPath != "":
		return pg.ElementX(loc.XPath)
	case loc.Text != "":
		return pg.ElementR(loc.Selector, loc.Text)
	default:
		return pg.Element(loc.Selector)
	}
}

func (p *RodPage) Find(loc Locator, timeout time.Duration) (Elem, error) {
	el, err := p.find(loc, timeout)
	if err != nil {
		return nil, fmt.Errorf("element %s not found: %w", loc, err)
	}
	return &rodElem{el: el}, nil
}

func (p *RodPage) FindAll(loc Locator, timeout time.Duration) ([]Elem, error) {
	// Wait for the first match so a list still rendering is not read as
	// empty, then collect the full set.
	if _, err := p.find(loc, timeout); err != nil {
		return nil, fmt.Errorf("no elements %s found: %w", loc, err)
	}
	var els rod.Elements
	var err error
	if loc.XPath != "" {
		els, err = p.page.ElementsX(loc.XPath)
	} else {
		els, err = p.page.Elements(loc.Selector)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate %s: %w", loc, err)
	}
	out := make([]Elem, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElem{el: el})
	}
	return out, nil
}

func (p *RodPage) Visible(loc Locator, timeout time.Duration) bool {
	el, err := p.find(loc, timeout)
	if err != nil {
		return false
	}
	visible, err := el.Visible()
	return err == nil && visible
}

func (p *RodPage) Frame(loc Locator, timeout time.Duration) (Page, error) {
	el, err := p.find(loc, timeout)
	if err != nil {
		return nil, fmt.Errorf("iframe %s not found: %w", loc, err)
	}
	frame, err := el.Frame()
	if err != nil {
		return nil, fmt.Errorf("failed to enter iframe %s: %w", loc, err)
	}
	return &RodPage{page: frame}, nil
}

func (p *RodPage) Screenshot(path string) error {
	data, err := p.page.Screenshot(false, nil)
	if err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}

type rodElem struct {
	el *rod.Element
}

func (e *rodElem) Visible() bool {
	visible, err := e.el.Visible()
	return err == nil && visible
}

func (e *rodElem) Enabled() bool {
	disabled, err := e.el.Property("disabled")
	if err != nil {
		return true
	}
	return !disabled.Bool()
}

func (e *rodElem) Text() (string, error) {
	return e.el.Text()
}

func (e *rodElem) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElem) ForceClick() error {
	_, err := e.el.Eval(`() => this.click()`)
	return err
}

func (e *rodElem) Fill(value string) error {
	// Clear any prefilled value first; Input appends.
	if err := e.el.SelectAllText(); err == nil {
		_ = e.el.Input("")
	}
	return e.el.Input(value)
}

func (e *rodElem) SelectOption(value string) error {
	return e.el.Select([]string{value}, true, rod.SelectorTypeText)
}

func (e *rodElem) Find(loc Locator, timeout time.Duration) (Elem, error) {
	el := e.el.Timeout(timeout)
	var found *rod.Element
	var err error
	switch {
	case loc.XPath != "":
		found, err = el.ElementX(loc.XPath)
	case loc.Text != "":
		found, err = el.ElementR(loc.Selector, loc.Text)
	default:
		found, err = el.Element(loc.Selector)
	}
	if err != nil {
		return nil, fmt.Errorf("element %s not found: %w", loc, err)
	}
	return &rodElem{el: found}, nil
}
