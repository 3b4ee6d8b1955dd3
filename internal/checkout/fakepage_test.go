package checkout

import (
	"fmt"
	"sync"
	"time"

	"kartpilot/internal/browser"
)

// fakeElem is an in-memory element for driving handlers without a browser.
type fakeElem struct {
	visible  bool
	disabled bool
	text     string

	clicks  int
	fills   []string
	selects []string
	onClick func()

	children map[string]*fakeElem
}

func visibleElem(text string) *fakeElem {
	return &fakeElem{visible: true, text: text}
}

func (e *fakeElem) Visible() bool { return e.visible }
func (e *fakeElem) Enabled() bool { return !e.disabled }

func (e *fakeElem) Text() (string, error) { return e.text, nil }

func (e *fakeElem) Click() error {
	e.clicks++
	if e.onClick != nil {
		e.onClick()
	}
	return nil
}

func (e *fakeElem) ForceClick() error { return e.Click() }

func (e *fakeElem) Fill(value string) error {
	e.fills = append(e.fills, value)
	return nil
}

func (e *fakeElem) SelectOption(value string) error {
	e.selects = append(e.selects, value)
	return nil
}

func (e *fakeElem) Find(loc browser.Locator, _ time.Duration) (browser.Elem, error) {
	if child, ok := e.children[loc.String()]; ok {
		return child, nil
	}
	return nil, fmt.Errorf("element %s not found", loc)
}

// fakePage is a synthetic page keyed by locator string. Timeouts resolve
// instantly: an absent element is an immediate miss.
type fakePage struct {
	mu     sync.Mutex
	url    string
	elems  map[string]*fakeElem
	lists  map[string][]*fakeElem
	frames map[string]*fakePage
}

func newFakePage() *fakePage {
	return &fakePage{
		elems:  make(map[string]*fakeElem),
		lists:  make(map[string][]*fakeElem),
		frames: make(map[string]*fakePage),
	}
}

func (p *fakePage) set(loc browser.Locator, el *fakeElem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elems[loc.String()] = el
}

func (p *fakePage) remove(loc browser.Locator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elems, loc.String())
}

func (p *fakePage) setList(loc browser.Locator, els []*fakeElem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lists[loc.String()] = els
}

func (p *fakePage) Navigate(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	return nil
}

func (p *fakePage) WaitReady(time.Duration) error { return nil }

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *fakePage) Find(loc browser.Locator, _ time.Duration) (browser.Elem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elems[loc.String()]; ok {
		return el, nil
	}
	return nil, fmt.Errorf("element %s not found", loc)
}

func (p *fakePage) FindAll(loc browser.Locator, _ time.Duration) ([]browser.Elem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	list, ok := p.lists[loc.String()]
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("no elements %s found", loc)
	}
	out := make([]browser.Elem, len(list))
	for i, el := range list {
		out[i] = el
	}
	return out, nil
}

func (p *fakePage) Visible(loc browser.Locator, _ time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elems[loc.String()]
	return ok && el.visible
}

func (p *fakePage) Frame(loc browser.Locator, _ time.Duration) (browser.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.frames[loc.String()]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("iframe %s not found", loc)
}

func (p *fakePage) Screenshot(string) error { return nil }
