package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kartpilot/internal/browser"
	"kartpilot/internal/process"
)

// AddressOption is one enumerated delivery address, exposed to the external
// caller so it can pick an index.
type AddressOption struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Text  string `json:"text"`
}

// subElementProbe bounds the per-block lookups while parsing address blocks.
const subElementProbe = 500 * time.Millisecond

// handleAddress enumerates the visible address blocks, suspends until the
// caller selects an index, then clicks the block and the delivery
// confirmation control. An out-of-range index is a terminal failure.
func (o *Orchestrator) handleAddress(ctx context.Context, id string, pg browser.Page) error {
	sel := o.cfg.Selectors

	o.snap(id, pg, "address_selection_page")

	// Expand the collapsed list when a "view all" control is present;
	// absence is normal.
	if viewAll, err := pg.Find(browser.TextMatch("div, button", sel.ViewAllAddresses), o.cfg.PopupProbe()); err == nil {
		if viewAll.Visible() {
			_ = viewAll.Click()
			_ = pg.WaitReady(o.cfg.PopupProbe())
		}
	}

	blocks, err := pg.FindAll(browser.Css(sel.AddressBlock), o.cfg.ElementWait())
	if err != nil || len(blocks) == 0 {
		return o.fail(id, pg, "address_error", "No address blocks found")
	}

	addresses := make([]AddressOption, 0, len(blocks))
	for i, block := range blocks {
		addresses = append(addresses, AddressOption{
			Index: i,
			Name:  o.addressName(block, i),
			Text:  o.addressText(block),
		})
	}

	o.reg.Update(id, process.StageSelectingAddress, "", map[string]any{dataKeyAddresses: addresses})

	if err := o.gates.Wait(ctx, id); err != nil {
		return o.fail(id, pg, "address_cancelled", "Cancelled while waiting for address selection: %v", err)
	}

	v, ok := o.reg.DataValue(id, dataKeyAddressIndex)
	if !ok {
		return o.fail(id, pg, "address_error", "Address index missing from process data")
	}
	index, ok := v.(int)
	if !ok {
		return o.fail(id, pg, "address_error", "Address index has unexpected type %T", v)
	}
	if index < 0 || index >= len(blocks) {
		return o.fail(id, pg, "address_error", "Invalid address index: %d (have %d addresses)", index, len(blocks))
	}

	if err := blocks[index].Click(); err != nil {
		return o.fail(id, pg, "address_error", "Failed to click address block: %v", err)
	}
	o.snap(id, pg, "after_address_selection")

	deliver, err := pg.Find(browser.TextMatch("button", sel.DeliverHereText), o.cfg.ElementWait())
	if err != nil {
		return o.fail(id, pg, "address_error", "Deliver Here button not found: %v", err)
	}
	if err := deliver.Click(); err != nil {
		return o.fail(id, pg, "address_error", "Failed to click Deliver Here: %v", err)
	}

	if err := pg.WaitReady(o.cfg.NavigationWait()); err != nil {
		return o.fail(id, pg, "address_error", "Page did not settle after address selection: %v", err)
	}
	o.snap(id, pg, "after_deliver_here_click")

	o.reg.Update(id, process.StageAddressSelected, "Address selected successfully", nil)
	return nil
}

// addressName extracts a display name for a block: first the label-relative
// strategy, then the positional fallback, then a numbered placeholder.
func (o *Orchestrator) addressName(block browser.Elem, index int) string {
	sel := o.cfg.Selectors
	if sel.AddressName != "" {
		if el, err := block.Find(browser.XPath(sel.AddressName), subElementProbe); err == nil && el.Visible() {
			if text, err := el.Text(); err == nil && strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
		}
	}
	if el, err := block.Find(browser.Css(sel.AddressNameAlt), subElementProbe); err == nil && el.Visible() {
		if text, err := el.Text(); err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	return fmt.Sprintf("Address %d", index+1)
}

func (o *Orchestrator) addressText(block browser.Elem) string {
	el, err := block.Find(browser.Css(o.cfg.Selectors.AddressText), subElementProbe)
	if err != nil || !el.Visible() {
		return "Address details not found"
	}
	text, err := el.Text()
	if err != nil {
		return "Address details not found"
	}
	return strings.Join(strings.Fields(text), " ")
}
