package checkout

import (
	"context"
	"strings"
	"time"

	"kartpilot/internal/browser"
	"kartpilot/internal/process"
)

// handleOrderSummary extracts the displayed total (best-effort), clicks the
// continue control, and dismisses the consent popup when one shows up.
func (o *Orchestrator) handleOrderSummary(ctx context.Context, id string, pg browser.Page) error {
	sel := o.cfg.Selectors

	o.snap(id, pg, "order_summary_page")
	o.reg.Update(id, process.StageOrderSummary, "", nil)

	// Total extraction failing is non-fatal; proceed with a placeholder.
	total := "Unknown"
	if el, err := pg.Find(browser.TextMatch("span", sel.TotalAmount), o.cfg.PopupProbe()); err == nil {
		if text, err := el.Text(); err == nil && strings.TrimSpace(text) != "" {
			total = strings.TrimSpace(text)
		}
	}
	o.reg.Update(id, process.StageOrderSummary, "", map[string]any{dataKeyTotalAmount: total})

	cont, err := pg.Find(browser.TextMatch("button", sel.SummaryContinueText), o.cfg.ElementWait())
	if err != nil {
		return o.fail(id, pg, "order_summary_error", "Continue button not found: %v", err)
	}
	if !cont.Enabled() {
		// Visible but not yet enabled: give the page one more beat.
		select {
		case <-time.After(3 * time.Second):
		case <-ctx.Done():
			return o.fail(id, pg, "order_summary_cancelled", "Cancelled on order summary: %v", ctx.Err())
		}
	}
	if err := cont.Click(); err != nil {
		return o.fail(id, pg, "order_summary_error", "Failed to click Continue: %v", err)
	}

	// Optional consent/terms popup. Absence is the normal case.
	if accept, err := pg.Find(browser.TextMatch("button", sel.ConsentAcceptText), o.cfg.PopupProbe()); err == nil {
		if accept.Visible() {
			_ = accept.Click()
		}
	}

	if err := pg.WaitReady(o.cfg.SettlementWait()); err != nil {
		return o.fail(id, pg, "order_summary_error", "Page did not settle after Continue: %v", err)
	}
	o.snap(id, pg, "after_summary_continue_click")

	o.reg.Update(id, process.StageSummaryCompleted, "", nil)
	return nil
}
