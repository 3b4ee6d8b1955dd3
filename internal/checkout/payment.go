package checkout

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kartpilot/internal/browser"
	"kartpilot/internal/process"
)

// Expiry input formats published to the external caller so it can supply
// correctly shaped values.
const (
	ExpiryCombined  = "combined"
	ExpiryDropdowns = "dropdowns"
)

// handlePayment selects the card method, detects the expiry input format,
// suspends for card details, fills them and clicks the pay control scoped to
// the payment form.
func (o *Orchestrator) handlePayment(ctx context.Context, id string, pg browser.Page) error {
	sel := o.cfg.Selectors

	o.snap(id, pg, "payment_page")

	cardOption, err := pg.Find(browser.TextMatch("label, div", sel.CardOptionText), o.cfg.ElementWait())
	if err != nil {
		return o.fail(id, pg, "payment_error", "Card payment option not found: %v", err)
	}
	if err := cardOption.Click(); err != nil {
		return o.fail(id, pg, "payment_error", "Failed to select card payment: %v", err)
	}

	cardNumber, err := pg.Find(browser.Css(sel.CardNumberInput), o.cfg.SettlementWait())
	if err != nil {
		return o.fail(id, pg, "payment_error", "Card number field did not appear: %v", err)
	}

	expiryFormat := o.detectExpiryFormat(pg)

	o.reg.Update(id, process.StagePaymentRequested, "", map[string]any{dataKeyExpiryFormat: expiryFormat})
	o.snap(id, pg, "before_payment_details")

	if err := o.gates.Wait(ctx, id); err != nil {
		return o.fail(id, pg, "payment_cancelled", "Cancelled while waiting for payment details: %v", err)
	}

	details, err := o.reg.TakePayment(id)
	if err != nil {
		return o.fail(id, pg, "payment_error", "Payment details missing from process data")
	}

	if err := cardNumber.Fill(details.CardNumber); err != nil {
		return o.fail(id, pg, "payment_error", "Failed to fill card number: %v", err)
	}
	cvv, err := pg.Find(browser.Css(sel.CVVInput), o.cfg.ElementWait())
	if err != nil {
		return o.fail(id, pg, "payment_error", "CVV field not found: %v", err)
	}
	if err := cvv.Fill(details.CVV); err != nil {
		return o.fail(id, pg, "payment_error", "Failed to fill CVV: %v", err)
	}

	if err := o.fillExpiry(pg, expiryFormat, details); err != nil {
		return o.fail(id, pg, "payment_error", "Failed to fill expiry: %v", err)
	}
	details = nil

	o.snap(id, pg, "after_payment_details")

	// The pay button is located within the payment form specifically, so an
	// unrelated page-wide "Pay" control is never clicked by mistake.
	form, err := pg.Find(browser.Css(sel.PaymentForm), o.cfg.ElementWait())
	if err != nil {
		return o.fail(id, pg, "payment_form_not_found", "Payment form (%s) not found: %v", sel.PaymentForm, err)
	}

	o.snap(id, pg, "before_final_pay_attempt")

	payBtn, err := form.Find(browser.TextMatch("button", sel.PayButtonText), o.cfg.NavigationWait())
	if err != nil {
		return o.fail(id, pg, "pay_button_locate_timeout", "Pay button not visible within payment form: %v", err)
	}
	if err := payBtn.Click(); err != nil {
		o.log.Warn("pay click failed, forcing", zap.String("process_id", id), zap.Error(err))
		if err := payBtn.ForceClick(); err != nil {
			return o.fail(id, pg, "pay_button_click_error", "Failed to click Pay button (normal and forced): %v", err)
		}
	}

	// Opportunistic "save card" prompt dismissal; either outcome continues.
	if later, err := pg.Find(browser.TextMatch("button", sel.MaybeLaterText), o.cfg.PopupProbe()); err == nil {
		if later.Visible() {
			_ = later.Click()
		}
	}

	if err := pg.WaitReady(o.cfg.SettlementWait()); err != nil {
		return o.fail(id, pg, "payment_error", "Page did not settle after payment submission: %v", err)
	}
	o.snap(id, pg, "after_payment_submission")

	o.reg.Update(id, process.StagePaymentCompleted, "Payment initiated successfully", nil)
	return nil
}

// detectExpiryFormat probes for a combined MM / YY input first, then the
// month/year dropdown pair, defaulting to combined with a warning when
// neither shows up confidently.
func (o *Orchestrator) detectExpiryFormat(pg browser.Page) string {
	sel := o.cfg.Selectors
	if pg.Visible(browser.Css(sel.ExpiryCombined), 2*time.Second) {
		return ExpiryCombined
	}
	if pg.Visible(browser.Css(sel.MonthSelect), time.Second) &&
		pg.Visible(browser.Css(sel.YearSelect), time.Second) {
		return ExpiryDropdowns
	}
	o.log.Warn("could not detect expiry input format, assuming combined")
	return ExpiryCombined
}

func (o *Orchestrator) fillExpiry(pg browser.Page, format string, details *process.PaymentDetails) error {
	sel := o.cfg.Selectors
	switch format {
	case ExpiryDropdowns:
		if details.ExpiryMonth == "" || details.ExpiryYear == "" {
			return fmt.Errorf("dropdown expiry requires expiry_month and expiry_year")
		}
		month, err := pg.Find(browser.Css(sel.MonthSelect), o.cfg.ElementWait())
		if err != nil {
			return err
		}
		if err := month.SelectOption(details.ExpiryMonth); err != nil {
			return err
		}
		year, err := pg.Find(browser.Css(sel.YearSelect), o.cfg.ElementWait())
		if err != nil {
			return err
		}
		return year.SelectOption(details.ExpiryYear)
	default:
		combined := details.ExpiryCombined
		if combined == "" {
			combined = fmt.Sprintf("%s / %s", details.ExpiryMonth, details.ExpiryYear)
		}
		el, err := pg.Find(browser.Css(sel.ExpiryCombined), o.cfg.ElementWait())
		if err != nil {
			return err
		}
		return el.Fill(combined)
	}
}
