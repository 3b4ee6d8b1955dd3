// Package checkout implements the checkout state machine: page-state
// classification, the per-step handlers, and the orchestrator that drives a
// browser page through them.
package checkout

import (
	"time"

	"go.uber.org/zap"

	"kartpilot/internal/browser"
	"kartpilot/internal/config"
)

// PageState names what step the live page currently shows.
type PageState string

const (
	StateLogin        PageState = "LOGIN"
	StateAddress      PageState = "ADDRESS"
	StateOrderSummary PageState = "ORDER_SUMMARY"
	StatePayment      PageState = "PAYMENT"
	StateBankOTP      PageState = "BANK_OTP"
	StateCompleted    PageState = "COMPLETED"
	StateError        PageState = "ERROR"
	StateUnknown      PageState = "UNKNOWN"
)

// Signature recognizes one page state: a locator plus the context to search
// it in. When Iframes is set the locator is probed inside each candidate
// iframe in order instead of the main document.
type Signature struct {
	State   PageState
	Locator browser.Locator
	Iframes []string
}

// Classifier evaluates an ordered signature list against a live page. Order
// is by specificity: narrow state-specific signatures first, broad generic
// input patterns last, so a generic OTP-looking input never shadows a more
// specific match.
type Classifier struct {
	signatures     []Signature
	checkTimeout   time.Duration
	iframePrecheck time.Duration
	log            *zap.Logger
}

func NewClassifier(cfg *config.Config, log *zap.Logger) *Classifier {
	sel := cfg.Selectors
	return &Classifier{
		checkTimeout:   cfg.ClassifyCheck(),
		iframePrecheck: cfg.IframePrecheck(),
		log:            log,
		signatures: []Signature{
			{State: StatePayment, Locator: browser.TextMatch("label, div", sel.CardOptionText)},
			{State: StateOrderSummary, Locator: browser.TextMatch("button", sel.SummaryContinueText)},
			{State: StateAddress, Locator: browser.Css(sel.AddressBlock)},
			{State: StateLogin, Locator: browser.Css(sel.PhoneInput)},
			// Bank OTP: exact known widget first, then generic inputs inside
			// payment iframes, then generic inputs on the main document.
			{State: StateBankOTP, Locator: browser.Css(sel.BankOTPInputExact)},
			{State: StateBankOTP, Locator: browser.Css(sel.BankOTPInput), Iframes: sel.BankIframes},
			{State: StateBankOTP, Locator: browser.Css(sel.BankOTPInput)},
		},
	}
}

// Classify returns the first matching signature's state, or StateUnknown
// when nothing matches. Each visibility check carries its own short timeout
// so the full scan stays bounded.
func (c *Classifier) Classify(pg browser.Page) PageState {
	for _, sig := range c.signatures {
		if len(sig.Iframes) == 0 {
			if pg.Visible(sig.Locator, c.checkTimeout) {
				c.log.Debug("page state detected",
					zap.String("state", string(sig.State)),
					zap.String("locator", sig.Locator.String()))
				return sig.State
			}
			continue
		}

		for _, iframeSel := range sig.Iframes {
			// Fast pre-check that the candidate iframe itself is visible,
			// so a long list of absent iframes does not cost a full
			// per-signature timeout each.
			if !pg.Visible(browser.Css(iframeSel), c.iframePrecheck) {
				continue
			}
			frame, err := pg.Frame(browser.Css(iframeSel), c.iframePrecheck)
			if err != nil {
				continue
			}
			if frame.Visible(sig.Locator, c.checkTimeout) {
				c.log.Debug("page state detected in iframe",
					zap.String("state", string(sig.State)),
					zap.String("iframe", iframeSel))
				return sig.State
			}
		}
	}

	c.log.Debug("page state unknown, no signatures matched")
	return StateUnknown
}
