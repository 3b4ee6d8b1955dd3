package checkout

import (
	"fmt"
	"time"

	"kartpilot/internal/browser"
	"kartpilot/internal/config"
)

// BankOTPTargets are the two elements the bank-OTP step needs: the code
// input and the confirm control.
type BankOTPTargets struct {
	OTPInput browser.Locator
	Confirm  browser.Locator
}

// OTPResolver proposes locators for the bank-OTP page. Bank pages are the
// least standardized part of the flow, so resolution strategies are
// pluggable: resolvers are tried in order, each with its own timeout, and
// the first success wins. The handler contract around them (suspend, fill,
// click, await navigation) is fixed.
type OTPResolver interface {
	Name() string
	Resolve(pg browser.Page, timeout time.Duration) (BankOTPTargets, error)
}

// StaticOTPResolver matches the configured heuristic selector patterns:
// password/tel-typed inputs and name/id hints, with the exact known widget
// checked first.
type StaticOTPResolver struct {
	exact   browser.Locator
	generic browser.Locator
	confirm browser.Locator
}

func NewStaticOTPResolver(cfg *config.Config) *StaticOTPResolver {
	sel := cfg.Selectors
	return &StaticOTPResolver{
		exact:   browser.Css(sel.BankOTPInputExact),
		generic: browser.Css(sel.BankOTPInput),
		confirm: browser.TextMatch(`button, input[type="submit"]`, sel.BankConfirmText),
	}
}

func (r *StaticOTPResolver) Name() string { return "static" }

func (r *StaticOTPResolver) Resolve(pg browser.Page, timeout time.Duration) (BankOTPTargets, error) {
	if pg.Visible(r.exact, timeout/4) {
		return BankOTPTargets{OTPInput: r.exact, Confirm: r.confirm}, nil
	}
	if pg.Visible(r.generic, timeout) {
		return BankOTPTargets{OTPInput: r.generic, Confirm: r.confirm}, nil
	}
	return BankOTPTargets{}, fmt.Errorf("no OTP input matched static patterns")
}
