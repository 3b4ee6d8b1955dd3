package process

import "fmt"

// Stage names the step of the checkout state machine a process is in.
type Stage string

const (
	StageInitializing      Stage = "INITIALIZING"
	StageNavigating        Stage = "NAVIGATING"
	StageClickingBuyNow    Stage = "CLICKING_BUY_NOW"
	StageLoginRequired     Stage = "LOGIN_REQUIRED"
	StageOTPRequested      Stage = "OTP_REQUESTED"
	StageOTPSubmitted      Stage = "OTP_SUBMITTED"
	StageLoginCompleted    Stage = "LOGIN_COMPLETED"
	StageSelectingAddress  Stage = "SELECTING_ADDRESS"
	StageAddressSelected   Stage = "ADDRESS_SELECTED"
	StageOrderSummary      Stage = "ORDER_SUMMARY"
	StageSummaryCompleted  Stage = "ORDER_SUMMARY_COMPLETED"
	StagePaymentRequested  Stage = "PAYMENT_REQUESTED"
	StagePaymentSubmitted  Stage = "PAYMENT_SUBMITTED"
	StagePaymentCompleted  Stage = "PAYMENT_COMPLETED"
	StageBankOTPRequested  Stage = "BANK_OTP_REQUESTED"
	StageBankOTPSubmitted  Stage = "BANK_OTP_SUBMITTED"
	StageCompleted         Stage = "COMPLETED"
	StageError             Stage = "ERROR"
	StageCancelled         Stage = "CANCELLED"
)

// stageDescriptions is the fallback message used when a status update
// carries no message of its own.
var stageDescriptions = map[Stage]string{
	StageInitializing:     "Initializing the checkout process",
	StageNavigating:       "Navigating to product page",
	StageClickingBuyNow:   "Clicking Buy Now button",
	StageLoginRequired:    "Waiting for phone number input",
	StageOTPRequested:     "Waiting for OTP input",
	StageOTPSubmitted:     "OTP submitted, processing",
	StageLoginCompleted:   "Login completed successfully",
	StageSelectingAddress: "Waiting for address selection",
	StageAddressSelected:  "Address selected, processing",
	StageOrderSummary:     "Processing order summary",
	StageSummaryCompleted: "Order summary processed",
	StagePaymentRequested: "Waiting for payment details",
	StagePaymentSubmitted: "Payment details submitted, processing",
	StagePaymentCompleted: "Payment initiated",
	StageBankOTPRequested: "Waiting for bank OTP",
	StageBankOTPSubmitted: "Bank OTP submitted, processing",
	StageCompleted:        "Checkout process completed",
	StageError:            "An error occurred during checkout",
	StageCancelled:        "Checkout process was cancelled",
}

// Description returns the canonical human-readable text for a stage.
func (s Stage) Description() string {
	if d, ok := stageDescriptions[s]; ok {
		return d
	}
	return string(s)
}

// Terminal reports whether no further stage changes may happen.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError || s == StageCancelled
}

// transitions lists the legal successor stages for each stage. ERROR and
// CANCELLED are reachable from any non-terminal stage, and a stage may
// always refresh itself, so neither is listed per-row. The back-edges out
// of the *_COMPLETED and *_SELECTED stages cover re-dispatch of a step
// whose page did not advance after the previous pass.
var transitions = map[Stage][]Stage{
	StageInitializing:     {StageNavigating},
	StageNavigating:       {StageClickingBuyNow},
	StageClickingBuyNow:   {StageLoginRequired, StageSelectingAddress, StageOrderSummary},
	StageLoginRequired:    {StageOTPRequested},
	StageOTPRequested:     {StageOTPSubmitted},
	StageOTPSubmitted:     {StageOTPRequested, StageLoginCompleted},
	StageLoginCompleted:   {StageLoginRequired, StageSelectingAddress, StageOrderSummary},
	StageSelectingAddress: {StageAddressSelected},
	StageAddressSelected:  {StageSelectingAddress, StageOrderSummary},
	StageOrderSummary:     {StageSummaryCompleted},
	StageSummaryCompleted: {StageOrderSummary, StagePaymentRequested},
	StagePaymentRequested: {StagePaymentSubmitted},
	StagePaymentSubmitted: {StagePaymentCompleted},
	StagePaymentCompleted: {StagePaymentRequested, StageBankOTPRequested},
	StageBankOTPRequested: {StageBankOTPSubmitted},
	StageBankOTPSubmitted: {StageCompleted},
	StageCompleted:        {},
	StageError:            {},
	StageCancelled:        {},
}

// ValidTransition reports whether from -> to is a legal stage change.
// A non-terminal stage may re-enter itself (message or data refresh), and
// entering ERROR or CANCELLED is legal from any non-terminal stage. The
// registry consults this on every update; the very first update for a
// record may set any stage.
func ValidTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if from == to || to == StageError || to == StageCancelled {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func init() {
	// Every stage named in a transition row must itself have a row; a typo
	// here would otherwise only surface at runtime mid-checkout.
	for from, nexts := range transitions {
		for _, to := range nexts {
			if _, ok := transitions[to]; !ok {
				panic(fmt.Sprintf("stage transition table: %s -> %s references unknown stage", from, to))
			}
		}
	}
}
