package browser

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-rod/rod"
)

// OTPOutcome is the verdict of the site's login API on a submitted OTP.
type OTPOutcome int

const (
	// OTPUnknown means no verdict arrived in time.
	OTPUnknown OTPOutcome = iota
	OTPAccepted
	// OTPIncorrect is the recoverable wrong-code verdict; the login step may
	// retry with a fresh code.
	OTPIncorrect
	// OTPRejected is any other structured failure.
	OTPRejected
)

// LoginVerifier watches the login API for a structured verdict on a
// submitted OTP. A nil verifier means no verdict is available and the flow
// falls back to page-state classification.
type LoginVerifier interface {
	// Arm starts watching. The returned wait blocks until a verdict or the
	// timeout; stop tears the watcher down and must always be called.
	Arm() (wait func(ctx context.Context, timeout time.Duration) OTPOutcome, stop func())
}

// wrongOTPErrorCode is the site's structured error code for an incorrect
// login OTP, as opposed to a generic login failure.
const wrongOTPErrorCode = "LOGIN_1008"

// OTPWatcher is a rod-backed LoginVerifier. It hijacks responses from the
// login OTP endpoint and inspects the JSON body.
type OTPWatcher struct {
	page     *rod.Page
	endpoint string
}

func NewOTPWatcher(page *RodPage, endpoint string) *OTPWatcher {
	return &OTPWatcher{page: page.Rod(), endpoint: endpoint}
}

type otpAPIResponse struct {
	StatusCode int    `json:"STATUS_CODE"`
	ErrorCode  string `json:"errorCode"`
	Message    string `json:"message"`
}

func (w *OTPWatcher) Arm() (func(ctx context.Context, timeout time.Duration) OTPOutcome, func()) {
	verdicts := make(chan OTPOutcome, 1)

	router := w.page.HijackRequests()
	router.MustAdd("*"+w.endpoint+"*", func(ctx *rod.Hijack) {
		if err := ctx.LoadResponse(http.DefaultClient, true); err != nil {
			return
		}
		var resp otpAPIResponse
		if err := json.Unmarshal([]byte(ctx.Response.Body()), &resp); err != nil {
			deliver(verdicts, OTPRejected)
			return
		}
		switch {
		case resp.StatusCode == 200:
			deliver(verdicts, OTPAccepted)
		case resp.ErrorCode == wrongOTPErrorCode:
			deliver(verdicts, OTPIncorrect)
		default:
			deliver(verdicts, OTPRejected)
		}
	})
	go router.Run()

	wait := func(ctx context.Context, timeout time.Duration) OTPOutcome {
		select {
		case v := <-verdicts:
			return v
		case <-time.After(timeout):
			return OTPUnknown
		case <-ctx.Done():
			return OTPUnknown
		}
	}
	stop := func() { _ = router.Stop() }
	return wait, stop
}

func deliver(ch chan OTPOutcome, v OTPOutcome) {
	select {
	case ch <- v:
	default:
	}
}
