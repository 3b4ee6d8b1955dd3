package checkout

import (
	"context"
	"time"

	"go.uber.org/zap"

	"kartpilot/internal/browser"
	"kartpilot/internal/process"
)

// handleLogin fills the phone identifier, requests an OTP, suspends until an
// external caller supplies the code, then submits it. With a login verifier
// wired (console runs) a recoverable wrong-OTP verdict re-suspends for a
// fresh code, up to MaxOTPAttempts; without one (API runs) a wrong OTP
// surfaces later as a failed page-state classification.
func (o *Orchestrator) handleLogin(ctx context.Context, id string, pg browser.Page) error {
	sel := o.cfg.Selectors

	o.reg.Update(id, process.StageLoginRequired, "", nil)
	o.snap(id, pg, "login_phone_request")

	phone := placeholderPhone
	if v, ok := o.reg.DataValue(id, dataKeyPhone); ok {
		if s, ok := v.(string); ok && s != "" {
			phone = s
		}
	}

	phoneInput, err := pg.Find(browser.Css(sel.PhoneInput), o.cfg.ElementWait())
	if err != nil {
		return o.fail(id, pg, "login_error", "Phone input not found: %v", err)
	}
	if err := phoneInput.Fill(phone); err != nil {
		return o.fail(id, pg, "login_error", "Failed to fill phone number: %v", err)
	}

	cont, err := pg.Find(browser.TextMatch("button", sel.SummaryContinueText), o.cfg.ElementWait())
	if err != nil {
		return o.fail(id, pg, "login_error", "Login continue button not found: %v", err)
	}
	if err := cont.Click(); err != nil {
		return o.fail(id, pg, "login_error", "Failed to request OTP: %v", err)
	}

	otpInput, err := pg.Find(browser.Css(sel.OTPInput), o.cfg.ElementWait())
	if err != nil {
		return o.fail(id, pg, "login_error", "OTP input did not appear: %v", err)
	}

	maxAttempts := 1
	if o.verifier != nil {
		maxAttempts = o.cfg.MaxOTPAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		o.reg.Update(id, process.StageOTPRequested, "", map[string]any{dataKeyOTPAttempt: attempt})
		o.snap(id, pg, "login_otp_request")

		if err := o.gates.Wait(ctx, id); err != nil {
			return o.fail(id, pg, "login_cancelled", "Cancelled while waiting for OTP: %v", err)
		}

		otp, ok := o.dataString(id, dataKeyOTP)
		if !ok {
			return o.fail(id, pg, "login_error", "OTP was signaled but is missing from process data")
		}

		if err := otpInput.Fill(otp); err != nil {
			return o.fail(id, pg, "login_error", "Failed to fill OTP: %v", err)
		}

		var awaitVerdict func(context.Context, time.Duration) browser.OTPOutcome
		var stopWatch func()
		if o.verifier != nil {
			awaitVerdict, stopWatch = o.verifier.Arm()
		}

		submit, err := pg.Find(browser.TextMatch(sel.LoginSubmit, sel.LoginSubmitText), o.cfg.ElementWait())
		if err != nil {
			if stopWatch != nil {
				stopWatch()
			}
			return o.fail(id, pg, "login_error", "Login submit button not found: %v", err)
		}
		if err := submit.Click(); err != nil {
			if stopWatch != nil {
				stopWatch()
			}
			return o.fail(id, pg, "login_error", "Failed to submit login: %v", err)
		}

		if awaitVerdict == nil {
			break
		}

		verdict := awaitVerdict(ctx, 20*time.Second)
		stopWatch()
		switch verdict {
		case browser.OTPAccepted:
			// fall through to the post-login wait
		case browser.OTPIncorrect:
			o.log.Info("incorrect OTP, retrying",
				zap.String("process_id", id),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts))
			if attempt == maxAttempts {
				return o.fail(id, pg, "login_error", "Login failed: maximum OTP attempts reached")
			}
			continue
		case browser.OTPRejected:
			return o.fail(id, pg, "login_error", "Login failed: API rejected the login attempt")
		case browser.OTPUnknown:
			return o.fail(id, pg, "login_error", "Login failed: timed out waiting for OTP API verdict")
		}
		break
	}

	if err := pg.WaitReady(o.cfg.NavigationWait()); err != nil {
		return o.fail(id, pg, "login_error", "Page did not settle after login: %v", err)
	}
	o.snap(id, pg, "after_login")
	o.reg.Update(id, process.StageLoginCompleted, "", nil)
	return nil
}

func (o *Orchestrator) dataString(id, key string) (string, bool) {
	v, ok := o.reg.DataValue(id, key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
