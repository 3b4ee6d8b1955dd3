package checkout

import (
	"context"

	"go.uber.org/zap"

	"kartpilot/internal/browser"
	"kartpilot/internal/process"
)

// handleBankOTP resolves the bank page's OTP input and confirm control via
// the resolver chain, suspends for the code, fills and confirms. A failed
// resolution is terminal, never retried.
func (o *Orchestrator) handleBankOTP(ctx context.Context, id string, pg browser.Page) error {
	o.snap(id, pg, "bank_otp_page")

	var targets BankOTPTargets
	resolved := false
	for _, r := range o.resolvers {
		t, err := r.Resolve(pg, o.cfg.SettlementWait())
		if err != nil {
			o.log.Debug("bank OTP resolver failed",
				zap.String("resolver", r.Name()), zap.Error(err))
			continue
		}
		targets = t
		resolved = true
		break
	}
	if !resolved {
		return o.fail(id, pg, "bank_otp_error", "Bank OTP input could not be located")
	}

	o.reg.Update(id, process.StageBankOTPRequested, "", nil)

	if err := o.gates.Wait(ctx, id); err != nil {
		return o.fail(id, pg, "bank_otp_cancelled", "Cancelled while waiting for bank OTP: %v", err)
	}

	otp, ok := o.dataString(id, dataKeyBankOTP)
	if !ok {
		return o.fail(id, pg, "bank_otp_error", "Bank OTP missing from process data")
	}

	input, err := pg.Find(targets.OTPInput, o.cfg.ElementWait())
	if err != nil {
		return o.fail(id, pg, "bank_otp_error", "Bank OTP input disappeared: %v", err)
	}
	if err := input.Fill(otp); err != nil {
		return o.fail(id, pg, "bank_otp_error", "Failed to fill bank OTP: %v", err)
	}
	o.snap(id, pg, "after_bank_otp_fill")

	confirm, err := pg.Find(targets.Confirm, o.cfg.ElementWait())
	if err != nil {
		return o.fail(id, pg, "bank_otp_error", "Confirm button not found: %v", err)
	}
	if err := confirm.Click(); err != nil {
		o.log.Warn("confirm click failed, forcing", zap.String("process_id", id), zap.Error(err))
		if err := confirm.ForceClick(); err != nil {
			return o.fail(id, pg, "bank_otp_error", "Failed to click confirm (normal and forced): %v", err)
		}
	}

	if err := pg.WaitReady(o.cfg.SettlementWait()); err != nil {
		return o.fail(id, pg, "bank_otp_error", "Page did not settle after bank OTP: %v", err)
	}
	o.snap(id, pg, "final_confirmation")

	o.reg.Update(id, process.StageCompleted, "Order completed successfully", nil)
	return nil
}
