package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"kartpilot/internal/browser"
	"kartpilot/internal/config"
	"kartpilot/internal/process"
)

// Data map keys with a fixed meaning per step.
const (
	dataKeyProductURL     = "product_url"
	dataKeyProductTitle   = "product_title"
	dataKeySessionName    = "session_name"
	dataKeySessionLoaded  = "used_existing_session"
	dataKeyPhone          = "phone"
	dataKeyOTP            = "otp"
	dataKeyOTPAttempt     = "otp_attempt"
	dataKeyAddresses      = "available_addresses"
	dataKeyAddressIndex   = "address_index"
	dataKeyTotalAmount    = "total_amount"
	dataKeyExpiryFormat   = "expiry_input_type"
	dataKeyPaymentStored  = "payment_details_provided"
	dataKeyBankOTP        = "bank_otp"
)

// placeholderPhone is filled when the start request carried no identifier.
const placeholderPhone = "1234567890"

// maxDispatchRounds bounds the classify/dispatch loop so a page that keeps
// re-presenting the same step cannot spin forever.
const maxDispatchRounds = 12

// Session is a live browser session as the orchestrator sees it.
type Session interface {
	Page() browser.Page
	Export() ([]byte, error)
	Close()
}

// SessionFactory opens a browser session, restoring the given opaque state
// blob when non-nil.
type SessionFactory func(state []byte) (Session, error)

// Orchestrator drives checkout processes end to end: one goroutine per
// process owns the page; external setters only write record data and signal
// the per-process gate.
type Orchestrator struct {
	cfg        *config.Config
	log        *zap.Logger
	reg        *process.Registry
	gates      *process.Gates
	shots      *browser.Capturer
	classifier *Classifier
	resolvers  []OTPResolver

	store       *browser.SessionStore
	openSession SessionFactory

	// verifier, when set, supplies structured login-API verdicts enabling
	// the interactive OTP retry loop. Nil for API-driven runs.
	verifier browser.LoginVerifier

	// OnTerminal, when set, observes the final stage of every managed run.
	OnTerminal func(stage process.Stage)

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func New(cfg *config.Config, log *zap.Logger, reg *process.Registry, gates *process.Gates, shots *browser.Capturer) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		log:        log,
		reg:        reg,
		gates:      gates,
		shots:      shots,
		classifier: NewClassifier(cfg, log),
		resolvers:  []OTPResolver{NewStaticOTPResolver(cfg)},
		cancels:    make(map[string]context.CancelFunc),
	}
}

// SetSessionFactory wires browser acquisition and session persistence for
// managed (Launch) runs.
func (o *Orchestrator) SetSessionFactory(store *browser.SessionStore, open SessionFactory) {
	o.store = store
	o.openSession = open
}

// SetLoginVerifier enables login-API verdict watching (console runs).
func (o *Orchestrator) SetLoginVerifier(v browser.LoginVerifier) {
	o.verifier = v
}

// SetResolvers replaces the bank-OTP locator resolver chain.
func (o *Orchestrator) SetResolvers(rs []OTPResolver) {
	o.resolvers = rs
}

// Launch runs a full managed checkout in the calling goroutine: acquire a
// browser session (fresh or restored), run the state machine, persist the
// session state. Any escaped failure is recorded as stage ERROR; Launch
// never panics outward.
func (o *Orchestrator) Launch(ctx context.Context, id, productURL, sessionName string, useExisting bool) {
	defer func() {
		if r := recover(); r != nil {
			o.reg.Update(id, process.StageError, fmt.Sprintf("Process manager error: %v", r), nil)
		}
		o.finish(id)
	}()

	data := map[string]any{dataKeyProductURL: productURL}
	if sessionName != "" {
		data[dataKeySessionName] = sessionName
	}
	o.reg.Update(id, process.StageInitializing, "Initializing browser and session", data)

	var state []byte
	if useExisting && sessionName != "" {
		blob, err := o.store.Load(sessionName)
		if err != nil {
			o.reg.Update(id, process.StageError, fmt.Sprintf("Failed to load session: %v", err), nil)
			return
		}
		if blob != nil {
			o.reg.Update(id, process.StageInitializing,
				fmt.Sprintf("Loading session %q", sessionName),
				map[string]any{dataKeySessionLoaded: true})
		}
		state = blob
	}

	sess, err := o.openSession(state)
	if err != nil {
		o.reg.Update(id, process.StageError, fmt.Sprintf("Failed to set up browser: %v", err), nil)
		return
	}
	defer sess.Close()

	runErr := o.Run(ctx, id, sess.Page(), productURL)
	if runErr != nil {
		o.log.Warn("checkout run failed", zap.String("process_id", id), zap.Error(runErr))
	}

	if sessionName != "" {
		blob, err := sess.Export()
		if err != nil {
			o.log.Warn("failed to export session state", zap.String("session", sessionName), zap.Error(err))
		} else if err := o.store.Save(sessionName, blob); err != nil {
			o.log.Warn("failed to save session state", zap.String("session", sessionName), zap.Error(err))
		}
	}
}

func (o *Orchestrator) finish(id string) {
	if o.OnTerminal == nil {
		return
	}
	stage, err := o.reg.Stage(id)
	if err != nil {
		return
	}
	o.OnTerminal(stage)
}

// Run drives the state machine on an already open page: navigate, click buy
// now, then classify and dispatch until a terminal stage. The page is owned
// by this goroutine for the whole run.
func (o *Orchestrator) Run(ctx context.Context, id string, pg browser.Page, productURL string) error {
	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancels[id] = cancel
	o.mu.Unlock()
	defer func() {
		cancel()
		o.mu.Lock()
		delete(o.cancels, id)
		o.mu.Unlock()
		o.gates.Release(id)
		o.reg.ClearPayment(id)
	}()

	if err := o.navigateAndBuy(ctx, id, pg, productURL); err != nil {
		return err
	}

	for round := 0; round < maxDispatchRounds; round++ {
		if stage, err := o.reg.Stage(id); err == nil && stage.Terminal() {
			if stage == process.StageCompleted {
				return nil
			}
			return fmt.Errorf("checkout ended in stage %s", stage)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		state := o.classifier.Classify(pg)
		o.log.Info("dispatching step",
			zap.String("process_id", id),
			zap.String("state", string(state)))

		var err error
		switch state {
		case StateLogin:
			err = o.handleLogin(ctx, id, pg)
		case StateAddress:
			err = o.handleAddress(ctx, id, pg)
		case StateOrderSummary:
			err = o.handleOrderSummary(ctx, id, pg)
		case StatePayment:
			err = o.handlePayment(ctx, id, pg)
		case StateBankOTP:
			err = o.handleBankOTP(ctx, id, pg)
		case StateUnknown:
			o.snap(id, pg, "unknown_state")
			o.reg.Update(id, process.StageError, "Cannot determine page state", nil)
			return errors.New("cannot determine page state")
		}
		if err != nil {
			return err
		}
	}

	o.reg.Update(id, process.StageError, "Checkout did not reach a terminal stage", nil)
	return errors.New("checkout did not reach a terminal stage")
}

func (o *Orchestrator) navigateAndBuy(ctx context.Context, id string, pg browser.Page, productURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.reg.Update(id, process.StageNavigating, "", map[string]any{dataKeyProductURL: productURL})

	if err := pg.Navigate(productURL); err != nil {
		return o.fail(id, pg, "navigation_error", "Failed to navigate to product: %v", err)
	}
	if err := pg.WaitReady(o.cfg.PageLoad()); err != nil {
		return o.fail(id, pg, "navigation_error", "Product page did not load: %v", err)
	}
	o.snap(id, pg, "product_page")

	// Product title is decorative; failure to extract is not an error.
	if title, err := pg.Find(browser.Css(o.cfg.Selectors.ProductTitle), o.cfg.ElementWait()); err == nil {
		if text, err := title.Text(); err == nil && text != "" {
			o.reg.Update(id, process.StageNavigating, "Product page loaded",
				map[string]any{dataKeyProductTitle: text})
		}
	}

	o.reg.Update(id, process.StageClickingBuyNow, "", nil)

	buyNow := browser.TextMatch("button, a, div, span", o.cfg.Selectors.BuyNowText)
	btn, err := pg.Find(buyNow, o.cfg.NavigationWait())
	if err != nil {
		return o.fail(id, pg, "buy_now_not_found", "Buy Now button not found: %v", err)
	}
	o.snap(id, pg, "before_buy_now_click")
	if err := btn.Click(); err != nil {
		return o.fail(id, pg, "buy_now_click_error", "Failed to click Buy Now: %v", err)
	}
	if err := pg.WaitReady(o.cfg.NavigationWait()); err != nil {
		return o.fail(id, pg, "buy_now_navigation_error", "Page did not settle after Buy Now: %v", err)
	}
	o.snap(id, pg, "after_buy_now_click")
	return nil
}

// fail captures a screenshot, records stage ERROR with the message, and
// returns an error carrying the same text.
func (o *Orchestrator) fail(id string, pg browser.Page, checkpoint, format string, args ...any) error {
	o.snap(id, pg, checkpoint)
	msg := fmt.Sprintf(format, args...)
	o.reg.Update(id, process.StageError, msg, nil)
	return errors.New(msg)
}

// snap captures a debug screenshot at a checkpoint. A failed capture is
// logged, never fatal.
func (o *Orchestrator) snap(id string, pg browser.Page, name string) {
	path, err := o.shots.Capture(pg, name)
	if err != nil {
		o.log.Debug("screenshot failed", zap.String("checkpoint", name), zap.Error(err))
		return
	}
	o.reg.AppendScreenshot(id, path)
}

// requireStage verifies a process exists and is in the exact stage expecting
// an external input.
func (o *Orchestrator) requireStage(id string, want process.Stage) error {
	stage, err := o.reg.Stage(id)
	if err != nil {
		return err
	}
	if stage != want {
		return fmt.Errorf("%w: stage is %s, expected %s", process.ErrWrongStage, stage, want)
	}
	return nil
}

// SubmitLoginOTP stores the login OTP and wakes the login handler. Rejected
// unless the process is exactly at OTP_REQUESTED.
func (o *Orchestrator) SubmitLoginOTP(id, otp string) error {
	if err := o.requireStage(id, process.StageOTPRequested); err != nil {
		return err
	}
	o.reg.Update(id, process.StageOTPSubmitted, "", map[string]any{dataKeyOTP: otp})
	o.gates.Signal(id)
	return nil
}

// SelectAddress stores the chosen address index and wakes the address
// handler.
func (o *Orchestrator) SelectAddress(id string, index int) error {
	if err := o.requireStage(id, process.StageSelectingAddress); err != nil {
		return err
	}
	o.reg.Update(id, process.StageAddressSelected, "", map[string]any{dataKeyAddressIndex: index})
	o.gates.Signal(id)
	return nil
}

// SubmitPayment stores card details in the volatile payment sub-record and
// wakes the payment handler. The details never enter the data map.
func (o *Orchestrator) SubmitPayment(id string, details *process.PaymentDetails) error {
	if err := o.requireStage(id, process.StagePaymentRequested); err != nil {
		return err
	}
	if err := o.reg.SetPayment(id, details); err != nil {
		return err
	}
	o.reg.Update(id, process.StagePaymentSubmitted, "", map[string]any{dataKeyPaymentStored: true})
	o.gates.Signal(id)
	return nil
}

// SubmitBankOTP stores the bank OTP and wakes the bank-OTP handler.
func (o *Orchestrator) SubmitBankOTP(id, otp string) error {
	if err := o.requireStage(id, process.StageBankOTPRequested); err != nil {
		return err
	}
	o.reg.Update(id, process.StageBankOTPSubmitted, "", map[string]any{dataKeyBankOTP: otp})
	o.gates.Signal(id)
	return nil
}

// Terminate cancels a running process: rejects unknown ids and processes
// already in a terminal stage, otherwise records CANCELLED, cancels the
// process context so in-flight page waits abort, and releases the gate so a
// parked handler wakes into the cancellation.
func (o *Orchestrator) Terminate(id string) error {
	stage, err := o.reg.Stage(id)
	if err != nil {
		return err
	}
	if stage.Terminal() {
		return fmt.Errorf("%w: stage is %s", process.ErrTerminal, stage)
	}

	o.reg.Update(id, process.StageCancelled, "Termination requested by user", nil)

	o.mu.Lock()
	cancel, ok := o.cancels[id]
	o.mu.Unlock()
	if ok {
		cancel()
	}
	o.gates.Release(id)
	return nil
}
