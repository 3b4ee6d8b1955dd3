package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"kartpilot/internal/browser"
	"kartpilot/internal/checkout"
	"kartpilot/internal/config"
	"kartpilot/internal/process"
)

const processID = "console"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	url := flag.String("url", "", "Product URL to check out (overrides config)")
	session := flag.String("session", "", "Named browser session to load/save")
	useSession := flag.Bool("use-session", false, "Restore the named session before starting")
	headless := flag.Bool("headless", false, "Run the browser headless")
	debug := flag.Bool("debug", false, "Enable detailed debug logging")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *url != "" {
		cfg.ProductURL = *url
	}
	if *headless {
		cfg.Headless = true
	}
	if *debug {
		cfg.DebugMode = true
	}
	if cfg.ProductURL == "" {
		log.Fatal("No product URL specified. Use -url flag or set it in config.yaml")
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                Kartpilot Checkout Console                ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Target URL: %s\n", cfg.ProductURL)
	if *session != "" {
		fmt.Printf("Session: %s\n", *session)
	}
	if cfg.DebugMode {
		fmt.Println("🔍 DEBUG MODE - Detailed logging enabled")
	}
	fmt.Println()

	logger, err := newLogger(cfg.DebugMode)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger, *session, *useSession); err != nil {
		log.Fatalf("Checkout failed: %v", err)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger, sessionName string, useSession bool) error {
	shots, err := browser.NewCapturer(cfg.DebugImagesDir)
	if err != nil {
		return fmt.Errorf("failed to set up screenshot dir: %w", err)
	}
	store, err := browser.NewSessionStore(cfg.SessionsDir)
	if err != nil {
		return fmt.Errorf("failed to set up session store: %w", err)
	}

	var state []byte
	if useSession && sessionName != "" {
		if state, err = store.Load(sessionName); err != nil {
			return fmt.Errorf("failed to load session %q: %w", sessionName, err)
		}
		if state != nil {
			fmt.Printf("📂 Restored session %q\n", sessionName)
		}
	}

	fmt.Println("🌐 Setting up browser...")
	sess, err := browser.Open(browser.Options{
		Headless:    cfg.Headless,
		ProfilePath: cfg.BrowserProfilePath,
	}, state)
	if err != nil {
		return fmt.Errorf("failed to set up browser: %w", err)
	}
	defer sess.Close()

	reg := process.NewRegistry()
	gates := process.NewGates()
	orch := checkout.New(cfg, logger, reg, gates, shots)
	orch.SetLoginVerifier(browser.NewOTPWatcher(sess.Page(), cfg.LoginOTPEndpoint))

	done := make(chan error, 1)
	go func() {
		done <- orch.Run(context.Background(), processID, sess.Page(), cfg.ProductURL)
	}()

	runErr := pumpInput(reg, orch, done)

	if sessionName != "" {
		if blob, err := sess.Export(); err != nil {
			logger.Warn("failed to export session state", zap.Error(err))
		} else if err := store.Save(sessionName, blob); err != nil {
			logger.Warn("failed to save session state", zap.Error(err))
		} else {
			fmt.Printf("💾 Session saved as %q\n", sessionName)
		}
	}

	view, err := reg.Get(processID)
	if err == nil {
		fmt.Printf("\nFinal stage: %s - %s\n", view.Stage, view.Message)
	}
	return runErr
}

// pumpInput polls the process record and prompts on stdin whenever the run
// suspends waiting for external input.
func pumpInput(reg *process.Registry, orch *checkout.Orchestrator, done chan error) error {
	in := bufio.NewReader(os.Stdin)
	lastOTPAttempt := 0
	prompted := map[process.Stage]bool{}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			return err
		case <-ticker.C:
		}

		stage, err := reg.Stage(processID)
		if err != nil {
			continue
		}

		switch stage {
		case process.StageOTPRequested:
			attempt := dataInt(reg, "otp_attempt")
			if attempt <= lastOTPAttempt {
				continue
			}
			if attempt > 1 {
				fmt.Println("❌ Incorrect OTP, try again.")
			}
			otp := readLine(in, "Enter the login OTP: ")
			if err := orch.SubmitLoginOTP(processID, otp); err != nil {
				fmt.Printf("Could not submit OTP: %v\n", err)
				continue
			}
			lastOTPAttempt = attempt

		case process.StageSelectingAddress:
			if prompted[stage] {
				continue
			}
			printAddresses(reg)
			idx := readInt(in, "Select address number: ")
			if err := orch.SelectAddress(processID, idx); err != nil {
				fmt.Printf("Could not select address: %v\n", err)
				continue
			}
			prompted[stage] = true

		case process.StagePaymentRequested:
			if prompted[stage] {
				continue
			}
			details := readPayment(in, reg)
			if err := orch.SubmitPayment(processID, details); err != nil {
				fmt.Printf("Could not submit payment details: %v\n", err)
				continue
			}
			prompted[stage] = true

		case process.StageBankOTPRequested:
			if prompted[stage] {
				continue
			}
			otp := readLine(in, "Enter the bank OTP: ")
			if err := orch.SubmitBankOTP(processID, otp); err != nil {
				fmt.Printf("Could not submit bank OTP: %v\n", err)
				continue
			}
			prompted[stage] = true
		}
	}
}

func printAddresses(reg *process.Registry) {
	v, ok := reg.DataValue(processID, "available_addresses")
	if !ok {
		return
	}
	opts, ok := v.([]checkout.AddressOption)
	if !ok {
		return
	}
	fmt.Println("\n📍 Available addresses:")
	for _, opt := range opts {
		fmt.Printf("  [%d] %s - %s\n", opt.Index, opt.Name, opt.Text)
	}
}

func readPayment(in *bufio.Reader, reg *process.Registry) *process.PaymentDetails {
	if total, ok := reg.DataValue(processID, "total_amount"); ok {
		fmt.Printf("\n💳 Order total: %v\n", total)
	}
	details := &process.PaymentDetails{
		CardNumber: readLine(in, "Card number: "),
		CVV:        readLine(in, "CVV: "),
	}

	format, _ := reg.DataValue(processID, "expiry_input_type")
	if format == checkout.ExpiryDropdowns {
		details.ExpiryMonth = readLine(in, "Expiry month (MM): ")
		details.ExpiryYear = readLine(in, "Expiry year (YY): ")
	} else {
		details.ExpiryCombined = readLine(in, "Expiry (MM / YY): ")
	}
	return details
}

func readLine(in *bufio.Reader, prompt string) string {
	fmt.Print(prompt)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

func readInt(in *bufio.Reader, prompt string) int {
	for {
		raw := readLine(in, prompt)
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
		fmt.Println("Please enter a number.")
	}
}

func dataInt(reg *process.Registry, key string) int {
	v, ok := reg.DataValue(processID, key)
	if !ok {
		return 0
	}
	if n, ok := v.(int); ok {
		return n
	}
	return 0
}
