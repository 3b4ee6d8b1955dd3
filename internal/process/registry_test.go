package process

import (
	"testing"
	"time"
)

func TestGetUnknownProcess(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Get("never-created"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpdateCreatesRecord(t *testing.T) {
	r := NewRegistry()

	r.Update("p1", StageInitializing, "", nil)

	v, err := r.Get("p1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v.Stage != StageInitializing {
		t.Errorf("Expected stage INITIALIZING, got %s", v.Stage)
	}
	if v.Message != StageInitializing.Description() {
		t.Errorf("Expected fallback description, got %q", v.Message)
	}
	if v.Screenshots == nil || len(v.Screenshots) != 0 {
		t.Errorf("Expected empty screenshot list, got %v", v.Screenshots)
	}
}

func TestUpdateMergesData(t *testing.T) {
	r := NewRegistry()

	r.Update("p1", StageNavigating, "", map[string]any{
		"product_url":   "https://example.com/item",
		"product_title": "Widget",
	})
	r.Update("p1", StageClickingBuyNow, "", map[string]any{
		"product_title": "Widget Deluxe",
		"address_count": 3,
	})

	v, _ := r.Get("p1")
	if v.Data["product_url"] != "https://example.com/item" {
		t.Error("Expected product_url to survive second update")
	}
	if v.Data["product_title"] != "Widget Deluxe" {
		t.Errorf("Expected overlapping key to be overwritten, got %v", v.Data["product_title"])
	}
	if v.Data["address_count"] != 3 {
		t.Error("Expected new key to be merged in")
	}
}

func TestUpdateMessageOverwritten(t *testing.T) {
	r := NewRegistry()

	r.Update("p1", StageNavigating, "custom message", nil)
	v, _ := r.Get("p1")
	if v.Message != "custom message" {
		t.Errorf("Expected custom message, got %q", v.Message)
	}

	r.Update("p1", StageClickingBuyNow, "", nil)
	v, _ = r.Get("p1")
	if v.Message != StageClickingBuyNow.Description() {
		t.Errorf("Expected message overwritten with description, got %q", v.Message)
	}
}

func TestTerminalStageFrozen(t *testing.T) {
	r := NewRegistry()

	r.Update("p1", StageError, "boom", nil)
	r.Update("p1", StageNavigating, "should not apply", nil)

	v, _ := r.Get("p1")
	if v.Stage != StageError {
		t.Errorf("Expected terminal stage to stick, got %s", v.Stage)
	}
	if v.Message != "boom" {
		t.Errorf("Expected terminal message to stick, got %q", v.Message)
	}
}

func TestUpdateRejectsIllegalTransition(t *testing.T) {
	r := NewRegistry()

	// Skipping PAYMENT_SUBMITTED and PAYMENT_COMPLETED is not a legal jump.
	r.Update("p1", StagePaymentRequested, "", nil)
	r.Update("p1", StageBankOTPRequested, "skipped ahead", map[string]any{"bank_otp": "123456"})

	v, _ := r.Get("p1")
	if v.Stage != StagePaymentRequested {
		t.Errorf("Expected illegal transition dropped, stage is %s", v.Stage)
	}
	if v.Message != StagePaymentRequested.Description() {
		t.Errorf("Expected message from dropped update to be discarded, got %q", v.Message)
	}
	if _, ok := v.Data["bank_otp"]; ok {
		t.Error("Expected data from dropped update to be discarded")
	}

	// ERROR remains reachable from any live stage.
	r.Update("p1", StageError, "gave up", nil)
	if stage, _ := r.Stage("p1"); stage != StageError {
		t.Errorf("Expected ERROR to apply, got %s", stage)
	}
}

func TestPaymentNeverInViews(t *testing.T) {
	r := NewRegistry()

	r.Update("p1", StagePaymentRequested, "", nil)
	if err := r.SetPayment("p1", &PaymentDetails{
		CardNumber: "4111111111111111",
		CVV:        "123",
	}); err != nil {
		t.Fatalf("SetPayment failed: %v", err)
	}

	v, _ := r.Get("p1")
	for k, val := range v.Data {
		s, ok := val.(string)
		if ok && s == "4111111111111111" {
			t.Errorf("Card number leaked through data key %q", k)
		}
	}

	for _, view := range r.List() {
		for k, val := range view.Data {
			s, ok := val.(string)
			if ok && (s == "4111111111111111" || s == "123") {
				t.Errorf("Payment details leaked in List under key %q", k)
			}
		}
	}
}

func TestTakePaymentClears(t *testing.T) {
	r := NewRegistry()

	r.Update("p1", StagePaymentRequested, "", nil)
	r.SetPayment("p1", &PaymentDetails{CardNumber: "4111111111111111", CVV: "123"})

	p, err := r.TakePayment("p1")
	if err != nil {
		t.Fatalf("TakePayment failed: %v", err)
	}
	if p.CardNumber != "4111111111111111" {
		t.Errorf("Unexpected card number %q", p.CardNumber)
	}

	if _, err := r.TakePayment("p1"); err == nil {
		t.Error("Expected second TakePayment to fail, details should be cleared")
	}
}

func TestAppendScreenshot(t *testing.T) {
	r := NewRegistry()

	// Unknown process is a no-op, not a panic.
	r.AppendScreenshot("ghost", "/tmp/x.png")

	r.Update("p1", StageNavigating, "", nil)
	r.AppendScreenshot("p1", "debug_images/product_page_20250101.png")

	v, _ := r.Get("p1")
	if len(v.Screenshots) != 1 {
		t.Fatalf("Expected 1 screenshot, got %d", len(v.Screenshots))
	}
	if v.Screenshots[0].URL != "/debug-images/product_page_20250101.png" {
		t.Errorf("Unexpected derived URL %q", v.Screenshots[0].URL)
	}
}

func TestListTagsProcessID(t *testing.T) {
	r := NewRegistry()

	r.Update("a", StageNavigating, "", nil)
	r.Update("b", StageCompleted, "", nil)

	views := r.List()
	if len(views) != 2 {
		t.Fatalf("Expected 2 views, got %d", len(views))
	}
	seen := map[string]bool{}
	for _, v := range views {
		seen[v.ID] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("Expected both ids tagged, got %v", seen)
	}
}

func TestEvictTerminal(t *testing.T) {
	r := NewRegistry()

	r.Update("done", StageCompleted, "", nil)
	r.Update("live", StagePaymentRequested, "", nil)

	// Age the terminal record past the cutoff.
	r.mu.Lock()
	r.records["done"].Timestamp = time.Now().Add(-2 * time.Hour)
	r.mu.Unlock()

	if n := r.EvictTerminal(time.Hour); n != 1 {
		t.Errorf("Expected 1 eviction, got %d", n)
	}
	if _, err := r.Get("done"); err != ErrNotFound {
		t.Error("Expected evicted record to be gone")
	}
	if _, err := r.Get("live"); err != nil {
		t.Error("Expected live record to survive eviction")
	}
}
