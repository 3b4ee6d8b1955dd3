package process

import (
	"path/filepath"
	"time"
)

// PaymentDetails is the sensitive sub-record supplied by the caller at the
// payment step. It is held in memory only and is stripped from every
// externally visible view of a record.
type PaymentDetails struct {
	CardNumber     string
	CVV            string
	ExpiryMonth    string
	ExpiryYear     string
	ExpiryCombined string
}

// Screenshot references one debug image captured during a run.
type Screenshot struct {
	Path      string    `json:"path"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

// Record tracks one checkout attempt.
type Record struct {
	ID          string         `json:"process_id"`
	Stage       Stage          `json:"stage"`
	Message     string         `json:"message"`
	Timestamp   time.Time      `json:"timestamp"`
	Data        map[string]any `json:"data"`
	Screenshots []Screenshot   `json:"screenshots"`

	payment *PaymentDetails
}

// View is a redacted copy of a record, safe to hand to external callers.
// Payment details never appear in a View.
type View struct {
	ID          string         `json:"process_id"`
	Stage       Stage          `json:"stage"`
	Message     string         `json:"message"`
	Timestamp   time.Time      `json:"timestamp"`
	Data        map[string]any `json:"data"`
	Screenshots []Screenshot   `json:"screenshots"`
}

func (r *Record) view() View {
	data := make(map[string]any, len(r.Data))
	for k, v := range r.Data {
		data[k] = v
	}
	shots := make([]Screenshot, len(r.Screenshots))
	copy(shots, r.Screenshots)
	return View{
		ID:          r.ID,
		Stage:       r.Stage,
		Message:     r.Message,
		Timestamp:   r.Timestamp,
		Data:        data,
		Screenshots: shots,
	}
}

// DebugImageURL derives the static URL a screenshot is served under.
func DebugImageURL(path string) string {
	return "/debug-images/" + filepath.Base(path)
}
