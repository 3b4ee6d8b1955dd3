package process

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound means no record exists for the given process id.
	ErrNotFound = errors.New("process not found")
	// ErrWrongStage means the process exists but is not in the stage that
	// expects the attempted input.
	ErrWrongStage = errors.New("process not in expected stage")
	// ErrTerminal means the process already reached a terminal stage.
	ErrTerminal = errors.New("process already in terminal stage")
)

// Registry is the in-memory table of checkout processes. It is owned by the
// server (or console run) and passed by reference; there is no package-level
// instance.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record

	// updateDelay, when non-zero, is slept after every status update so a
	// poller observes each intermediate stage. Off by default.
	updateDelay time.Duration
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// SetUpdateDelay configures the post-update pause. Zero disables it.
func (r *Registry) SetUpdateDelay(d time.Duration) {
	r.mu.Lock()
	r.updateDelay = d
	r.mu.Unlock()
}

// Update creates or updates the record for id. A missing record is created
// with the given stage; an existing record gets stage, message and timestamp
// overwritten and data merged key-by-key. An empty message falls back to the
// stage's canonical description. Updates against a terminal record and
// updates whose stage change fails ValidTransition are dropped whole, data
// included.
func (r *Registry) Update(id string, stage Stage, message string, data map[string]any) {
	r.mu.Lock()
	delay := r.updateDelay

	if message == "" {
		message = stage.Description()
	}

	rec, ok := r.records[id]
	if !ok {
		rec = &Record{
			ID:          id,
			Data:        make(map[string]any),
			Screenshots: []Screenshot{},
		}
		r.records[id] = rec
	}

	// ValidTransition also covers the terminal freeze: nothing leaves a
	// terminal stage, not even a same-stage refresh.
	if ok && !ValidTransition(rec.Stage, stage) {
		r.mu.Unlock()
		return
	}

	rec.Stage = stage
	rec.Message = message
	rec.Timestamp = time.Now()
	for k, v := range data {
		rec.Data[k] = v
	}
	r.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
}

// Get returns a redacted copy of the record.
func (r *Registry) Get(id string) (View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return View{}, ErrNotFound
	}
	return rec.view(), nil
}

// List returns redacted copies of every record.
func (r *Registry) List() []View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	views := make([]View, 0, len(r.records))
	for _, rec := range r.records {
		views = append(views, rec.view())
	}
	return views
}

// Stage returns the current stage of a record.
func (r *Registry) Stage(id string) (Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return "", ErrNotFound
	}
	return rec.Stage, nil
}

// DataValue reads one key out of a record's data map.
func (r *Registry) DataValue(id, key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, false
	}
	v, ok := rec.Data[key]
	return v, ok
}

// AppendScreenshot records a captured debug image. No-op if the process is
// unknown.
func (r *Registry) AppendScreenshot(id, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return
	}
	rec.Screenshots = append(rec.Screenshots, Screenshot{
		Path:      path,
		URL:       DebugImageURL(path),
		Timestamp: time.Now(),
	})
}

// SetPayment stores the sensitive payment sub-record for id.
func (r *Registry) SetPayment(id string, p *PaymentDetails) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.payment = p
	return nil
}

// TakePayment returns the stored payment details and clears them from the
// record in the same step, so card data lives no longer than the fill that
// consumes it.
func (r *Registry) TakePayment(id string) (*PaymentDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	p := rec.payment
	rec.payment = nil
	if p == nil {
		return nil, errors.New("no payment details stored")
	}
	return p, nil
}

// ClearPayment drops any stored payment details, used at process teardown.
func (r *Registry) ClearPayment(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok {
		rec.payment = nil
	}
}

// EvictTerminal removes terminal records whose last update is older than
// maxAge, returning the number evicted.
func (r *Registry) EvictTerminal(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, rec := range r.records {
		if rec.Stage.Terminal() && rec.Timestamp.Before(cutoff) {
			delete(r.records, id)
			n++
		}
	}
	return n
}
