package notifier

import (
	"context"
	"sync"
)

// RecordingNotifier captures every Payload it receives, for assertions in
// tests that exercise code paths which fire notifications as a side effect.
type RecordingNotifier struct {
	mu    sync.Mutex
	calls []Payload
	err   error
}

func NewRecording() *RecordingNotifier {
	return &RecordingNotifier{}
}

// FailWith makes every subsequent Notify call return err.
func (r *RecordingNotifier) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *RecordingNotifier) Notify(_ context.Context, p Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, p)
	return r.err
}

func (r *RecordingNotifier) Calls() []Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Payload, len(r.calls))
	copy(out, r.calls)
	return out
}
