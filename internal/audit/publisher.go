package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher delivers credential events to a sink.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// LogPublisher writes events as structured log lines. It is the default
// sink and the fallback when the broker is unavailable.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	p.logger.InfoContext(ctx, string(event.Action),
		"request_id", event.RequestID,
		"username", event.Username,
		"credential_id", event.CredentialID,
		"credential_uuid", event.CredentialUUID,
		"definition_kind", event.DefinitionKind,
		"definition_id", event.DefinitionID,
		"status", event.Status,
		"timestamp", event.Timestamp,
	)
	return nil
}

// Recorder keeps emitted events in memory for assertions.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent Emit calls return err after recording.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Emit(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
