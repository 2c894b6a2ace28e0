package audit

import (
	"context"
	"log/slog"
	"time"
)

const defaultQueueSize = 1024

// Queue decouples request handling from sink latency. Emit never blocks;
// when the buffer is full the event is handed to the fallback sink.
type Queue struct {
	sink     Publisher
	fallback Publisher
	logger   *slog.Logger
	inbox    chan Event
}

func NewQueue(sink, fallback Publisher, logger *slog.Logger, size int) *Queue {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Queue{
		sink:     sink,
		fallback: fallback,
		logger:   logger,
		inbox:    make(chan Event, size),
	}
}

func (q *Queue) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case q.inbox <- event:
		return nil
	default:
		q.logger.WarnContext(ctx, "audit queue full, using fallback sink",
			"action", event.Action,
			"credential_uuid", event.CredentialUUID,
		)
		return q.fallback.Emit(ctx, event)
	}
}

// Run drains the queue into the sink until ctx is cancelled, then flushes
// what is left with a short grace period.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			q.drain()
			return nil
		case event := <-q.inbox:
			q.deliver(ctx, event)
		}
	}
}

func (q *Queue) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-q.inbox:
			q.deliver(ctx, event)
		default:
			return
		}
	}
}

func (q *Queue) deliver(ctx context.Context, event Event) {
	if err := q.sink.Emit(ctx, event); err != nil {
		q.logger.ErrorContext(ctx, "failed to publish audit event",
			"action", event.Action,
			"credential_uuid", event.CredentialUUID,
			"error", err,
		)
		_ = q.fallback.Emit(ctx, event)
	}
}
