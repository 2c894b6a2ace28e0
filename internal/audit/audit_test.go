package audit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLogPublisherWritesAction(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, p.Emit(context.Background(), Event{Action: ActionCredentialAwarded, Username: "alice"}))

	assert.Contains(t, buf.String(), `"msg":"credential_awarded"`)
	assert.Contains(t, buf.String(), `"username":"alice"`)
}

func TestQueueDeliversAndDrainsOnShutdown(t *testing.T) {
	sink := NewRecorder()
	fallback := NewRecorder()
	q := NewQueue(sink, fallback, discardLogger(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Emit(context.Background(), Event{Action: ActionCredentialAwarded, CredentialID: int64(i + 1)}))
	}
	cancel()
	require.NoError(t, <-done)

	assert.Len(t, sink.Events(), 3)
	assert.Empty(t, fallback.Events())
	for _, e := range sink.Events() {
		assert.False(t, e.Timestamp.IsZero())
	}
}

func TestQueueFallsBackWhenSinkFails(t *testing.T) {
	sink := NewRecorder()
	sink.FailWith(errors.New("broker down"))
	fallback := NewRecorder()
	q := NewQueue(sink, fallback, discardLogger(), 8)

	require.NoError(t, q.Emit(context.Background(), Event{Action: ActionCredentialRevoked}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, q.Run(ctx))

	assert.Len(t, fallback.Events(), 1)
}

func TestQueueFullUsesFallback(t *testing.T) {
	fallback := NewRecorder()
	q := NewQueue(NewRecorder(), fallback, discardLogger(), 1)

	require.NoError(t, q.Emit(context.Background(), Event{Action: ActionCredentialAwarded, Timestamp: time.Now()}))
	require.NoError(t, q.Emit(context.Background(), Event{Action: ActionCredentialDeleted}))

	events := fallback.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ActionCredentialDeleted, events[0].Action)
}
