package tx

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJournalRollsBackInReverseOrder(t *testing.T) {
	var order []int
	err := Journal{}.RunInTx(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { order = append(order, 1) })
		OnRollback(ctx, func() { order = append(order, 2) })
		return errors.New("boom")
	})

	assert.EqualError(t, err, "boom")
	assert.Equal(t, []int{2, 1}, order)
}

func TestJournalCommitDropsUndos(t *testing.T) {
	called := false
	err := Journal{}.RunInTx(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { called = true })
		return nil
	})

	assert.NoError(t, err)
	assert.False(t, called)
}

func TestJournalNestedJoinsOuter(t *testing.T) {
	called := false
	err := Journal{}.RunInTx(context.Background(), func(ctx context.Context) error {
		_ = Journal{}.RunInTx(ctx, func(ctx context.Context) error {
			OnRollback(ctx, func() { called = true })
			return nil
		})
		return errors.New("outer failed")
	})

	assert.Error(t, err)
	assert.True(t, called)
}

func TestOnRollbackOutsideJournalIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		OnRollback(context.Background(), func() {})
	})
}

func TestJournalCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := Journal{}.RunInTx(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestSharedWaitsForJournalRun(t *testing.T) {
	var committed atomic.Bool
	var wg sync.WaitGroup
	var sawUncommitted atomic.Int32

	err := Journal{}.RunInTx(context.Background(), func(ctx context.Context) error {
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release := Shared(context.Background())
				defer release()
				if !committed.Load() {
					sawUncommitted.Add(1)
				}
			}()
		}
		time.Sleep(20 * time.Millisecond)
		committed.Store(true)
		return nil
	})
	wg.Wait()

	assert.NoError(t, err)
	assert.Zero(t, sawUncommitted.Load())
}

func TestSharedInsideJournalPassesThrough(t *testing.T) {
	done := make(chan error, 1)
	go func() {
		done <- Journal{}.RunInTx(context.Background(), func(ctx context.Context) error {
			release := Shared(ctx)
			release()
			return nil
		})
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("shared call inside a journal run blocked")
	}
}

func TestJournalRunsAreSerialized(t *testing.T) {
	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = Journal{}.RunInTx(context.Background(), func(context.Context) error {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				active.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
}
