package sqlstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu      sync.Mutex
	maxUsed int
	waits   int
}

func (o *recordingObserver) ObserveAcquire(time.Duration) {
	o.mu.Lock()
	o.waits++
	o.mu.Unlock()
}

func (o *recordingObserver) SetInUse(n int) {
	o.mu.Lock()
	if n > o.maxUsed {
		o.maxUsed = n
	}
	o.mu.Unlock()
}

func TestPoolBlocksWhenExhausted(t *testing.T) {
	s := newTestStoreSize(t, 1)
	pool := s.Pool()

	_, release, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PoolStats{Size: 1, InUse: 1}, pool.Stats())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err = pool.Acquire(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	release()
	release() // idempotent
	assert.Equal(t, 0, pool.Stats().InUse)

	_, release, err = pool.Acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestPoolWaiterProceedsAfterRelease(t *testing.T) {
	s := newTestStoreSize(t, 1)
	pool := s.Pool()

	_, release, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- pool.WithConn(context.Background(), func(*sqlx.Conn) error { return nil })
	}()

	select {
	case <-done:
		t.Fatal("second caller should block while the only slot is held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never acquired the released slot")
	}
}

func TestPoolNeverExceedsBound(t *testing.T) {
	s := newTestStoreSize(t, 2)
	obs := &recordingObserver{}
	pool := NewPool(s.Pool().DB(), 2, discardLogger(), obs)

	var running, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.WithConn(context.Background(), func(*sqlx.Conn) error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(2))
	assert.LessOrEqual(t, obs.maxUsed, 2)
	assert.Equal(t, 10, obs.waits)
	assert.Equal(t, 0, pool.Stats().InUse)
}

func TestWithTxReleasesOnPanic(t *testing.T) {
	s := newTestStoreSize(t, 1)
	pool := s.Pool()

	assert.PanicsWithValue(t, "boom", func() {
		_ = pool.WithTx(context.Background(), func(tx *sqlx.Tx) error {
			_, err := tx.Exec(`INSERT INTO tags (name, type) VALUES ('Panic', 'test')`)
			require.NoError(t, err)
			panic("boom")
		})
	})
	assert.Equal(t, 0, pool.Stats().InUse)

	tagType := "test"
	tags, err := s.ListTags(context.Background(), &tagType)
	require.NoError(t, err)
	assert.Empty(t, tags, "the panicking transaction was rolled back")
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newTestStoreSize(t, 1)
	pool := s.Pool()
	sentinel := errors.New("stop")

	err := pool.WithTx(context.Background(), func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`INSERT INTO tags (name, type) VALUES ('Rolled', 'test')`); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	tagType := "test"
	tags, err := s.ListTags(context.Background(), &tagType)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestWithTxCancelledContextReleasesSlot(t *testing.T) {
	s := newTestStoreSize(t, 1)
	pool := s.Pool()

	ctx, cancel := context.WithCancel(context.Background())
	err := pool.WithTx(ctx, func(tx *sqlx.Tx) error {
		cancel()
		_, err := tx.ExecContext(ctx, `INSERT INTO tags (name, type) VALUES ('Late', 'test')`)
		return err
	})
	assert.Error(t, err)
	assert.Equal(t, 0, pool.Stats().InUse)
}
