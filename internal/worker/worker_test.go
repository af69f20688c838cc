package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/dreamware/flights/internal/metrics"
	"github.com/dreamware/flights/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestWorker(t *testing.T, queue int) *Worker {
	t.Helper()
	w := New(&State{Name: "db", Store: storage.NewMemoryStore()}, queue, zaptest.NewLogger(t))
	w.Start()
	t.Cleanup(w.Stop)
	return w
}

// TestSubmitRunsJob verifies a job sees the shared state and its error is returned
func TestSubmitRunsJob(t *testing.T) {
	w := newTestWorker(t, 4)

	var name string
	err := w.Submit(context.Background(), func(st *State) error {
		name = st.Name
		return st.Store.Put("k", []byte("v"))
	})
	require.NoError(t, err)
	assert.Equal(t, "db", name)

	want := errors.New("boom")
	err = w.Submit(context.Background(), func(st *State) error { return want })
	assert.ErrorIs(t, err, want)
}

// TestSubmitSerializes checks that no two jobs ever overlap
func TestSubmitSerializes(t *testing.T) {
	w := newTestWorker(t, 8)

	var (
		running  atomic.Int32
		overlaps atomic.Int32
		total    atomic.Int32
		wg       sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := w.Submit(context.Background(), func(st *State) error {
				if running.Add(1) > 1 {
					overlaps.Add(1)
				}
				time.Sleep(100 * time.Microsecond)
				total.Add(1)
				running.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Zero(t, overlaps.Load())
	assert.EqualValues(t, 50, total.Load())
}

// TestSubmitRecoversPanic ensures a panicking job does not kill the worker
func TestSubmitRecoversPanic(t *testing.T) {
	w := newTestWorker(t, 1)

	err := w.Submit(context.Background(), func(st *State) error {
		panic("bad job")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad job")

	err = w.Submit(context.Background(), func(st *State) error { return nil })
	assert.NoError(t, err)
}

// TestSubmitCancelledWhileQueued verifies cancellation applies only before a job runs
func TestSubmitCancelledWhileQueued(t *testing.T) {
	w := newTestWorker(t, 1)

	release := make(chan struct{})
	started := make(chan struct{})
	go w.Submit(context.Background(), func(st *State) error {
		close(started)
		<-release
		return nil
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	errc := make(chan error, 1)
	go func() {
		errc <- w.Submit(ctx, func(st *State) error {
			ran.Store(true)
			return nil
		})
	}()

	// Let the second job reach the queue, then give up on it
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(release)

	err := <-errc
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran.Load())
}

// TestSubmitReturnsOnDeadlineWhileBusy verifies an expired submitter is not
// held behind a job that keeps the worker busy
func TestSubmitReturnsOnDeadlineWhileBusy(t *testing.T) {
	w := newTestWorker(t, 1)

	release := make(chan struct{})
	started := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		first <- w.Submit(context.Background(), func(st *State) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer func() {
		close(release)
		assert.NoError(t, <-first)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	var ran atomic.Bool
	errc := make(chan error, 1)
	go func() {
		errc <- w.Submit(ctx, func(st *State) error {
			ran.Store(true)
			return nil
		})
	}()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("Submit still blocked after its context expired")
	}
	assert.False(t, ran.Load())
}

// TestWaitReclaimsLateQueuedJob covers a send that lands after Stop drained the queue
func TestWaitReclaimsLateQueuedJob(t *testing.T) {
	w := New(&State{Name: "db"}, 1, zaptest.NewLogger(t))
	w.Start()
	w.Stop()

	before := testutil.ToFloat64(metrics.QueueDepth)
	req := request{ctx: context.Background(), job: func(st *State) error { return nil }, done: make(chan error, 1)}
	w.jobs <- req
	metrics.QueueDepth.Inc()

	assert.ErrorIs(t, w.wait(context.Background(), req), ErrStopped)
	assert.Empty(t, w.jobs)
	assert.Equal(t, before, testutil.ToFloat64(metrics.QueueDepth))
}

func TestSubmitAfterStop(t *testing.T) {
	w := New(&State{Name: "db"}, 1, nil)
	w.Start()
	w.Stop()
	w.Stop()

	err := w.Submit(context.Background(), func(st *State) error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
}

// TestStopFailsQueuedJobs verifies queued jobs are failed, not dropped
func TestStopFailsQueuedJobs(t *testing.T) {
	w := New(&State{Name: "db"}, 4, zaptest.NewLogger(t))
	w.Start()

	release := make(chan struct{})
	started := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		first <- w.Submit(context.Background(), func(st *State) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	queued := make(chan error, 1)
	go func() {
		queued <- w.Submit(context.Background(), func(st *State) error { return nil })
	}()
	time.Sleep(20 * time.Millisecond)

	stopDone := make(chan struct{})
	go func() {
		w.Stop()
		close(stopDone)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-stopDone

	assert.NoError(t, <-first, "running job completes")
	assert.ErrorIs(t, <-queued, ErrStopped)
}
