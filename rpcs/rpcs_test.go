package rpcs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_register_and_start_runs_fn(t *testing.T) {
	r := NewRegistry()
	done := make(chan struct{})
	handle := r.RegisterAndStart(context.Background(), time.Second, func(ctx context.Context) {
		close(done)
	})

	assert.NotEqual(t, InvalidHandle, handle)
	<-done
	r.Unregister(&handle)
	assert.Equal(t, InvalidHandle, handle)
	assert.Equal(t, 0, r.Len())
}

func Test_abort_cancels_context(t *testing.T) {
	r := NewRegistry()
	canceled := make(chan struct{})
	handle := r.RegisterAndStart(context.Background(), time.Minute, func(ctx context.Context) {
		<-ctx.Done()
		close(canceled)
	})

	r.Abort(&handle)
	<-canceled
	assert.Equal(t, InvalidHandle, handle)
}

func Test_abort_ignores_nil_and_invalid(t *testing.T) {
	r := NewRegistry()
	var nilHandle *Handle
	invalid := InvalidHandle
	r.Abort(nilHandle, &invalid)
	assert.Equal(t, InvalidHandle, invalid)
}

func Test_abort_multiple_handles_concurrently_safe(t *testing.T) {
	r := NewRegistry()
	var handles []*Handle
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		done := make(chan struct{})
		h := r.RegisterAndStart(context.Background(), time.Minute, func(ctx context.Context) {
			<-ctx.Done()
			close(done)
		})
		handles = append(handles, &h)
		wg.Add(1)
		go func(done chan struct{}) {
			defer wg.Done()
			<-done
		}(done)
	}

	r.Abort(handles...)
	wg.Wait()
	assert.Equal(t, 0, r.Len())
}

func Test_real_scheduler_fires(t *testing.T) {
	fired := make(chan struct{})
	RealScheduler.AfterFunc(time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}
