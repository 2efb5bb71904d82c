package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFireRunsListenersInOrder(t *testing.T) {
	Flush()
	t.Cleanup(Flush)

	var got []string
	Listen("order.placed", func(_ context.Context, p any) error {
		got = append(got, "first:"+p.(string))
		return nil
	})
	Listen("order.placed", func(_ context.Context, p any) error {
		got = append(got, "second:"+p.(string))
		return errors.New("ignored")
	})
	Listen("order.placed", func(context.Context, any) error { panic("boom") })
	Listen("stock.low", func(context.Context, any) error {
		got = append(got, "wrong")
		return nil
	})

	Fire(context.Background(), "order.placed", "o-1")

	assert.Equal(t, []string{"first:o-1", "second:o-1"}, got)
}

func TestFireAsyncSurvivesCancelledCaller(t *testing.T) {
	Flush()
	t.Cleanup(Flush)

	var wg sync.WaitGroup
	wg.Add(1)
	var sawErr error
	Listen("stock.low", func(ctx context.Context, _ any) error {
		defer wg.Done()
		sawErr = ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	FireAsync(ctx, "stock.low", nil)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener never ran")
	}
	assert.NoError(t, sawErr)
}

func TestWaitCoversAsyncListeners(t *testing.T) {
	Flush()
	t.Cleanup(Flush)

	release := make(chan struct{})
	var finished atomic.Bool
	Listen("order.placed", func(context.Context, any) error {
		<-release
		finished.Store(true)
		return nil
	})
	FireAsync(context.Background(), "order.placed", "o-1")

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, Wait(short), context.DeadlineExceeded)

	close(release)
	assert.NoError(t, Wait(context.Background()))
	assert.True(t, finished.Load())
}
