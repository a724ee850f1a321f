package flight

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/singleflight"
)

func TestCancelledCallerDoesNotFailOthers(t *testing.T) {
	var g singleflight.Group
	var runs atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	work := func(ctx context.Context) (string, error) {
		runs.Add(1)
		close(started)
		select {
		case <-release:
			return "done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := Do(ctxA, &g, "k", time.Minute, work)
		errA <- err
	}()
	<-started

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	time.AfterFunc(50*time.Millisecond, func() { close(release) })
	v, err := Do(context.Background(), &g, "k", time.Minute, work)
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.EqualValues(t, 1, runs.Load())
}

func TestBoundStopsSharedRun(t *testing.T) {
	var g singleflight.Group
	_, err := Do(context.Background(), &g, "k", 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestErrorIsShared(t *testing.T) {
	var g singleflight.Group
	boom := errors.New("boom")
	_, err := Do(context.Background(), &g, "k", 0, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
}
