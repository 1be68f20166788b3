package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/campground-crawler/internal/crawler"
	"github.com/JakeFAU/campground-crawler/internal/publisher/memory"
)

type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequentialIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("run-%d", s.n), nil
}

type funcRunner func(ctx context.Context) (crawler.Summary, error)

func (f funcRunner) Run(ctx context.Context) (crawler.Summary, error) { return f(ctx) }

func TestRunCrawlPublishesCompletedEvent(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	runner := funcRunner(func(context.Context) (crawler.Summary, error) {
		return crawler.Summary{UniqueRecords: 7, Completed: true}, nil
	})
	d := New(runner, pub, &sequentialIDs{}, "crawl-runs", zap.NewNop())

	summary, err := d.RunCrawl(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", summary.RunID)

	msg, ok := pub.Last("crawl-runs")
	require.True(t, ok)
	event, ok := msg.Payload.(RunEvent)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, event.Status)
	assert.Equal(t, 7, event.Summary.UniqueRecords)

	st := d.Status()
	assert.False(t, st.Running)
	require.NotNil(t, st.Last)
	assert.Equal(t, "run-1", st.Last.RunID)
}

func TestRunCrawlClassifiesFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("crawl interrupted: %w", context.Canceled), StatusInterrupted},
		{errors.New("persist records: db down"), StatusFailed},
	}
	for _, tc := range cases {
		pub := memory.New()
		runner := funcRunner(func(context.Context) (crawler.Summary, error) { return crawler.Summary{}, tc.err })
		d := New(runner, pub, &sequentialIDs{}, "crawl-runs", nil)

		_, err := d.RunCrawl(context.Background())
		require.ErrorIs(t, err, tc.err)
		msg, ok := pub.Last("crawl-runs")
		require.True(t, ok)
		event := msg.Payload.(RunEvent)
		assert.Equal(t, tc.want, event.Status)
		assert.Equal(t, tc.err.Error(), event.Error)
	}
}

func TestRunsAreSingleFlight(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	runner := funcRunner(func(ctx context.Context) (crawler.Summary, error) {
		once.Do(func() { close(started) })
		<-release
		return crawler.Summary{Completed: true}, nil
	})
	ids := &sequentialIDs{}
	d := New(runner, nil, ids, "", zap.NewNop())

	runID, err := d.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)
	<-started

	assert.True(t, d.Running())
	assert.Equal(t, "run-1", d.Status().RunID)

	_, err = d.Trigger(context.Background())
	require.ErrorIs(t, err, ErrCrawlInProgress)
	_, err = d.RunCrawl(context.Background())
	require.ErrorIs(t, err, ErrCrawlInProgress)

	close(release)
	require.Eventually(t, func() bool { return !d.Running() }, time.Second, 5*time.Millisecond)

	ids.mu.Lock()
	assert.Equal(t, 1, ids.n, "rejected runs do not mint IDs")
	ids.mu.Unlock()

	_, err = d.RunCrawl(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-2", d.Status().Last.RunID)
}

func TestTriggeredRunOutlivesRequestContext(t *testing.T) {
	t.Parallel()

	done := make(chan error, 1)
	runner := funcRunner(func(ctx context.Context) (crawler.Summary, error) {
		select {
		case <-ctx.Done():
			done <- ctx.Err()
			return crawler.Summary{}, ctx.Err()
		case <-time.After(50 * time.Millisecond):
			done <- nil
			return crawler.Summary{Completed: true}, nil
		}
	})
	d := New(runner, nil, &sequentialIDs{}, "", nil)

	reqCtx, cancel := context.WithCancel(context.Background())
	_, err := d.Trigger(reqCtx)
	require.NoError(t, err)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not finish")
	}
}

func TestShutdownCancelsBackgroundRun(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	runner := funcRunner(func(ctx context.Context) (crawler.Summary, error) {
		close(started)
		<-ctx.Done()
		return crawler.Summary{}, fmt.Errorf("crawl interrupted: %w", ctx.Err())
	})
	d := New(runner, nil, &sequentialIDs{}, "", nil)

	_, err := d.Trigger(context.Background())
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
	require.NotNil(t, d.Status().Last)
	assert.Equal(t, StatusInterrupted, d.Status().Last.Status)
}

type failingIDs struct{}

func (failingIDs) NewID() (string, error) { return "", errors.New("entropy exhausted") }

func TestRunCrawlRequiresRunID(t *testing.T) {
	t.Parallel()

	d := New(funcRunner(func(context.Context) (crawler.Summary, error) { return crawler.Summary{}, nil }), nil, failingIDs{}, "", nil)
	_, err := d.RunCrawl(context.Background())
	require.Error(t, err)
	assert.False(t, d.Running())
}
