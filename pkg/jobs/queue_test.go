package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	assert.False(t, q.TryEnqueue(Job{ID: "j-1"}))
}

func TestTryEnqueueDropsWhenFull(t *testing.T) {
	entered := make(chan struct{})
	handler := func(ctx context.Context, job Job) error {
		select {
		case entered <- struct{}{}:
		case <-ctx.Done():
			return nil
		}
		<-ctx.Done()
		return nil
	}
	q := NewQueue("test", handler, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()

	// First job is picked up by the single worker, which then blocks.
	require.True(t, q.TryEnqueue(Job{ID: "j-1"}))
	<-entered

	// Second job sits in the buffer; the third must be dropped, not block.
	require.True(t, q.TryEnqueue(Job{ID: "j-2"}))
	assert.False(t, q.TryEnqueue(Job{ID: "j-3"}))
}
