package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_RunsTasks(t *testing.T) {
	wp := NewWorkerPool(2)
	defer wp.Close()

	var mu sync.Mutex
	done := make(chan struct{})
	ran := 0

	for i := 0; i < 5; i++ {
		err := wp.AddTask(context.Background(), func() error {
			mu.Lock()
			ran++
			if ran == 5 {
				close(done)
			}
			mu.Unlock()
			return nil
		})
		assert.NoError(t, err)
	}

	<-done
	mu.Lock()
	assert.Equal(t, 5, ran)
	mu.Unlock()
}

func TestWorkerPool_TaskErrorDoesNotStopWorkers(t *testing.T) {
	wp := NewWorkerPool(1)
	defer wp.Close()

	done := make(chan struct{})

	assert.NoError(t, wp.AddTask(context.Background(), func() error {
		return errors.New("boom")
	}))
	assert.NoError(t, wp.AddTask(context.Background(), func() error {
		close(done)
		return nil
	}))

	<-done
}

func TestWorkerPool_AddTaskHonorsContext(t *testing.T) {
	wp := NewWorkerPool(1)
	defer wp.Close()

	block := make(chan struct{})
	// Occupy the single worker and fill the queue.
	_ = wp.AddTask(context.Background(), func() error {
		<-block
		return nil
	})
	_ = wp.AddTask(context.Background(), func() error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := wp.AddTask(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	close(block)
}

func TestWorkerPool_CloseIsIdempotent(t *testing.T) {
	wp := NewWorkerPool(1)
	wp.Close()
	wp.Close()
}
