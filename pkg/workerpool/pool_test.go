package workerpool

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolProcessesTasks(t *testing.T) {
	var processed int64

	cfg := DefaultConfig()
	cfg.Workers = 4
	cfg.QueueSize = 32

	pool, err := New(cfg, func(ctx context.Context, task *Task) *Result {
		atomic.AddInt64(&processed, 1)
		return &Result{TaskID: task.ID, Success: true}
	}, nil)
	if err != nil {
		t.Fatalf("pool creation failed: %v", err)
	}

	pool.Start()
	for i := 0; i < 10; i++ {
		task := &Task{ID: fmt.Sprintf("task-%d", i), Context: context.Background()}
		if err := pool.Submit(task); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}
	pool.Stop()

	if got := atomic.LoadInt64(&processed); got != 10 {
		t.Errorf("processed %d tasks, want 10", got)
	}

	stats := pool.Stats()
	if stats.TasksSubmitted != 10 || stats.TasksCompleted != 10 {
		t.Errorf("stats = %+v, want 10 submitted and completed", stats)
	}
}

func TestPoolRetriesFailedTasks(t *testing.T) {
	var attempts int64

	cfg := DefaultConfig()
	cfg.Workers = 1
	cfg.QueueSize = 4
	cfg.MaxRetries = 2
	cfg.RetryDelay = time.Millisecond

	pool, err := New(cfg, func(ctx context.Context, task *Task) *Result {
		n := atomic.AddInt64(&attempts, 1)
		if n < 3 {
			return &Result{TaskID: task.ID, Success: false, Error: fmt.Errorf("transient")}
		}
		return &Result{TaskID: task.ID, Success: true}
	}, nil)
	if err != nil {
		t.Fatalf("pool creation failed: %v", err)
	}

	pool.Start()
	if err := pool.Submit(&Task{ID: "flaky", Context: context.Background()}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	pool.Stop()

	if got := atomic.LoadInt64(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	if stats := pool.Stats(); stats.TasksRetried != 2 || stats.TasksCompleted != 1 {
		t.Errorf("stats = %+v, want 2 retries and 1 completion", stats)
	}
}

func TestPoolRejectsWhenQueueFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 1
	cfg.QueueSize = 1

	block := make(chan struct{})
	pool, err := New(cfg, func(ctx context.Context, task *Task) *Result {
		<-block
		return &Result{TaskID: task.ID, Success: true}
	}, nil)
	if err != nil {
		t.Fatalf("pool creation failed: %v", err)
	}
	pool.Start()

	// First task occupies the worker, second fills the queue; eventually a
	// submit must be rejected.
	rejected := false
	for i := 0; i < 4; i++ {
		if err := pool.Submit(&Task{ID: fmt.Sprintf("task-%d", i), Context: context.Background()}); err != nil {
			rejected = true
			break
		}
	}
	if !rejected {
		t.Error("expected a submit rejection once the queue filled")
	}

	close(block)
	pool.Stop()
}

func TestNewRequiresWorkerFunc(t *testing.T) {
	if _, err := New(DefaultConfig(), nil, nil); err == nil {
		t.Error("expected error for nil worker function")
	}
}
