package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type stubTask struct {
	Task
	executed chan struct{}
	failures atomic.Int32
}

func newStubTask(failures int32) *stubTask {
	task := &stubTask{
		Task:     NewTask(TaskTypeFetchCycle, "stub"),
		executed: make(chan struct{}, 10),
	}
	task.failures.Store(failures)
	return task
}

func (s *stubTask) Execute(ctx context.Context) error {
	s.executed <- struct{}{}
	if s.failures.Add(-1) >= 0 {
		return errors.New("temporary failure")
	}
	return nil
}

func waitExecuted(t *testing.T, task *stubTask, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		select {
		case <-task.executed:
		case <-time.After(5 * time.Second):
			t.Fatalf("Expected execution %d of %d", i+1, times)
		}
	}
}

func TestSchedulerRunOnStart(t *testing.T) {
	task := newStubTask(0)
	scheduler := NewScheduler(0, 1, true, func() TaskInterface { return task })

	scheduler.Start()
	defer scheduler.Stop()

	waitExecuted(t, task, 1)
}

func TestSchedulerRetriesFailedTask(t *testing.T) {
	task := newStubTask(1)
	scheduler := NewScheduler(0, 1, false, nil)

	scheduler.Start()
	defer scheduler.Stop()

	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatalf("Failed to enqueue task: %v", err)
	}

	waitExecuted(t, task, 2)

	if task.GetRetryCount() != 1 {
		t.Errorf("Expected retry count 1, got %d", task.GetRetryCount())
	}
}

func TestSchedulerQueueFull(t *testing.T) {
	scheduler := NewScheduler(time.Hour, 1, false, nil)

	for i := 0; i < taskQueueSize; i++ {
		if err := scheduler.EnqueueTask(newStubTask(0)); err != nil {
			t.Fatalf("Expected task %d to be queued, got %v", i, err)
		}
	}

	if err := scheduler.EnqueueTask(newStubTask(0)); err == nil {
		t.Error("Expected error when queue is full")
	}
}

func TestSchedulerEnqueueAfterStop(t *testing.T) {
	scheduler := NewScheduler(time.Hour, 1, false, nil)
	scheduler.Start()
	scheduler.Stop()

	if err := scheduler.EnqueueTask(newStubTask(0)); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled after stop, got %v", err)
	}
}

func TestSchedulerSpec(t *testing.T) {
	scheduler := NewScheduler(24*time.Hour, 1, false, nil)
	if scheduler.Spec() != "@every 24h0m0s" {
		t.Errorf("Expected '@every 24h0m0s', got %q", scheduler.Spec())
	}
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		retry    int
		expected time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := retryBackoff(tt.retry); got != tt.expected {
			t.Errorf("retryBackoff(%d): expected %v, got %v", tt.retry, tt.expected, got)
		}
	}
}

func TestTaskRetryState(t *testing.T) {
	task := NewTask(TaskTypeReclassify, "reddit")

	if task.ID == "" {
		t.Error("Expected task id")
	}
	if task.GetDuration() != 0 {
		t.Error("Expected zero duration before start")
	}

	for i := 0; i < DefaultMaxRetries; i++ {
		if !task.CanRetry() {
			t.Fatalf("Expected retry %d to be allowed", i+1)
		}
		task.IncrementRetryCount()
	}
	if task.CanRetry() {
		t.Error("Expected retries to be exhausted")
	}
}
