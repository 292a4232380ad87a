package task

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

type fakeExecutor struct {
	processed atomic.Int32
	latency   time.Duration
	fail      error
}

func (f *fakeExecutor) Execute(ctx context.Context, req Request) (*AnalysisResult, error) {
	if f.latency > 0 {
		select {
		case <-time.After(f.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail != nil {
		return nil, f.fail
	}
	f.processed.Add(1)
	return &AnalysisResult{Summary: "ok", Coordination: "consensus"}, nil
}

func TestProcessorHandlesConcurrentTasks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(1024)
	executor := &fakeExecutor{latency: 10 * time.Millisecond}

	service := NewService(store, queue, 3)
	processor := NewProcessor(executor, store, queue, queue, WithWorkerCount(8))

	go func() {
		if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("processor exited: %v", err)
		}
	}()

	total := 200
	for i := 0; i < total; i++ {
		req := Request{
			Operation: OpDraftContract,
			Goal:      fmt.Sprintf("goal-%d", i),
		}
		if _, err := service.Submit(ctx, req); err != nil {
			t.Fatalf("提交任务失败: %v", err)
		}
	}

	deadline := time.After(5 * time.Second)
	for {
		if int(executor.processed.Load()) >= total {
			cancel()
			break
		}
		select {
		case <-deadline:
			t.Fatalf("任务未能及时处理，已完成 %d", executor.processed.Load())
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestServiceSubmitRejectsUnknownOperation(t *testing.T) {
	service := NewService(NewMemoryStore(), NewMemoryQueue(8), 3)
	if _, err := service.Submit(context.Background(), Request{Operation: "mine_bitcoin"}); err == nil {
		t.Fatal("expected validation error for unknown operation")
	}
}

func TestServiceSubmitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	service := NewService(NewMemoryStore(), NewMemoryQueue(8), 3)

	first, err := service.Submit(ctx, Request{ID: "fixed", Operation: OpDraftContract, Goal: "draft"})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := service.Submit(ctx, Request{ID: "fixed", Operation: OpDraftContract, Goal: "draft"})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if first.ID != second.ID || second.CreatedAt != first.CreatedAt {
		t.Fatalf("expected idempotent submit, got %+v vs %+v", first, second)
	}
}

func TestProcessorMarksTerminalFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	executor := &fakeExecutor{fail: errors.New("链上查询失败")}

	service := NewService(store, queue, 1)
	processor := NewProcessor(executor, store, queue, queue)

	submitted, err := service.Submit(ctx, Request{Operation: OpTokenEconomics, Target: "0x0"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := processor.handle(ctx, submitted.ID); err != nil {
		t.Fatalf("handle: %v", err)
	}

	task, err := service.Get(ctx, submitted.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if task.Status != StatusFailed {
		t.Fatalf("expected failed status, got %s", task.Status)
	}
	if task.LastError == "" {
		t.Fatal("expected last error to be recorded")
	}
}
