package jobcontext

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestJobEnd_RetriesRetryableErrors(t *testing.T) {
	ctx, cancel := JobBegin(context.Background(), uuid.New(), "test", time.Second)
	defer cancel()
	ctx = SetBaseDelay(ctx, time.Millisecond)

	calls := 0
	err := JobEnd(ctx, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("JobEnd: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestJobEnd_StopsOnNonRetryable(t *testing.T) {
	ctx, cancel := JobBegin(context.Background(), uuid.New(), "test", time.Second)
	defer cancel()
	ctx = SetBaseDelay(ctx, time.Millisecond)

	calls := 0
	err := JobEnd(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("FOREIGN KEY constraint failed")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestJobEnd_RecoversPanic(t *testing.T) {
	ctx, cancel := JobBegin(context.Background(), uuid.New(), "test", time.Second)
	defer cancel()

	err := JobEnd(ctx, func(ctx context.Context) error {
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

func TestJobMetadata(t *testing.T) {
	id := uuid.New()
	ctx, cancel := JobBegin(context.Background(), id, "ingest.finalize", time.Minute)
	defer cancel()

	meta := GetJobMetadata(ctx)
	if meta.JobID != id || meta.JobType != "ingest.finalize" || meta.MaxRetries != 3 {
		t.Errorf("metadata = %+v", meta)
	}
	if _, ok := ctx.Deadline(); !ok {
		t.Error("expected deadline on job context")
	}
}

func TestCalculateBackoff(t *testing.T) {
	if got := CalculateBackoff(2, time.Second); got != 4*time.Second {
		t.Errorf("CalculateBackoff(2) = %v", got)
	}
	if got := CalculateBackoff(10, time.Second); got != 60*time.Second {
		t.Errorf("CalculateBackoff(10) = %v, want cap", got)
	}
}
