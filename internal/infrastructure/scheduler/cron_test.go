package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestStartRejectsInvalidExpression(t *testing.T) {
	s := NewCronScheduler("not a cron spec", time.UTC)
	if err := s.Start(context.Background(), func(time.Time) {}); err == nil {
		t.Fatal("expected error for invalid expression")
	}
}

func TestStartRejectsNilJob(t *testing.T) {
	s := NewCronScheduler("* * * * *", time.UTC)
	if err := s.Start(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil job")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	s := NewCronScheduler("0 6 * * *", time.UTC)
	if err := s.Start(context.Background(), func(time.Time) {}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Start(context.Background(), func(time.Time) {}); err == nil {
		t.Error("second Start should fail")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// Stopping twice is a no-op.
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}
