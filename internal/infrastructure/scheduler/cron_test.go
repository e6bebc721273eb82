package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestCronScheduler_RunsJob(t *testing.T) {
	var calls atomic.Int64
	s := NewCronScheduler("@every 1s", time.UTC, nil)

	if err := s.Start(context.Background(), func(time.Time) { calls.Add(1) }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	if next := s.Next(); next.IsZero() || next.Before(time.Now().Add(-time.Second)) {
		t.Fatalf("unexpected next run %v", next)
	}

	deadline := time.Now().Add(3 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if calls.Load() == 0 {
		t.Fatalf("job never ran")
	}
}

func TestCronScheduler_RejectsBadSpec(t *testing.T) {
	s := NewCronScheduler("not a cron line", nil, nil)
	if err := s.Start(context.Background(), func(time.Time) {}); err == nil {
		t.Fatalf("expected parse error")
	}
	if !s.Next().IsZero() {
		t.Fatalf("failed start must leave scheduler idle")
	}
}

func TestCronScheduler_StartTwice(t *testing.T) {
	s := NewCronScheduler("0 6 * * *", time.UTC, nil)
	if err := s.Start(context.Background(), func(time.Time) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	if err := s.Start(context.Background(), func(time.Time) {}); err == nil {
		t.Fatalf("expected second start to fail")
	}
}

func TestCronScheduler_NextHonoursLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	s := NewCronScheduler("0 6 * * *", loc, nil)
	if err := s.Start(context.Background(), func(time.Time) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	next := s.Next().In(loc)
	if next.Hour() != 6 || next.Minute() != 0 {
		t.Fatalf("expected 06:00 local, got %v", next)
	}
}

func TestCronScheduler_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewCronScheduler("0 6 * * *", time.UTC, nil)
	if err := s.Start(ctx, func(time.Time) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for !s.Next().IsZero() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !s.Next().IsZero() {
		t.Fatalf("scheduler still running after context cancel")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop after cancel: %v", err)
	}
}

func TestCronScheduler_NilJob(t *testing.T) {
	s := NewCronScheduler("0 6 * * *", time.UTC, nil)
	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.Next().IsZero() {
		t.Fatalf("nil job must not schedule anything")
	}
}
