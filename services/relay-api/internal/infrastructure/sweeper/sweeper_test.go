package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeJobs struct {
	cutoff time.Time
	n      int64
}

func (f *fakeJobs) FailStaleJobs(_ context.Context, cutoff time.Time, _ string) (int64, error) {
	f.cutoff = cutoff
	return f.n, nil
}

type fakeDrafts struct {
	ttl time.Duration
}

func (f *fakeDrafts) SweepDrafts(_ context.Context, ttl time.Duration) (int64, error) {
	f.ttl = ttl
	return 2, nil
}

func TestSweepOnce_UsesConfiguredWindows(t *testing.T) {
	jobs := &fakeJobs{n: 1}
	drafts := &fakeDrafts{}
	s := New(jobs, drafts, Config{Schedule: "*/5 * * * *", JobStaleAfter: 15 * time.Minute, DraftTTL: 72 * time.Hour}, zerolog.Nop())
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.SweepOnce(context.Background())

	if !jobs.cutoff.Equal(now.Add(-15 * time.Minute)) {
		t.Fatalf("unexpected cutoff %s", jobs.cutoff)
	}
	if drafts.ttl != 72*time.Hour {
		t.Fatalf("unexpected ttl %s", drafts.ttl)
	}
}

func TestSweepOnce_SkipsDisabledSweeps(t *testing.T) {
	jobs := &fakeJobs{}
	drafts := &fakeDrafts{}
	s := New(jobs, drafts, Config{Schedule: "*/5 * * * *"}, zerolog.Nop())

	s.SweepOnce(context.Background())

	if !jobs.cutoff.IsZero() || drafts.ttl != 0 {
		t.Fatalf("sweeps must not run with zero windows")
	}
}

func TestRun_RejectsBadSchedule(t *testing.T) {
	s := New(&fakeJobs{}, &fakeDrafts{}, Config{Schedule: "not a schedule"}, zerolog.Nop())
	if err := s.Run(context.Background()); err == nil {
		t.Fatalf("expected schedule error")
	}
}

func TestRun_StopsWithContext(t *testing.T) {
	s := New(&fakeJobs{}, &fakeDrafts{}, Config{Schedule: "* * * * *"}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("sweeper did not stop")
	}
}
