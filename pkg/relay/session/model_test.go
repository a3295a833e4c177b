package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/jan-relay/pkg/relay/api"
	"github.com/janhq/jan-relay/pkg/relay/session"
)

func steps(n int, author string) []api.Step {
	out := make([]api.Step, 0, n)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		out = append(out, api.Step{
			ID:             fmt.Sprintf("step_%d", i),
			SessionID:      "relay_1",
			StepNumber:     i,
			AuthorID:       author,
			PublishedAt:    base.Add(time.Duration(i) * time.Hour),
			MediaReference: fmt.Sprintf("media/%d.png", i),
		})
	}
	return out
}

type fakeFetcher struct {
	mu        sync.Mutex
	envelopes []*api.SessionEnvelope
	calls     int
	err       error
}

func (f *fakeFetcher) GetSession(ctx context.Context, id string) (*api.SessionEnvelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls
	if i >= len(f.envelopes) {
		i = len(f.envelopes) - 1
	}
	f.calls++
	return f.envelopes[i], nil
}

func envelope(maxSteps int, s []api.Step) *api.SessionEnvelope {
	return &api.SessionEnvelope{
		Session: api.Session{ID: "relay_1", MaxSteps: maxSteps, Status: api.SessionOpen, OriginatorID: "alice"},
		Steps:   s,
	}
}

func TestSnapshotDerivedFields(t *testing.T) {
	snap := session.FromEnvelope(envelope(4, steps(3, "alice")), time.Now())

	assert.False(t, snap.IsComplete())
	assert.Equal(t, api.SessionOpen, snap.Status())
	last, ok := snap.LastStep()
	require.True(t, ok)
	assert.Equal(t, 3, last.StepNumber)
	assert.Equal(t, "alice", snap.LastAuthorID())
	assert.Equal(t, 1, snap.RemainingSteps())
	assert.False(t, snap.CanResize("alice"), "resize is closed once step 2 exists")

	full := session.FromEnvelope(envelope(3, steps(3, "bob")), time.Now())
	assert.True(t, full.IsComplete())
	assert.Equal(t, api.SessionComplete, full.Status())
}

func TestSnapshotCanResize(t *testing.T) {
	empty := session.FromEnvelope(envelope(4, nil), time.Now())
	assert.True(t, empty.CanResize("alice"))
	assert.False(t, empty.CanResize("bob"))

	one := session.FromEnvelope(envelope(4, steps(1, "bob")), time.Now())
	assert.True(t, one.CanResize("bob"))
	assert.False(t, one.CanResize("alice"))
}

func TestSnapshotOrdersSteps(t *testing.T) {
	s := steps(3, "alice")
	s[0], s[2] = s[2], s[0]
	snap := session.FromEnvelope(envelope(6, s), time.Now())
	for i, step := range snap.Steps {
		assert.Equal(t, i+1, step.StepNumber)
	}
}

func TestCooldownRemaining(t *testing.T) {
	snap := session.FromEnvelope(envelope(6, steps(2, "alice")), time.Now())
	published := snap.LastPublishedAt()

	assert.Equal(t, 5*time.Hour, snap.CooldownRemaining("alice", 6*time.Hour, published.Add(time.Hour)))
	assert.Zero(t, snap.CooldownRemaining("alice", 6*time.Hour, published.Add(7*time.Hour)))
	assert.Zero(t, snap.CooldownRemaining("bob", 6*time.Hour, published))
}

func TestApplyIsMonotoneAndIdempotent(t *testing.T) {
	m := session.NewModel(&fakeFetcher{}, "relay_1")

	_, grew := m.Apply(session.FromEnvelope(envelope(6, steps(3, "alice")), time.Now()))
	assert.False(t, grew, "the initial snapshot is not growth")

	_, grew = m.Apply(session.FromEnvelope(envelope(6, steps(4, "alice")), time.Now()))
	assert.True(t, grew)

	_, grew = m.Apply(session.FromEnvelope(envelope(6, steps(4, "alice")), time.Now()))
	assert.False(t, grew, "re-applying the same snapshot is a no-op")

	snap, grew := m.Apply(session.FromEnvelope(envelope(6, steps(2, "alice")), time.Now()))
	assert.False(t, grew)
	assert.Equal(t, 4, snap.StepCount(), "a stale snapshot cannot regress the chain")
}

func TestOptimisticPublishThenRefresh(t *testing.T) {
	fetcher := &fakeFetcher{envelopes: []*api.SessionEnvelope{envelope(4, steps(3, "alice"))}}
	m := session.NewModel(fetcher, "relay_1")
	_, err := m.Load(context.Background())
	require.NoError(t, err)

	published := steps(4, "alice")[3]
	snap, grew := m.ApplyPublished(published)
	assert.True(t, grew)
	assert.Equal(t, 4, snap.StepCount())
	assert.True(t, snap.IsComplete())

	// authoritative refresh lagging behind the optimistic update
	snap, _, err = m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, snap.StepCount())

	// authoritative refresh that caught up produces no duplicate
	fetcher.envelopes = append(fetcher.envelopes, envelope(4, steps(4, "alice")))
	snap, grew, err = m.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, grew)
	assert.Len(t, snap.Steps, 4)
	for i, step := range snap.Steps {
		assert.Equal(t, i+1, step.StepNumber)
	}
}

func TestWatchRaisesUpdatedOncePerGrowth(t *testing.T) {
	fetcher := &fakeFetcher{envelopes: []*api.SessionEnvelope{
		envelope(6, steps(1, "alice")),
		envelope(6, steps(1, "alice")),
		envelope(6, steps(2, "bob")),
		envelope(6, steps(2, "bob")),
	}}
	m := session.NewModel(fetcher, "relay_1")
	_, err := m.Load(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events := m.Watch(ctx, 5*time.Millisecond)

	select {
	case ev := <-events:
		assert.Equal(t, session.EventUpdated, ev.Kind)
		assert.Equal(t, 1, ev.PreviousSteps)
		assert.Equal(t, 2, ev.Snapshot.StepCount())
	case <-ctx.Done():
		t.Fatal("expected an updated event")
	}

	select {
	case ev, ok := <-events:
		if ok {
			t.Fatalf("unexpected second event: %+v", ev)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchOnUnloadedModelIgnoresInitialSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{envelopes: []*api.SessionEnvelope{
		envelope(6, steps(3, "alice")),
		envelope(6, steps(3, "alice")),
		envelope(6, steps(4, "bob")),
	}}
	m := session.NewModel(fetcher, "relay_1")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events := m.Watch(ctx, 5*time.Millisecond)

	select {
	case ev := <-events:
		assert.Equal(t, 3, ev.PreviousSteps, "first tick only loads the chain")
		assert.Equal(t, 4, ev.Snapshot.StepCount())
	case <-ctx.Done():
		t.Fatal("expected an updated event")
	}
	assert.True(t, m.Loaded())
}
