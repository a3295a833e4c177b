package httpserver_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/pkg/relay/api"
	"github.com/janhq/jan-relay/pkg/relay/orchestrator"
	"github.com/janhq/jan-relay/pkg/relay/relayerr"
	"github.com/janhq/jan-relay/pkg/relay/retry"
	"github.com/janhq/jan-relay/services/relay-api/internal/config"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/relay"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/engine"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/queue"
	repo "github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/repository/relay"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/storage"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/turnlock"
	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver"
	"github.com/janhq/jan-relay/services/relay-api/internal/worker"
)

// startRelayStack runs relay-api with in-memory backends and live workers.
func startRelayStack(t *testing.T) *httptest.Server {
	t.Helper()
	log := zerolog.Nop()
	store := repo.NewMemoryRepository()
	gen := generation.NewService(store, engine.NewStubEngine(0), storage.NewMemoryStore("/v1/media/"), log)
	policy := relay.Policy{
		DefaultMaxSteps:  4,
		AllowedMaxSteps:  []int{4, 6},
		Cooldown:         6 * time.Hour,
		ContinuityPrompt: api.ContinuityInstruction,
	}
	svc := relay.NewService(store, gen, turnlock.NewLocalLocker(), policy, log)

	q := queue.NewJobQueue(store, 2, retry.Policy{BackoffStrategy: retry.BackoffFixed}, log)
	pool := worker.NewPool(q, gen, nil, worker.Config{
		WorkerCount:  2,
		PollInterval: 10 * time.Millisecond,
		TaskTimeout:  5 * time.Second,
	}, log)
	ctx, cancel := context.WithCancel(context.Background())
	if err := pool.Start(ctx); err != nil {
		cancel()
		t.Fatalf("start workers: %v", err)
	}

	cfg := &config.Config{ServiceName: "relay-api", Environment: "test", ShutdownTimeout: time.Second}
	server := httptest.NewServer(httpserver.New(cfg, log, httpserver.Dependencies{Relay: svc, Media: gen}).Handler())
	t.Cleanup(func() {
		server.Close()
		cancel()
		pool.Stop()
	})
	return server
}

func participant(t *testing.T, server *httptest.Server, userID, sessionID string) (*api.Client, *orchestrator.Orchestrator) {
	t.Helper()
	client := api.New(api.Options{BaseURL: server.URL, UserID: userID, Timeout: 5 * time.Second})
	o := orchestrator.New(client, sessionID, orchestrator.Config{
		UserID:            userID,
		DraftPollInterval: 20 * time.Millisecond,
		MaxPollInterval:   50 * time.Millisecond,
		RefreshInterval:   time.Hour,
		Logger:            zerolog.Nop(),
	})
	if notice := o.Start(context.Background()); notice != nil {
		t.Fatalf("%s: start: %+v", userID, notice)
	}
	t.Cleanup(o.Leave)
	return client, o
}

func generate(t *testing.T, o *orchestrator.Orchestrator, prompt string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if notice := o.Generate(ctx, prompt); notice != nil {
		t.Fatalf("generate %q: %+v", prompt, notice)
	}
	if o.State() != orchestrator.StatePreviewing {
		t.Fatalf("expected a ready candidate, state %s", o.State())
	}
}

func waitForJob(t *testing.T, client *api.Client, jobID string) *api.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := client.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", jobID)
	return nil
}

func TestRelayFlow_EndToEnd(t *testing.T) {
	server := startRelayStack(t)
	ctx := context.Background()

	alice := api.New(api.Options{BaseURL: server.URL, UserID: "alice", Timeout: 5 * time.Second})
	created, err := alice.CreateSession(ctx, api.CreateSessionRequest{})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if created.MaxSteps != 4 || created.Status != api.SessionOpen {
		t.Fatalf("unexpected session %+v", created)
	}

	// The originator opens the chain.
	aliceClient, aliceView := participant(t, server, "alice", created.ID)
	generate(t, aliceView, "a fox in the snow")
	if notice := aliceView.Publish(ctx, "Fox"); notice != nil {
		t.Fatalf("alice publish: %+v", notice)
	}
	snap := aliceView.Snapshot()
	if snap.StepCount() != 1 || snap.Session.Title != "Fox" {
		t.Fatalf("unexpected snapshot after first publish: %+v", snap.Session)
	}
	first, _ := snap.LastStep()
	if first.MediaReference == "" || first.MediaURL == "" {
		t.Fatalf("published step has no media: %+v", first)
	}

	resp, err := http.Get(server.URL + first.MediaURL)
	if err != nil {
		t.Fatalf("fetch media: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "a fox in the snow") {
		t.Fatalf("unexpected media response %d: %s", resp.StatusCode, body)
	}

	// Alice may draft on her own panel but cannot publish it during cooldown.
	res, err := aliceClient.CreateDraft(ctx, created.ID, api.CreateDraftRequest{
		Prompt:            "the fox again",
		InputMediaID:      first.MediaReference,
		BasedOnStepNumber: 1,
	})
	if err != nil {
		t.Fatalf("alice draft: %v", err)
	}
	if job := waitForJob(t, aliceClient, res.Job.ID); job.Status != api.JobCompleted {
		t.Fatalf("alice job did not complete: %+v", job)
	}
	_, err = aliceClient.PublishDraft(ctx, created.ID, res.Draft.ID, api.PublishRequest{})
	var relayErr *relayerr.Error
	if !errors.As(err, &relayErr) || relayErr.Kind != relayerr.KindCooldown {
		t.Fatalf("expected cooldown, got %v", err)
	}
	if relayErr.RetryAfter <= 5*time.Hour {
		t.Fatalf("expected close to six hours of cooldown, got %s", relayErr.RetryAfter)
	}

	// Bob continues from step one with the conditioning applied server side.
	_, bobView := participant(t, server, "bob", created.ID)
	generate(t, bobView, "the fox meets a crow")
	candidates, _ := bobView.Candidates()
	if len(candidates) != 1 {
		t.Fatalf("expected one candidate, got %d", len(candidates))
	}
	if c := candidates[0]; c.Draft.BasedOnStepNumber != 1 || c.Draft.SystemPrompt != api.ContinuityInstruction ||
		c.DisplayPrompt() != "the fox meets a crow" {
		t.Fatalf("unexpected candidate %+v", c.Draft)
	}
	if notice := bobView.Publish(ctx, ""); notice != nil {
		t.Fatalf("bob publish: %+v", notice)
	}

	// Carol and Dave both continue step two; the second publish loses.
	_, carolView := participant(t, server, "carol", created.ID)
	_, daveView := participant(t, server, "dave", created.ID)
	generate(t, carolView, "the crow flies off")
	generate(t, daveView, "the fox chases the crow")

	if notice := carolView.Publish(ctx, ""); notice != nil {
		t.Fatalf("carol publish: %+v", notice)
	}
	notice := daveView.Publish(ctx, "")
	if notice == nil || notice.Kind != relayerr.KindTurnConflict || notice.Reason != relayerr.ReasonStepConflict {
		t.Fatalf("expected a step conflict, got %+v", notice)
	}
	if got := daveView.Snapshot().StepCount(); got != 3 {
		t.Fatalf("dave should see the winning step after the conflict, got %d steps", got)
	}
	if daveView.State() != orchestrator.StateIdle {
		t.Fatalf("stale candidates should be dropped, state %s", daveView.State())
	}

	env, err := alice.GetSession(ctx, created.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	authors := make([]string, 0, len(env.Steps))
	for i, step := range env.Steps {
		if step.StepNumber != i+1 {
			t.Fatalf("steps are not contiguous: %+v", env.Steps)
		}
		authors = append(authors, step.AuthorID)
	}
	if strings.Join(authors, ",") != "alice,bob,carol" {
		t.Fatalf("unexpected authors %v", authors)
	}
}

func TestRelayFlow_CompletedSessionRejectsDrafts(t *testing.T) {
	server := startRelayStack(t)
	ctx := context.Background()

	owner := api.New(api.Options{BaseURL: server.URL, UserID: "owner", Timeout: 5 * time.Second})
	created, err := owner.CreateSession(ctx, api.CreateSessionRequest{MaxSteps: 4})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	users := []string{"owner", "u2", "u3", "u4"}
	for i, user := range users {
		_, view := participant(t, server, user, created.ID)
		generate(t, view, "panel "+user)
		if notice := view.Publish(ctx, ""); notice != nil {
			t.Fatalf("step %d by %s: %+v", i+1, user, notice)
		}
	}

	env, err := owner.GetSession(ctx, created.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if env.Session.Status != api.SessionComplete || len(env.Steps) != 4 {
		t.Fatalf("expected a complete four step relay, got %+v", env.Session)
	}

	late := api.New(api.Options{BaseURL: server.URL, UserID: "u5", Timeout: 5 * time.Second})
	_, err = late.CreateDraft(ctx, created.ID, api.CreateDraftRequest{
		Prompt:            "one more",
		InputMediaID:      env.Steps[3].MediaReference,
		BasedOnStepNumber: 4,
	})
	if !relayerr.IsKind(err, relayerr.KindSessionClosed) {
		t.Fatalf("expected session closed, got %v", err)
	}

	_, view := participant(t, server, "u5", created.ID)
	if view.CanContinue() {
		t.Fatalf("a complete relay cannot be continued")
	}
}
