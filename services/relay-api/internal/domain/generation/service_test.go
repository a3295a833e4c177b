package generation_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/status"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/engine"
	repo "github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/repository/relay"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/storage"
)

type rawEngine struct {
	data []byte
	req  generation.Request
}

func (e *rawEngine) Name() string { return "raw" }

func (e *rawEngine) Generate(_ context.Context, req generation.Request) (*generation.Output, error) {
	e.req = req
	return &generation.Output{Data: e.data}, nil
}

func claim(t *testing.T, store *repo.MemoryRepository) {
	t.Helper()
	if _, err := store.ClaimNextJob(context.Background(), time.Now().UTC().Add(time.Second)); err != nil {
		t.Fatalf("claim: %v", err)
	}
}

func TestService_SubmitRejectsEmptyPrompt(t *testing.T) {
	store := repo.NewMemoryRepository()
	svc := generation.NewService(store, engine.NewStubEngine(0), storage.NewMemoryStore("/m/"), zerolog.Nop())

	_, err := svc.Submit(context.Background(), generation.SubmitInput{UserID: "alice", Prompt: "   "})
	if !errors.Is(err, generation.ErrPermanent) {
		t.Fatalf("expected ErrPermanent, got %v", err)
	}
}

func TestService_ExecuteRequiresClaim(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryRepository()
	svc := generation.NewService(store, engine.NewStubEngine(0), storage.NewMemoryStore("/m/"), zerolog.Nop())

	job, err := svc.Submit(ctx, generation.SubmitInput{UserID: "alice", Prompt: "a fox"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.Status != status.StatusQueued {
		t.Fatalf("new job must be queued, got %s", job.Status)
	}
	if _, err := svc.Execute(ctx, job.ID); !errors.Is(err, generation.ErrPermanent) {
		t.Fatalf("expected ErrPermanent for unclaimed job, got %v", err)
	}
}

func TestService_ExecuteSniffsContentTypeAndForwardsInput(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryRepository()
	media := storage.NewMemoryStore("/m/")
	png := []byte("\x89PNG\r\n\x1a\n0000000000000000")
	eng := &rawEngine{data: png}
	svc := generation.NewService(store, eng, media, zerolog.Nop())

	prev := &generation.Media{ID: "media_prev", ContentType: "image/png", Data: png}
	if err := media.Put(ctx, prev); err != nil {
		t.Fatalf("put: %v", err)
	}

	job, err := svc.Submit(ctx, generation.SubmitInput{
		UserID:       "bob",
		Prompt:       "the fox runs",
		SystemPrompt: "keep characters consistent",
		InputMediaID: prev.ID,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	claim(t, store)

	mediaID, err := svc.Execute(ctx, job.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if eng.req.Input == nil || eng.req.Input.ID != prev.ID {
		t.Fatalf("input image not forwarded: %+v", eng.req.Input)
	}
	if eng.req.Prompt != "keep characters consistent the fox runs" {
		t.Fatalf("unexpected engine prompt %q", eng.req.Prompt)
	}

	stored, err := svc.Media(ctx, mediaID)
	if err != nil {
		t.Fatalf("media: %v", err)
	}
	if stored.ContentType != "image/png" {
		t.Fatalf("expected sniffed image/png, got %q", stored.ContentType)
	}
	url, _ := svc.MediaURL(ctx, mediaID)
	if !strings.HasPrefix(url, "/m/") {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestService_ExecuteMissingInputIsPermanent(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryRepository()
	svc := generation.NewService(store, engine.NewStubEngine(0), storage.NewMemoryStore("/m/"), zerolog.Nop())

	job, err := svc.Submit(ctx, generation.SubmitInput{UserID: "bob", Prompt: "next", InputMediaID: "media_gone"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	claim(t, store)

	if _, err := svc.Execute(ctx, job.ID); !errors.Is(err, generation.ErrPermanent) {
		t.Fatalf("expected ErrPermanent, got %v", err)
	}
}
