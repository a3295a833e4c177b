package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/pkg/relay/api"
	"github.com/janhq/jan-relay/services/relay-api/internal/config"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/relay"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/status"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/ratelimit"
	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver"
	"github.com/janhq/jan-relay/services/relay-api/internal/utils/platformerrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockRelayService implements handlers.RelayService with overridable funcs.
type MockRelayService struct {
	CreateSessionFunc  func(ctx context.Context, userID string, maxSteps int) (*relay.Session, error)
	GetSessionFunc     func(ctx context.Context, userID, sessionID string) (*relay.SessionView, error)
	UpdateMaxStepsFunc func(ctx context.Context, userID, sessionID string, maxSteps int) (*relay.Session, error)
	CreateDraftFunc    func(ctx context.Context, userID, sessionID string, in relay.CreateDraftInput) (*relay.DraftView, error)
	PublishDraftFunc   func(ctx context.Context, userID, sessionID, draftID, title string) (*relay.PublishResult, error)
	DeleteDraftFunc    func(ctx context.Context, userID, draftID string) error
	GetJobFunc         func(ctx context.Context, userID, jobID string) (*generation.Job, string, error)
}

func (m *MockRelayService) CreateSession(ctx context.Context, userID string, maxSteps int) (*relay.Session, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, userID, maxSteps)
	}
	return &relay.Session{ID: "relay_1", OriginatorID: userID, MaxSteps: 4, Status: relay.SessionOpen}, nil
}

func (m *MockRelayService) GetSession(ctx context.Context, userID, sessionID string) (*relay.SessionView, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, userID, sessionID)
	}
	return &relay.SessionView{Session: relay.Session{ID: sessionID, MaxSteps: 4}}, nil
}

func (m *MockRelayService) UpdateMaxSteps(ctx context.Context, userID, sessionID string, maxSteps int) (*relay.Session, error) {
	if m.UpdateMaxStepsFunc != nil {
		return m.UpdateMaxStepsFunc(ctx, userID, sessionID, maxSteps)
	}
	return &relay.Session{ID: sessionID, MaxSteps: maxSteps}, nil
}

func (m *MockRelayService) CreateDraft(ctx context.Context, userID, sessionID string, in relay.CreateDraftInput) (*relay.DraftView, error) {
	if m.CreateDraftFunc != nil {
		return m.CreateDraftFunc(ctx, userID, sessionID, in)
	}
	return &relay.DraftView{
		Draft: relay.Draft{ID: "draft_1", SessionID: sessionID, AuthorID: userID, JobID: "job_1", UserPrompt: in.Prompt},
		Job:   &generation.Job{ID: "job_1", UserID: userID, Status: status.StatusQueued},
	}, nil
}

func (m *MockRelayService) PublishDraft(ctx context.Context, userID, sessionID, draftID, title string) (*relay.PublishResult, error) {
	if m.PublishDraftFunc != nil {
		return m.PublishDraftFunc(ctx, userID, sessionID, draftID, title)
	}
	return &relay.PublishResult{
		Step:    relay.Step{ID: "step_1", SessionID: sessionID, StepNumber: 1, AuthorID: userID, Title: title},
		Session: relay.Session{ID: sessionID, MaxSteps: 4, StepCount: 1},
	}, nil
}

func (m *MockRelayService) DeleteDraft(ctx context.Context, userID, draftID string) error {
	if m.DeleteDraftFunc != nil {
		return m.DeleteDraftFunc(ctx, userID, draftID)
	}
	return nil
}

func (m *MockRelayService) GetJob(ctx context.Context, userID, jobID string) (*generation.Job, string, error) {
	if m.GetJobFunc != nil {
		return m.GetJobFunc(ctx, userID, jobID)
	}
	return &generation.Job{ID: jobID, UserID: userID, Status: status.StatusCompleted, ResultMediaID: "media_1"}, "/v1/media/media_1", nil
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func testConfig() *config.Config {
	return &config.Config{
		ServiceName:         "relay-api",
		Environment:         "test",
		RateLimitEnabled:    true,
		RateLimitRetryAfter: 5 * time.Second,
		ShutdownTimeout:     time.Second,
	}
}

func newServer(t *testing.T, svc *MockRelayService, deps httpserver.Dependencies) http.Handler {
	t.Helper()
	deps.Relay = svc
	return httpserver.New(testConfig(), zerolog.Nop(), deps).Handler()
}

func do(h http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorBody {
	t.Helper()
	var body api.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestRoutes_StatusCodes(t *testing.T) {
	h := newServer(t, &MockRelayService{}, httpserver.Dependencies{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"create session", http.MethodPost, "/v1/relay/sessions", api.CreateSessionRequest{MaxSteps: 4}, http.StatusCreated},
		{"create session without body", http.MethodPost, "/v1/relay/sessions", nil, http.StatusCreated},
		{"get session", http.MethodGet, "/v1/relay/sessions/relay_1", nil, http.StatusOK},
		{"resize", http.MethodPatch, "/v1/relay/sessions/relay_1", api.UpdateSessionRequest{MaxSteps: 6}, http.StatusOK},
		{"create draft", http.MethodPost, "/v1/relay/sessions/relay_1/drafts", api.CreateDraftRequest{Prompt: "x"}, http.StatusAccepted},
		{"publish", http.MethodPost, "/v1/relay/sessions/relay_1/drafts/draft_1/publish", api.PublishRequest{Title: "t"}, http.StatusCreated},
		{"delete draft", http.MethodDelete, "/v1/relay/drafts/draft_1", nil, http.StatusNoContent},
		{"job", http.MethodGet, "/v1/generation/jobs/job_1", nil, http.StatusOK},
		{"health", http.MethodGet, "/healthz", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, tt.method, tt.path, "alice", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRoutes_RequireIdentity(t *testing.T) {
	h := newServer(t, &MockRelayService{}, httpserver.Dependencies{})

	rec := do(h, http.MethodGet, "/v1/relay/sessions/relay_1", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCreateDraft_ResponseCarriesJobAndDraft(t *testing.T) {
	svc := &MockRelayService{
		CreateDraftFunc: func(_ context.Context, userID, sessionID string, in relay.CreateDraftInput) (*relay.DraftView, error) {
			if userID != "bob" || in.BasedOnStepNumber != 2 || in.InputMediaID != "media_2" {
				t.Errorf("unexpected input %s %+v", userID, in)
			}
			return &relay.DraftView{
				Draft: relay.Draft{ID: "draft_9", SessionID: sessionID, AuthorID: userID, BasedOnStepNumber: 2, JobID: "job_9",
					UserPrompt: "run", SystemPrompt: "Keep style."},
				Job: &generation.Job{ID: "job_9", Status: status.StatusQueued},
			}, nil
		},
	}
	h := newServer(t, svc, httpserver.Dependencies{})

	rec := do(h, http.MethodPost, "/v1/relay/sessions/relay_1/drafts", "bob",
		api.CreateDraftRequest{Prompt: "run", InputMediaID: "media_2", BasedOnStepNumber: 2})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp api.CreateDraftResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Job.ID != "job_9" || resp.Job.Status != api.JobQueued {
		t.Fatalf("unexpected job %+v", resp.Job)
	}
	if resp.Draft.Status != api.DraftPending || resp.Draft.Prompt != "Keep style. run" || resp.Draft.BasedOnStepNumber != 2 {
		t.Fatalf("unexpected draft %+v", resp.Draft)
	}
}

func TestPublish_CooldownEnvelope(t *testing.T) {
	svc := &MockRelayService{
		PublishDraftFunc: func(ctx context.Context, _, _, _, _ string) (*relay.PublishResult, error) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
				"you published the latest step", nil, "").
				WithReason(platformerrors.ReasonCooldownActive).
				WithRetryAfter(90 * time.Minute)
		},
	}
	h := newServer(t, svc, httpserver.Dependencies{})

	rec := do(h, http.MethodPost, "/v1/relay/sessions/relay_1/drafts/draft_1/publish", "alice", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "5400" {
		t.Fatalf("unexpected Retry-After %q", rec.Header().Get("Retry-After"))
	}
	body := decodeError(t, rec)
	if body.Reason != "cooldown_active" || body.RetryAfterSeconds != 5400 || body.Code == "" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.RequestID == "" || body.RequestID != rec.Header().Get("X-Request-Id") {
		t.Fatalf("request id not propagated: body %q header %q", body.RequestID, rec.Header().Get("X-Request-Id"))
	}
}

func TestPublish_EmptyBodyFraming(t *testing.T) {
	var titles []string
	svc := &MockRelayService{
		PublishDraftFunc: func(_ context.Context, _, _, _, title string) (*relay.PublishResult, error) {
			titles = append(titles, title)
			return &relay.PublishResult{Step: relay.Step{ID: "step_2", StepNumber: 2, Title: title}}, nil
		},
	}
	h := newServer(t, svc, httpserver.Dependencies{})
	path := "/v1/relay/sessions/relay_1/drafts/draft_1/publish"

	tests := []struct {
		name string
		body io.Reader
		want int
	}{
		{"no body", nil, http.StatusCreated},
		{"empty chunked body", io.MultiReader(), http.StatusCreated},
		{"titled chunked body", io.MultiReader(strings.NewReader(`{"title":"ending"}`)), http.StatusCreated},
		{"malformed body", strings.NewReader(`{"title":`), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, tt.body)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-User-ID", "alice")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
	if len(titles) != 3 || titles[2] != "ending" {
		t.Fatalf("unexpected published titles %q", titles)
	}
}

func TestPublish_UnexpectedErrorIsInternal(t *testing.T) {
	svc := &MockRelayService{
		PublishDraftFunc: func(context.Context, string, string, string, string) (*relay.PublishResult, error) {
			return nil, errors.New("boom")
		},
	}
	h := newServer(t, svc, httpserver.Dependencies{})

	rec := do(h, http.MethodPost, "/v1/relay/sessions/relay_1/drafts/draft_1/publish", "alice", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Reason != "internal_error" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestDraftRateLimit(t *testing.T) {
	limiter, err := ratelimit.NewLocalFixedWindow(1, time.Minute)
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}
	h := newServer(t, &MockRelayService{}, httpserver.Dependencies{Limiters: httpserver.Limiters{Drafts: limiter}})

	first := do(h, http.MethodPost, "/v1/relay/sessions/relay_1/drafts", "alice", api.CreateDraftRequest{Prompt: "x"})
	if first.Code != http.StatusAccepted {
		t.Fatalf("first draft: %d", first.Code)
	}
	second := do(h, http.MethodPost, "/v1/relay/sessions/relay_1/drafts", "alice", api.CreateDraftRequest{Prompt: "y"})
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") != "5" {
		t.Fatalf("unexpected Retry-After %q", second.Header().Get("Retry-After"))
	}
	if body := decodeError(t, second); body.Reason != "rate_limited" {
		t.Fatalf("unexpected body %+v", body)
	}

	other := do(h, http.MethodPost, "/v1/relay/sessions/relay_1/drafts", "bob", api.CreateDraftRequest{Prompt: "z"})
	if other.Code != http.StatusAccepted {
		t.Fatalf("limits are per user, got %d", other.Code)
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	h := newServer(t, &MockRelayService{}, httpserver.Dependencies{Limiters: httpserver.Limiters{Publish: brokenLimiter{}}})

	rec := do(h, http.MethodPost, "/v1/relay/sessions/relay_1/drafts/draft_1/publish", "alice", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("limiter failure must not block publishing, got %d", rec.Code)
	}
}

func TestReadiness(t *testing.T) {
	h := newServer(t, &MockRelayService{}, httpserver.Dependencies{Readiness: map[string]httpserver.ReadinessCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("down") },
	}})

	rec := do(h, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRequestValidation(t *testing.T) {
	called := false
	svc := &MockRelayService{
		CreateDraftFunc: func(context.Context, string, string, relay.CreateDraftInput) (*relay.DraftView, error) {
			called = true
			return nil, errors.New("unreachable")
		},
	}
	h := newServer(t, svc, httpserver.Dependencies{})

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		message string
	}{
		{"missing prompt", http.MethodPost, "/v1/relay/sessions/relay_1/drafts", api.CreateDraftRequest{BasedOnStepNumber: 1}, "prompt is required"},
		{"negative base", http.MethodPost, "/v1/relay/sessions/relay_1/drafts", api.CreateDraftRequest{Prompt: "x", BasedOnStepNumber: -1}, "based_on_step must be at least 0"},
		{"missing max steps", http.MethodPatch, "/v1/relay/sessions/relay_1", api.UpdateSessionRequest{}, "max_steps is required"},
		{"negative max steps", http.MethodPost, "/v1/relay/sessions", api.CreateSessionRequest{MaxSteps: -2}, "max_steps must be greater than 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, tt.method, tt.path, "alice", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", rec.Code, rec.Body.String())
			}
			if body := decodeError(t, rec); body.Message != tt.message || body.Reason != "validation_failed" {
				t.Fatalf("unexpected body %+v", body)
			}
		})
	}
	if called {
		t.Fatalf("invalid drafts must not reach the service")
	}
}
