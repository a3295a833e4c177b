package publish_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/jan-relay/pkg/relay/api"
	"github.com/janhq/jan-relay/pkg/relay/publish"
	"github.com/janhq/jan-relay/pkg/relay/relayerr"
)

func respond(status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func newCoordinator(t *testing.T, h http.HandlerFunc) (*publish.Coordinator, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/relay/sessions/relay_1/drafts/draft_1/publish", r.URL.Path)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	client := api.New(api.Options{BaseURL: srv.URL, UserID: "bob"})
	return publish.NewCoordinator(client, zerolog.Nop()), &calls
}

func TestPublishSuccess(t *testing.T) {
	c, _ := newCoordinator(t, respond(http.StatusCreated, api.Step{ID: "step_2", SessionID: "relay_1", StepNumber: 2, AuthorID: "bob"}))

	step, err := c.Publish(context.Background(), "relay_1", "draft_1", "  chapter two ")
	require.NoError(t, err)
	assert.Equal(t, 2, step.StepNumber)
	assert.Equal(t, "bob", step.AuthorID)
}

func TestPublishFailureKinds(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       api.ErrorBody
		kind       relayerr.Kind
		reason     string
		retryAfter time.Duration
	}{
		{
			name:   "step conflict",
			status: http.StatusConflict,
			body:   api.ErrorBody{Error: "step 3 already published", Reason: relayerr.ReasonStepConflict},
			kind:   relayerr.KindTurnConflict,
			reason: relayerr.ReasonStepConflict,
		},
		{
			name:   "turn in progress",
			status: http.StatusConflict,
			body:   api.ErrorBody{Error: "another publish is in progress", Reason: relayerr.ReasonTurnInProgress},
			kind:   relayerr.KindTurnConflict,
			reason: relayerr.ReasonTurnInProgress,
		},
		{
			name:       "cooldown",
			status:     http.StatusConflict,
			body:       api.ErrorBody{Error: "wait", Reason: relayerr.ReasonCooldownActive, RetryAfterSeconds: 3600},
			kind:       relayerr.KindCooldown,
			reason:     relayerr.ReasonCooldownActive,
			retryAfter: time.Hour,
		},
		{
			name:   "bare conflict",
			status: http.StatusConflict,
			body:   api.ErrorBody{Error: "conflict"},
			kind:   relayerr.KindTurnConflict,
			reason: relayerr.ReasonStepConflict,
		},
		{
			name:   "throttled",
			status: http.StatusTooManyRequests,
			body:   api.ErrorBody{Error: "slow down"},
			kind:   relayerr.KindRateLimit,
		},
		{
			name:   "session complete",
			status: http.StatusBadRequest,
			body:   api.ErrorBody{Error: "complete", Reason: relayerr.ReasonSessionComplete},
			kind:   relayerr.KindSessionClosed,
			reason: relayerr.ReasonSessionComplete,
		},
		{
			name:   "draft gone",
			status: http.StatusNotFound,
			body:   api.ErrorBody{Error: "draft not found", Reason: relayerr.ReasonNotFound},
			kind:   relayerr.KindValidation,
			reason: relayerr.ReasonNotFound,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   api.ErrorBody{Error: "boom"},
			kind:   relayerr.KindGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := newCoordinator(t, respond(tt.status, tt.body))

			_, err := c.Publish(context.Background(), "relay_1", "draft_1", "")
			require.Error(t, err)

			var e *relayerr.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.reason, e.Reason)
			assert.Equal(t, tt.retryAfter, e.RetryAfter)
			assert.EqualValues(t, 1, atomic.LoadInt32(calls), "publish is never retried")
		})
	}
}

func TestPublishRequiresIDs(t *testing.T) {
	c, calls := newCoordinator(t, respond(http.StatusCreated, api.Step{}))

	_, err := c.Publish(context.Background(), "relay_1", "", "")
	assert.Equal(t, relayerr.KindValidation, relayerr.KindOf(err))
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestConflictHelpers(t *testing.T) {
	assert.True(t, publish.IsConflict(&relayerr.Error{Kind: relayerr.KindTurnConflict}))
	assert.False(t, publish.IsConflict(&relayerr.Error{Kind: relayerr.KindCooldown}))
	assert.True(t, publish.IsCooldown(&relayerr.Error{Kind: relayerr.KindCooldown}))
}
