// Package api is the REST client for the relay backend.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/pkg/relay/relayerr"
)

// Route prefix served by relay-api.
const APIPrefix = "/v1"

const defaultTimeout = 30 * time.Second

// Options configures a Client.
type Options struct {
	BaseURL string
	// UserID is sent as X-User-ID when no token is configured.
	UserID string
	// Token is sent as a bearer token when set.
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client implements the relay endpoints with resty.
type Client struct {
	httpClient *resty.Client
	userID     string
	log        zerolog.Logger
}

// New creates a Resty-backed client.
func New(opts Options) *Client {
	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	rc.SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	if opts.Token != "" {
		rc.SetAuthToken(opts.Token)
	} else if opts.UserID != "" {
		rc.SetHeader("X-User-ID", opts.UserID)
	}

	return &Client{
		httpClient: rc,
		userID:     opts.UserID,
		log:        opts.Logger.With().Str("component", "relay-api-client").Logger(),
	}
}

// UserID returns the identity this client acts as.
func (c *Client) UserID() string {
	return c.userID
}

// CreateSession calls POST /relay/sessions.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	var session Session
	var errBody ErrorBody
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&session).
		SetError(&errBody).
		Post(APIPrefix + "/relay/sessions")
	if err != nil {
		return nil, relayerr.Wrap("create session", err)
	}
	if resp.IsError() {
		return nil, c.fail("create session", resp, errBody)
	}
	return &session, nil
}

// GetSession calls GET /relay/sessions/{id}.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*SessionEnvelope, error) {
	var envelope SessionEnvelope
	var errBody ErrorBody
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", sessionID).
		SetResult(&envelope).
		SetError(&errBody).
		Get(APIPrefix + "/relay/sessions/{id}")
	if err != nil {
		return nil, relayerr.Wrap("get session", err)
	}
	if resp.IsError() {
		return nil, c.fail("get session", resp, errBody)
	}
	return &envelope, nil
}

// UpdateSession calls PATCH /relay/sessions/{id}.
func (c *Client) UpdateSession(ctx context.Context, sessionID string, req UpdateSessionRequest) (*Session, error) {
	var session Session
	var errBody ErrorBody
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", sessionID).
		SetBody(req).
		SetResult(&session).
		SetError(&errBody).
		Patch(APIPrefix + "/relay/sessions/{id}")
	if err != nil {
		return nil, relayerr.Wrap("update session", err)
	}
	if resp.IsError() {
		return nil, c.fail("update session", resp, errBody)
	}
	return &session, nil
}

// CreateDraft calls POST /relay/sessions/{id}/drafts.
func (c *Client) CreateDraft(ctx context.Context, sessionID string, req CreateDraftRequest) (*CreateDraftResponse, error) {
	var created CreateDraftResponse
	var errBody ErrorBody
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", sessionID).
		SetBody(req).
		SetResult(&created).
		SetError(&errBody).
		Post(APIPrefix + "/relay/sessions/{id}/drafts")
	if err != nil {
		return nil, relayerr.Wrap("create draft", err)
	}
	if resp.IsError() {
		return nil, c.fail("create draft", resp, errBody)
	}
	return &created, nil
}

// PublishDraft calls POST /relay/sessions/{id}/drafts/{draftId}/publish.
func (c *Client) PublishDraft(ctx context.Context, sessionID, draftID string, req PublishRequest) (*Step, error) {
	var step Step
	var errBody ErrorBody
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"id": sessionID, "draftId": draftID}).
		SetBody(req).
		SetResult(&step).
		SetError(&errBody).
		Post(APIPrefix + "/relay/sessions/{id}/drafts/{draftId}/publish")
	if err != nil {
		return nil, relayerr.Wrap("publish draft", err)
	}
	if resp.IsError() {
		return nil, c.fail("publish draft", resp, errBody)
	}
	return &step, nil
}

// DeleteDraft calls DELETE /relay/drafts/{draftId}.
func (c *Client) DeleteDraft(ctx context.Context, draftID string) error {
	var errBody ErrorBody
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("draftId", draftID).
		SetError(&errBody).
		Delete(APIPrefix + "/relay/drafts/{draftId}")
	if err != nil {
		return relayerr.Wrap("delete draft", err)
	}
	if resp.IsError() {
		return c.fail("delete draft", resp, errBody)
	}
	return nil
}

// GetJob calls GET /generation/jobs/{jobId}.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	var errBody ErrorBody
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("jobId", jobID).
		SetResult(&job).
		SetError(&errBody).
		Get(APIPrefix + "/generation/jobs/{jobId}")
	if err != nil {
		return nil, relayerr.Wrap("get job", err)
	}
	if resp.IsError() {
		return nil, c.fail("get job", resp, errBody)
	}
	return &job, nil
}

func (c *Client) fail(op string, resp *resty.Response, body ErrorBody) *relayerr.Error {
	status := resp.StatusCode()
	message := body.Message
	if message == "" {
		message = body.Error
	}
	if message == "" {
		message = strings.TrimSpace(http.StatusText(status))
	}

	e := &relayerr.Error{
		Kind:      relayerr.Classify(status, body.Reason),
		Reason:    body.Reason,
		Message:   message,
		Status:    status,
		Code:      body.Code,
		RequestID: body.RequestID,
		Op:        op,
	}
	if body.RetryAfterSeconds > 0 {
		e.RetryAfter = time.Duration(body.RetryAfterSeconds) * time.Second
	} else if header := resp.Header().Get("Retry-After"); header != "" {
		if secs, err := strconv.Atoi(header); err == nil {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	c.log.Debug().
		Str("op", op).
		Int("status", status).
		Str("reason", body.Reason).
		Str("request_id", body.RequestID).
		Msg("relay api call failed")
	return e
}
