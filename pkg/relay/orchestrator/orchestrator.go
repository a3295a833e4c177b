// Package orchestrator drives one relay continuation interaction: it decides
// whether the user may continue, generates candidates, watches their jobs and
// publishes the chosen one.
//
// Every remote failure ends up as a *Notice; no action returns a raw error.
// Actions that make no sense in the current state are ignored.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/pkg/relay/api"
	"github.com/janhq/jan-relay/pkg/relay/draft"
	"github.com/janhq/jan-relay/pkg/relay/poller"
	"github.com/janhq/jan-relay/pkg/relay/publish"
	"github.com/janhq/jan-relay/pkg/relay/relayerr"
	"github.com/janhq/jan-relay/pkg/relay/session"
)

// DefaultCooldown mirrors the backend's same-author publish window.
const DefaultCooldown = 6 * time.Hour

const changeBuffer = 32

// API is everything the orchestrator needs from the backend. *api.Client satisfies it.
type API interface {
	session.Fetcher
	draft.Client
	publish.Publisher
	poller.JobSource
	UpdateSession(ctx context.Context, sessionID string, req api.UpdateSessionRequest) (*api.Session, error)
}

// Config tunes an Orchestrator.
type Config struct {
	UserID            string
	DraftPollInterval time.Duration
	MaxPollInterval   time.Duration
	RefreshInterval   time.Duration
	Cooldown          time.Duration
	Sleep             poller.SleepFunc
	Now               func() time.Time
	Logger            zerolog.Logger
}

// Change is published whenever the interaction changes.
type Change struct {
	State      State
	Snapshot   session.Snapshot
	Candidates []draft.Candidate
	Selected   int
	Notice     *Notice
	// Updated is set when a passive refresh found steps by other participants.
	Updated bool
}

// Orchestrator is the per-view controller for one relay.
type Orchestrator struct {
	client      API
	userID      string
	cooldown    time.Duration
	refresh     time.Duration
	now         func() time.Time
	log         zerolog.Logger
	model       *session.Model
	drafts      *draft.Manager
	coordinator *publish.Coordinator
	poller      *poller.Poller

	mu           sync.Mutex
	state        State
	notice       *Notice
	cancelGen    context.CancelFunc
	cancelWatch  context.CancelFunc
	changes      chan Change
	closed       bool
	generationID uint64
}

// New builds an orchestrator for sessionID. Call Start to load the relay.
func New(client API, sessionID string, cfg Config) *Orchestrator {
	if cfg.DraftPollInterval <= 0 {
		cfg.DraftPollInterval = poller.DefaultDraftInterval
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = session.DefaultRefreshInterval
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger.With().Str("component", "relay-orchestrator").Str("session_id", sessionID).Logger()

	return &Orchestrator{
		client:      client,
		userID:      cfg.UserID,
		cooldown:    cfg.Cooldown,
		refresh:     cfg.RefreshInterval,
		now:         cfg.Now,
		log:         log,
		model:       session.NewModel(client, sessionID, session.WithLogger(cfg.Logger), session.WithClock(cfg.Now)),
		drafts:      draft.NewManager(client, sessionID, cfg.Logger),
		coordinator: publish.NewCoordinator(client, cfg.Logger),
		poller: poller.New(client, poller.Config{
			Interval:    cfg.DraftPollInterval,
			MaxInterval: cfg.MaxPollInterval,
			Sleep:       cfg.Sleep,
			Logger:      cfg.Logger,
		}),
		state:   StateIdle,
		changes: make(chan Change, changeBuffer),
	}
}

// Start loads the relay and begins passive refresh until ctx is done or Leave
// is called.
func (o *Orchestrator) Start(ctx context.Context) *Notice {
	if _, err := o.model.Load(ctx); err != nil {
		return o.fail(err, "load relay")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		cancel()
		return nil
	}
	o.cancelWatch = cancel
	o.emitLocked(false)
	o.mu.Unlock()

	events := o.model.Watch(watchCtx, o.refresh)
	go func() {
		for ev := range events {
			o.log.Debug().Int("steps", ev.Snapshot.StepCount()).Msg("relay grew while viewed")
			o.mu.Lock()
			o.emitLocked(true)
			o.mu.Unlock()
		}
	}()
	return nil
}

// Changes streams interaction changes. It is closed by Leave.
func (o *Orchestrator) Changes() <-chan Change {
	return o.changes
}

// State returns the current phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Notice returns the notice raised by the last action, if any.
func (o *Orchestrator) Notice() *Notice {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.notice
}

// Snapshot returns the current view of the relay.
func (o *Orchestrator) Snapshot() session.Snapshot {
	return o.model.Snapshot()
}

// Candidates returns the interaction's candidates and the selected index.
func (o *Orchestrator) Candidates() ([]draft.Candidate, int) {
	return o.drafts.Candidates(), o.drafts.SelectedIndex()
}

// CanContinue reports whether a new continuation may be requested: the relay is
// open, there is a panel with media to continue from (or the caller opens an
// empty relay) and nothing is generating.
func (o *Orchestrator) CanContinue() bool {
	o.mu.Lock()
	state := o.state
	o.mu.Unlock()
	if state.Busy() || !o.model.Loaded() {
		return false
	}
	snap := o.model.Snapshot()
	if snap.IsComplete() {
		return false
	}
	last, ok := snap.LastStep()
	if !ok {
		return snap.Session.OriginatorID == "" || snap.Session.OriginatorID == o.userID
	}
	return last.MediaReference != ""
}

// CanResize reports whether the caller may still change the relay length.
func (o *Orchestrator) CanResize() bool {
	return o.model.Snapshot().CanResize(o.userID)
}

// CooldownRemaining estimates how long the caller must wait before publishing.
// The backend decides; this only lets a view explain the wait up front.
func (o *Orchestrator) CooldownRemaining() time.Duration {
	return o.model.Snapshot().CooldownRemaining(o.userID, o.cooldown, o.now())
}

// Generate requests a new candidate for prompt and blocks until its job ends,
// ctx is cancelled or Leave is called. Calling it while a generation or publish
// is running does nothing.
func (o *Orchestrator) Generate(ctx context.Context, prompt string) *Notice {
	o.mu.Lock()
	if o.closed || !o.state.CanTransitionTo(StateGenerating) {
		o.mu.Unlock()
		return nil
	}
	genCtx, cancel := context.WithCancel(ctx)
	o.generationID++
	id := o.generationID
	o.cancelGen = cancel
	o.notice = nil
	o.setStateLocked(StateGenerating)
	o.mu.Unlock()
	defer cancel()

	snap := o.model.Snapshot()
	base, _ := snap.ContinuationBase()
	candidate, err := o.drafts.Create(genCtx, snap, base, prompt)
	if err != nil {
		if genCtx.Err() != nil {
			o.settleGeneration(id, nil)
			return nil
		}
		return o.settleGeneration(id, NoticeFor(err, "create draft", o.userID))
	}

	update, err := o.poller.Wait(genCtx, candidate.Job.ID)
	if err != nil {
		// Navigating away stops watching; the job may still finish server side
		// but is not resumed.
		o.log.Debug().Str("draft_id", candidate.ID()).Msg("stopped watching generation")
		o.settleGeneration(id, nil)
		return nil
	}

	if update.Succeeded() {
		o.drafts.MarkReady(candidate.ID(), update.ResultReference)
		return o.settleGeneration(id, nil)
	}

	message := update.ErrorMessage
	if message == "" {
		message = "generation failed"
	}
	o.drafts.MarkFailed(candidate.ID(), message)
	cause := update.Err
	if cause == nil {
		cause = relayerr.New(relayerr.KindGeneric, "generate", message)
	}
	return o.settleGeneration(id, NoticeFor(cause, "generate", o.userID))
}

func (o *Orchestrator) settleGeneration(id uint64, notice *Notice) *Notice {
	o.mu.Lock()
	defer o.mu.Unlock()
	if id != o.generationID || o.state != StateGenerating {
		return notice
	}
	o.cancelGen = nil
	o.notice = notice
	if o.drafts.HasReady() {
		o.setStateLocked(StatePreviewing)
	} else {
		o.setStateLocked(StateIdle)
	}
	o.emitLocked(false)
	return notice
}

// Publish commits the selected ready candidate. With nothing publishable it
// does nothing.
func (o *Orchestrator) Publish(ctx context.Context, title string) *Notice {
	o.mu.Lock()
	if o.closed || !o.state.CanTransitionTo(StatePublishing) {
		o.mu.Unlock()
		return nil
	}
	selected, ok := o.drafts.Selected()
	if !ok || !selected.Ready() {
		o.mu.Unlock()
		return nil
	}
	o.notice = nil
	o.setStateLocked(StatePublishing)
	o.mu.Unlock()

	sessionID := o.model.SessionID()
	step, err := o.coordinator.Publish(ctx, sessionID, selected.ID(), strings.TrimSpace(title))
	if err != nil {
		return o.publishFailed(ctx, err)
	}

	o.model.ApplyPublished(step)
	o.drafts.Reset()
	if _, _, err := o.model.Refresh(ctx); err != nil {
		o.log.Warn().Err(err).Msg("refresh after publish failed")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.setStateLocked(StateIdle)
	o.emitLocked(false)
	return nil
}

func (o *Orchestrator) publishFailed(ctx context.Context, err error) *Notice {
	notice := NoticeFor(err, "publish", o.userID)
	kind := relayerr.KindOf(err)

	stale := kind == relayerr.KindTurnConflict || kind == relayerr.KindSessionClosed
	if stale {
		if clearErr := o.drafts.Clear(ctx); clearErr != nil {
			o.log.Warn().Err(clearErr).Msg("discarding stale candidates failed")
		}
		if _, _, refreshErr := o.model.Refresh(ctx); refreshErr != nil {
			o.log.Warn().Err(refreshErr).Msg("reload after conflict failed")
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.notice = notice
	if !stale && o.drafts.HasReady() {
		o.setStateLocked(StatePreviewing)
	} else {
		o.setStateLocked(StateIdle)
	}
	o.emitLocked(false)
	return notice
}

// Select shows candidate i.
func (o *Orchestrator) Select(i int) {
	if o.drafts.Select(i) {
		o.changed()
	}
}

// Next shows the following candidate.
func (o *Orchestrator) Next() {
	if _, ok := o.drafts.Next(); ok {
		o.changed()
	}
}

// Prev shows the preceding candidate.
func (o *Orchestrator) Prev() {
	if _, ok := o.drafts.Prev(); ok {
		o.changed()
	}
}

// Discard deletes the selected candidate. Ignored while busy.
func (o *Orchestrator) Discard(ctx context.Context) *Notice {
	o.mu.Lock()
	if o.closed || o.state.Busy() {
		o.mu.Unlock()
		return nil
	}
	selected, ok := o.drafts.Selected()
	o.mu.Unlock()
	if !ok {
		return nil
	}

	if err := o.drafts.Discard(ctx, selected.ID()); err != nil {
		return o.fail(err, "discard draft")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StatePreviewing && !o.drafts.HasReady() {
		o.setStateLocked(StateIdle)
	}
	o.emitLocked(false)
	return nil
}

// Refresh reloads the relay on demand.
func (o *Orchestrator) Refresh(ctx context.Context) *Notice {
	_, grew, err := o.model.Refresh(ctx)
	if err != nil {
		return o.fail(err, "refresh relay")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.emitLocked(grew)
	return nil
}

// Resize changes the relay's length bound. Only the author of the first panel
// may do it, and only before a second panel exists.
func (o *Orchestrator) Resize(ctx context.Context, maxSteps int) *Notice {
	snap := o.model.Snapshot()
	if !snap.CanResize(o.userID) {
		return o.fail(relayerr.New(relayerr.KindValidation, "resize relay",
			"Only the author of the first panel can change the length, and only before a second panel exists."), "resize relay")
	}
	if maxSteps < 1 || maxSteps < snap.StepCount() {
		return o.fail(relayerr.New(relayerr.KindValidation, "resize relay", "The length must cover the published panels."), "resize relay")
	}

	updated, err := o.client.UpdateSession(ctx, snap.ID(), api.UpdateSessionRequest{MaxSteps: maxSteps})
	if err != nil {
		return o.fail(err, "resize relay")
	}

	next := o.model.Snapshot()
	next.Session = *updated
	next.FetchedAt = o.now()
	o.model.Apply(next)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.notice = nil
	o.emitLocked(false)
	return nil
}

// Leave stops passive refresh and any watched generation, and closes Changes.
// Jobs already submitted keep running server side.
func (o *Orchestrator) Leave() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	if o.cancelGen != nil {
		o.cancelGen()
		o.cancelGen = nil
	}
	if o.cancelWatch != nil {
		o.cancelWatch()
		o.cancelWatch = nil
	}
	o.state = StateIdle
	close(o.changes)
}

func (o *Orchestrator) fail(err error, location string) *Notice {
	notice := NoticeFor(err, location, o.userID)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notice = notice
	o.emitLocked(false)
	return notice
}

func (o *Orchestrator) changed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.emitLocked(false)
}

func (o *Orchestrator) setStateLocked(next State) {
	if o.state == next {
		return
	}
	if !o.state.CanTransitionTo(next) {
		o.log.Warn().Str("from", o.state.String()).Str("to", next.String()).Msg("ignoring invalid state transition")
		return
	}
	o.log.Debug().Str("from", o.state.String()).Str("to", next.String()).Msg("state changed")
	o.state = next
	o.emitLocked(false)
}

// emitLocked publishes the current state without blocking. A slow view misses
// intermediate changes, never the latest one it reads back through getters.
func (o *Orchestrator) emitLocked(updated bool) {
	if o.closed {
		return
	}
	candidates := o.drafts.Candidates()
	change := Change{
		State:      o.state,
		Snapshot:   o.model.Snapshot(),
		Candidates: candidates,
		Selected:   o.drafts.SelectedIndex(),
		Notice:     o.notice,
		Updated:    updated,
	}
	select {
	case o.changes <- change:
	default:
		o.log.Debug().Str("state", o.state.String()).Msg("change dropped, view is behind")
	}
}
