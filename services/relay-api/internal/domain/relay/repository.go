package relay

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by repositories for unknown ids.
	ErrNotFound = errors.New("relay record not found")
	// ErrDuplicateStep is returned when a step number is already taken.
	ErrDuplicateStep = errors.New("step number already published")
	// ErrTurnLocked is returned by a TurnLocker when another publish holds the turn.
	ErrTurnLocked = errors.New("publish turn is held")
)

// Repository persists sessions, steps and drafts.
type Repository interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSession(ctx context.Context, session *Session) error
	ListSteps(ctx context.Context, sessionID string) ([]Step, error)

	CreateDraft(ctx context.Context, draft *Draft) error
	GetDraft(ctx context.Context, id string) (*Draft, error)
	ListDrafts(ctx context.Context, sessionID, authorID string) ([]Draft, error)
	DeleteDraft(ctx context.Context, id string) error
	DeleteDraftsByAuthor(ctx context.Context, sessionID, authorID string) (int64, error)
	DeleteDraftsCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// LockSession loads the session and holds it until the surrounding
	// transaction ends.
	LockSession(ctx context.Context, id string) (*Session, error)
	InsertStep(ctx context.Context, step *Step) error

	// WithinTx runs fn against a transactional view of the repository.
	WithinTx(ctx context.Context, fn func(tx Repository) error) error
}

// TurnLocker serialises publish attempts per session.
type TurnLocker interface {
	// Acquire takes the lock without waiting. It returns ErrTurnLocked when the
	// lock is held elsewhere.
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}
