package orchestrator

import (
	"fmt"
	"time"

	"github.com/janhq/jan-relay/pkg/relay/relayerr"
)

// Recovery names the action a view should offer next to a notice.
type Recovery string

const (
	RecoveryEditInput  Recovery = "edit_input"
	RecoveryWait       Recovery = "wait"
	RecoveryRegenerate Recovery = "regenerate"
	RecoveryReload     Recovery = "reload"
	RecoveryReport     Recovery = "report_issue"
)

// Diagnostic is the context attached to a "report issue" action.
type Diagnostic struct {
	Code      string `json:"code"`
	Location  string `json:"location"`
	UserID    string `json:"user_id"`
	RequestID string `json:"request_id,omitempty"`
	Status    int    `json:"status,omitempty"`
}

// Notice is a user-facing explanation of a failed action.
type Notice struct {
	Kind       relayerr.Kind
	Reason     string
	Title      string
	Message    string
	Recovery   Recovery
	RetryAfter time.Duration
	Diagnostic *Diagnostic
}

func (n *Notice) String() string {
	if n == nil {
		return ""
	}
	return n.Title + ": " + n.Message
}

// NoticeFor converts err into a notice. location names the action that failed.
func NoticeFor(err error, location, userID string) *Notice {
	if err == nil {
		return nil
	}
	e := relayerr.Wrap(location, err)
	n := &Notice{Kind: e.Kind, Reason: e.Reason, RetryAfter: e.RetryAfter}

	switch e.Kind {
	case relayerr.KindValidation, relayerr.KindNotFound:
		n.Kind = relayerr.KindValidation
		n.Title = "Check your input"
		n.Message = messageOr(e, "The request was not valid.")
		n.Recovery = RecoveryEditInput
	case relayerr.KindSessionClosed:
		n.Title = "Relay complete"
		n.Message = "This relay has reached its last panel. No more continuations can be added."
		n.Recovery = RecoveryReload
	case relayerr.KindReference:
		n.Title = "Previous panel unavailable"
		n.Message = "The panel to continue from has no media yet. Reload the relay and try again."
		n.Recovery = RecoveryReload
	case relayerr.KindCooldown:
		n.Title = "Cooldown active"
		n.Message = "You published the latest panel. You must wait before continuing your own chain."
		if e.RetryAfter > 0 {
			n.Message += fmt.Sprintf(" Try again in %s.", roundWait(e.RetryAfter))
		}
		n.Recovery = RecoveryWait
	case relayerr.KindTurnConflict:
		n.Title = "Someone else got there first"
		if e.Reason == relayerr.ReasonTurnInProgress {
			n.Message = "Another participant is publishing right now. Try again shortly."
		} else {
			n.Message = "Another participant published the next panel. The relay was reloaded; generate again from the new latest panel."
		}
		n.Recovery = RecoveryRegenerate
	case relayerr.KindRateLimit:
		n.Title = "Slow down"
		n.Message = "Too many requests. Wait a moment before trying again."
		n.Recovery = RecoveryWait
	default:
		n.Kind = relayerr.KindGeneric
		n.Title = "Something went wrong"
		n.Message = "Please try again. If it keeps happening, report the issue."
		n.Recovery = RecoveryReport
		n.Diagnostic = &Diagnostic{
			Code:      diagnosticCode(e),
			Location:  location,
			UserID:    userID,
			RequestID: e.RequestID,
			Status:    e.Status,
		}
	}
	return n
}

func messageOr(e *relayerr.Error, fallback string) string {
	if e.Message != "" {
		return e.Message
	}
	return fallback
}

func diagnosticCode(e *relayerr.Error) string {
	switch {
	case e.Code != "":
		return e.Code
	case e.Status != 0:
		return fmt.Sprintf("http_%d", e.Status)
	case e.Err != nil:
		return "network_error"
	default:
		return "unknown"
	}
}

func roundWait(d time.Duration) time.Duration {
	if d < time.Minute {
		return d.Round(time.Second)
	}
	return d.Round(time.Minute)
}
