// Package audit records security-relevant session events. Recorders are
// best-effort: callers log a failed Record and carry on.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/google/uuid"
)

const CategoryAuth = "auth"

// Actions recorded by the session service.
const (
	ActionLogin         = "login"
	ActionLoginFailed   = "login_failed"
	ActionRefresh       = "refresh"
	ActionRefreshFailed = "refresh_failed"
	ActionReuseDetected = "reuse_detected"
	ActionRevoke        = "revoke"
	ActionRevokeAll     = "revoke_all"
)

type Event struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	Category string    `json:"category"`
	Action   string    `json:"action"`
	UserID   string    `json:"user_id,omitempty"`
	IP       string    `json:"ip,omitempty"`
	Success  bool      `json:"success"`
	Detail   string    `json:"detail,omitempty"`
}

// NewEvent returns an auth event stamped with a fresh id and the current time.
func NewEvent(action, userID, ip string, success bool) Event {
	return Event{
		ID:       uuid.NewString(),
		Time:     time.Now().UTC(),
		Category: CategoryAuth,
		Action:   action,
		UserID:   userID,
		IP:       ip,
		Success:  success,
	}
}

type Recorder interface {
	Record(ctx context.Context, e Event) error
}

// LogRecorder writes events to a structured logger.
type LogRecorder struct {
	log logging.Logger
}

func NewLogRecorder(log logging.Logger) *LogRecorder {
	return &LogRecorder{log: log.With("module", "audit")}
}

func (r *LogRecorder) Record(ctx context.Context, e Event) error {
	args := []any{
		"event_id", e.ID,
		"category", e.Category,
		"action", e.Action,
		"user_id", e.UserID,
		"ip", e.IP,
		"success", e.Success,
	}
	if e.Detail != "" {
		args = append(args, "detail", e.Detail)
	}
	if e.Success {
		r.log.Info(ctx, "audit", args...)
	} else {
		r.log.Warn(ctx, "audit", args...)
	}
	return nil
}

// Multi fans an event out to every recorder and joins their errors.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, e Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
