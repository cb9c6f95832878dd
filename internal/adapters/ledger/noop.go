package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NoopLedger is used when persistence is not configured. Sessions are
// fabricated so callers keep working; nothing is stored.
type NoopLedger struct{}

func NewNoopLedger() *NoopLedger { return &NoopLedger{} }

func (n *NoopLedger) StartSession(_ context.Context, userID, teamContext string) (Session, error) {
	return Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		TeamContext: teamContext,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (n *NoopLedger) ActiveSession(_ context.Context, _, _ string) (Session, bool, error) {
	return Session{}, false, nil
}

func (n *NoopLedger) RecordActivity(_ context.Context, _ Activity) error { return nil }

func (n *NoopLedger) Activities(_ context.Context, _ string, _ int) ([]Activity, error) {
	return nil, nil
}

func (n *NoopLedger) Clear(_ context.Context, _ string) error { return nil }

func (n *NoopLedger) Close() error { return nil }
