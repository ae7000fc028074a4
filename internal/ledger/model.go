// Package ledger records provisioning runs and keeps two runs from targeting one organization at once.
package ledger

import (
	"context"
	"time"
)

type Kind string

const (
	KindSeed                 Kind = "seed"
	KindStagingRestore       Kind = "staging-restore"
	KindDeleteMessageSenders Kind = "delete-message-senders"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one orchestrator invocation. LastStep is the last step that started.
type Run struct {
	ID         string     `json:"id"`
	OrgID      string     `json:"org_id"`
	Kind       Kind       `json:"kind"`
	Status     Status     `json:"status"`
	LastStep   string     `json:"last_step,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type Store interface {
	Start(ctx context.Context, orgID string, kind Kind) (Run, error)
	Step(ctx context.Context, runID, step string) error
	// Finish marks the run succeeded when runErr is nil, failed otherwise.
	Finish(ctx context.Context, runID string, runErr error) error
	// List returns the most recent runs first.
	List(ctx context.Context, orgID string, limit int) ([]Run, error)
}
