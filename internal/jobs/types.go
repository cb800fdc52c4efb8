package jobs

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Kind selects what a job links.
type Kind string

const (
	// KindRun links every document in the library.
	KindRun Kind = "run"
	// KindDocument relinks a single document regardless of its stored state.
	KindDocument Kind = "document"
)

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   JobPayload
}

type JobPayload struct {
	Kind       Kind   `json:"kind"`
	DocumentID string `json:"document_id,omitempty"`
}

// Key is the dedupe key used when a request does not name one: all runs
// share a key, document jobs are keyed by document.
func (p JobPayload) Key() string {
	if p.Kind == KindDocument {
		return string(KindDocument) + "|" + p.DocumentID
	}
	return string(KindRun)
}

// Validate checks that the payload names a known kind and, for document
// jobs, a document.
func (p JobPayload) Validate() error {
	switch p.Kind {
	case KindRun:
		if p.DocumentID != "" {
			return fmt.Errorf("run jobs take no document_id")
		}
		return nil
	case KindDocument:
		if p.DocumentID == "" {
			return fmt.Errorf("document_id is required")
		}
		return nil
	default:
		return fmt.Errorf("unknown job kind %q", p.Kind)
	}
}

type Job struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	DedupeKey string     `json:"dedupe_key"`
	Payload   JobPayload `json:"payload"`
	Status    Status     `json:"status"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Terminal reports whether the job has finished, successfully or not.
func (j *Job) Terminal() bool {
	return j.Status == StatusSuccess || j.Status == StatusFailed
}
