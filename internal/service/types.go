package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/term-linker/internal/library"
	"github.com/MimeLyc/term-linker/internal/persistence"
)

// DocumentScanner lists the documents to link.
type DocumentScanner interface {
	Scan(ctx context.Context) (*library.Library, error)
	Invalidate()
	UpdateDefaultLanguage(lang string) error
}

// StateStore remembers what each document was last linked from.
type StateStore interface {
	GetDocumentState(ctx context.Context, path string) (*persistence.DocumentState, error)
	UpsertDocumentState(ctx context.Context, state persistence.DocumentState) error
}

// Scheduler is the subset of *cron.Cron the service uses.
type Scheduler interface {
	AddFunc(spec string, cmd func()) (cron.EntryID, error)
	Remove(id cron.EntryID)
}

// RunReport summarises one pass over the library.
type RunReport struct {
	Scanned  int       `json:"scanned"`
	Linked   int       `json:"linked"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Links    int       `json:"links"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

func (r RunReport) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

type Outcome string

const (
	OutcomeLinked  Outcome = "linked"
	OutcomeSkipped Outcome = "skipped"
)

// DocumentResult describes what happened to one document.
type DocumentResult struct {
	DocumentID string  `json:"document_id"`
	Path       string  `json:"path"`
	OutputPath string  `json:"output_path,omitempty"`
	Outcome    Outcome `json:"outcome"`
	Reason     string  `json:"reason,omitempty"`
	Links      int     `json:"links"`
}
