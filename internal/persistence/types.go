package persistence

import (
	"time"

	"github.com/MimeLyc/term-linker/internal/hyperlink"
)

// DocumentState records the inputs of the last successful link pass over a
// document, so unchanged documents can be skipped.
//
// Source and Fragments are only kept for documents linked in place: Source
// is the text before linking and Fragments the markup the pass emitted, so
// the next pass can start again from unlinked text.
type DocumentState struct {
	Path        string               `json:"path"`
	ContentHash string               `json:"content_hash"`
	RulesHash   string               `json:"rules_hash"`
	OutputPath  string               `json:"output_path"`
	LinkCount   int                  `json:"link_count"`
	LinkedAt    time.Time            `json:"linked_at"`
	Source      string               `json:"-"`
	Fragments   []hyperlink.Fragment `json:"-"`
}
