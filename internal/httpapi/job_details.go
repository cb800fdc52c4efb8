package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/MimeLyc/term-linker/internal/jobs"
	"github.com/MimeLyc/term-linker/internal/library"
	"github.com/MimeLyc/term-linker/internal/persistence"
)

var errJobNotFound = errors.New("job not found")

type jobDetailResponse struct {
	Job      *jobs.Job                  `json:"job"`
	Document *library.Document          `json:"document,omitempty"`
	State    *persistence.DocumentState `json:"state,omitempty"`
}

// handleJobDetail serves /api/jobs/{id}. A document job also carries the
// document it targets and its last link result.
func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	jobID, ok := parseJobRoute(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	detail, err := s.buildJobDetail(r.Context(), jobID)
	if errors.Is(err, errJobNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func parseJobRoute(path string) (string, bool) {
	jobID := strings.TrimSuffix(strings.TrimPrefix(path, "/api/jobs/"), "/")
	if decoded, err := url.PathUnescape(jobID); err == nil {
		jobID = decoded
	}
	if jobID == "" || strings.Contains(jobID, "/") {
		return "", false
	}
	return jobID, true
}

func (s *Server) buildJobDetail(ctx context.Context, jobID string) (jobDetailResponse, error) {
	job, ok := s.queue.Get(jobID)
	if !ok {
		return jobDetailResponse{}, errJobNotFound
	}
	detail := jobDetailResponse{Job: job}
	if job.Payload.DocumentID == "" {
		return detail, nil
	}

	lib, err := s.scanner.Scan(ctx)
	if err != nil {
		return jobDetailResponse{}, err
	}
	for i := range lib.Documents {
		if lib.Documents[i].ID == job.Payload.DocumentID {
			doc := lib.Documents[i]
			detail.Document = &doc
			break
		}
	}
	if detail.Document == nil || s.states == nil {
		return detail, nil
	}

	states, err := s.states.ListDocumentStates(ctx)
	if err != nil {
		return jobDetailResponse{}, err
	}
	for i := range states {
		if states[i].Path == detail.Document.Path {
			state := states[i]
			detail.State = &state
			break
		}
	}
	return detail, nil
}
