package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MimeLyc/term-linker/internal/config"
	"github.com/MimeLyc/term-linker/internal/hyperlink"
	"github.com/MimeLyc/term-linker/internal/jobs"
	"github.com/MimeLyc/term-linker/internal/library"
	"github.com/MimeLyc/term-linker/internal/persistence"
	"github.com/MimeLyc/term-linker/internal/service"
)

type linkRequest struct {
	Text       any             `json:"text"`
	Terms      any             `json:"terms"`
	URL        any             `json:"url"`
	Options    json.RawMessage `json:"options"`
	Capitalize string          `json:"capitalize"`
}

type linkResponse struct {
	Text string `json:"text"`
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	var opts hyperlink.Options
	if len(req.Options) > 0 && !bytes.Equal(req.Options, []byte("null")) {
		if err := json.Unmarshal(req.Options, &opts); err != nil {
			writeLinkError(w, err)
			return
		}
	}
	policy, err := hyperlink.ParseCapitalizePolicy(req.Capitalize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts.Capitalize = policy

	text, err := hyperlink.LinkValues(req.Text, req.Terms, req.URL, opts)
	if err != nil {
		writeLinkError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, linkResponse{Text: text})
}

func writeLinkError(w http.ResponseWriter, err error) {
	var argErr *hyperlink.ArgumentError
	if errors.As(err, &argErr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": err.Error(),
			"param": argErr.Param,
		})
		return
	}
	if errors.Is(err, hyperlink.ErrInvalidArgument) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, "invalid options")
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	lib, err := s.scanner.Scan(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, lib.Sources)
}

type documentResponse struct {
	library.Document
	LinkedAt   *time.Time  `json:"linked_at,omitempty"`
	LinkCount  int         `json:"link_count"`
	OutputPath string      `json:"output_path,omitempty"`
	InProgress bool        `json:"in_progress"`
	JobStatus  jobs.Status `json:"job_status,omitempty"`
	JobSource  string      `json:"job_source,omitempty"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	lib, err := s.scanner.Scan(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	statesByPath := make(map[string]persistence.DocumentState)
	if s.states != nil {
		states, err := s.states.ListDocumentStates(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, state := range states {
			statesByPath[state.Path] = state
		}
	}

	sourceID := r.URL.Query().Get("source")
	activeJobs := inProgressJobsByDocument(s.queue.List())
	ret := make([]documentResponse, 0, len(lib.Documents))
	for _, doc := range lib.Documents {
		if sourceID != "" && doc.SourceID != sourceID {
			continue
		}
		item := documentResponse{Document: doc}
		if state, ok := statesByPath[doc.Path]; ok {
			linkedAt := state.LinkedAt
			item.LinkedAt = &linkedAt
			item.LinkCount = state.LinkCount
			item.OutputPath = state.OutputPath
		}
		if job, ok := activeJobs[doc.ID]; ok {
			item.InProgress = true
			item.JobStatus = job.Status
			item.JobSource = job.Source
		}
		ret = append(ret, item)
	}
	writeJSON(w, http.StatusOK, ret)
}

func inProgressJobsByDocument(jobList []*jobs.Job) map[string]*jobs.Job {
	ret := make(map[string]*jobs.Job)
	for _, job := range jobList {
		if job == nil || job.Payload.DocumentID == "" {
			continue
		}
		if job.Status != jobs.StatusPending && job.Status != jobs.StatusRunning {
			continue
		}
		existing, ok := ret[job.Payload.DocumentID]
		if !ok || preferInProgressJob(job, existing) {
			ret[job.Payload.DocumentID] = job
		}
	}
	return ret
}

func preferInProgressJob(next, current *jobs.Job) bool {
	nextRank := inProgressRank(next.Status)
	currentRank := inProgressRank(current.Status)
	if nextRank != currentRank {
		return nextRank > currentRank
	}
	return next.UpdatedAt.After(current.UpdatedAt)
}

func inProgressRank(status jobs.Status) int {
	switch status {
	case jobs.StatusRunning:
		return 2
	case jobs.StatusPending:
		return 1
	default:
		return 0
	}
}

type enqueueJobRequest struct {
	Source     string    `json:"source"`
	DedupeKey  string    `json:"dedupe_key"`
	Kind       jobs.Kind `json:"kind"`
	DocumentID string    `json:"document_id"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.queue.List())
	case http.MethodPost:
		var req enqueueJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.Source == "" {
			req.Source = "manual"
		}
		if req.Kind == "" {
			req.Kind = jobs.KindRun
			if req.DocumentID != "" {
				req.Kind = jobs.KindDocument
			}
		}
		if req.Kind == jobs.KindRun {
			req.DocumentID = ""
		}
		payload := jobs.JobPayload{Kind: req.Kind, DocumentID: req.DocumentID}
		if err := payload.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		job, created := s.queue.Enqueue(jobs.EnqueueRequest{
			Source:    req.Source,
			DedupeKey: req.DedupeKey,
			Payload:   payload,
		})
		code := http.StatusCreated
		if !created {
			code = http.StatusOK
		}
		writeJSON(w, code, map[string]any{
			"created": created,
			"job":     job,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleScan drops the cached library and queues a full run.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.scanner.Invalidate()
	job, created := s.queue.Enqueue(jobs.EnqueueRequest{
		Source:  "scan",
		Payload: jobs.JobPayload{Kind: jobs.KindRun},
	})
	writeJSON(w, http.StatusAccepted, map[string]any{
		"ok":      true,
		"created": created,
		"job":     job,
	})
}

type statusResponse struct {
	LastRun *service.RunReport  `json:"last_run"`
	Jobs    map[jobs.Status]int `json:"jobs"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := statusResponse{Jobs: map[jobs.Status]int{
		jobs.StatusPending: 0,
		jobs.StatusRunning: 0,
		jobs.StatusSuccess: 0,
		jobs.StatusFailed:  0,
	}}
	if s.reports != nil {
		if report, ok := s.reports.LastReport(); ok {
			resp.LastRun = &report
		}
	}
	for _, job := range s.queue.List() {
		resp.Jobs[job.Status]++
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var req config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		saved, err := s.settings.UpdateRuntimeSettings(req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if s.apply != nil {
			if err := s.apply(saved); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
