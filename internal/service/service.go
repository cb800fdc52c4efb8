package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/term-linker/internal/config"
	"github.com/MimeLyc/term-linker/internal/hyperlink"
	"github.com/MimeLyc/term-linker/internal/jobs"
	"github.com/MimeLyc/term-linker/internal/library"
	"github.com/MimeLyc/term-linker/internal/linkmap"
	"github.com/MimeLyc/term-linker/internal/persistence"
	"github.com/MimeLyc/term-linker/pkg/file"
	"github.com/MimeLyc/term-linker/pkg/icron"
	"github.com/MimeLyc/term-linker/pkg/log"
)

// LinkService links the documents of a library with the rules found next to
// them, on a schedule or on demand.
type LinkService struct {
	scanner DocumentScanner
	store   StateStore
	cron    Scheduler
	errors  ErrorHandler
	group   singleflight.Group

	mu        sync.RWMutex
	cfg       config.LinkConfig
	baseCtx   context.Context
	entryID   cron.EntryID
	scheduled bool
	last      *RunReport
}

func NewLinkService(
	cfg config.Config,
	scanner DocumentScanner,
	store StateStore,
	cron Scheduler,
) *LinkService {
	return &LinkService{
		scanner: scanner,
		store:   store,
		cron:    cron,
		errors:  NewDefaultErrorHandler(),
		cfg:     cfg.Link,
		baseCtx: context.Background(),
	}
}

// Schedule registers a library pass under the configured cron expression.
// Overlapping triggers share a single pass.
func (s *LinkService) Schedule(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.baseCtx = ctx
	return s.scheduleLocked()
}

func (s *LinkService) scheduleLocked() error {
	expr := s.cfg.CronExpr
	id, err := s.cron.AddFunc(expr, s.runScheduled)
	if err != nil {
		return NewErrorWithCause(ErrConfig, "failed to schedule link runs", err).
			WithContext("cron_expr", expr)
	}
	s.entryID = id
	s.scheduled = true

	if info, err := icron.GetTriggerInfo(expr, time.Now()); err == nil {
		log.Info("Scheduled link runs with %q, next run at %s", expr, info.Next.Format(time.RFC3339))
	}
	return nil
}

func (s *LinkService) runScheduled() {
	s.mu.RLock()
	ctx := s.baseCtx
	s.mu.RUnlock()

	if ctx.Err() != nil {
		return
	}
	if _, err := s.Run(ctx); err != nil {
		log.Error("Scheduled link run failed: %v", err)
	}
}

// ApplyRuntimeSettings updates the link settings and reschedules when the
// cron expression changed.
func (s *LinkService) ApplyRuntimeSettings(next config.RuntimeSettings) error {
	if err := next.Validate(); err != nil {
		return WrapError(err, ErrValidation, "invalid runtime settings")
	}
	if err := s.scanner.UpdateDefaultLanguage(next.DefaultLanguage); err != nil {
		return WrapError(err, ErrValidation, "invalid default language")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prevExpr := s.cfg.CronExpr
	s.cfg.Apply(next)
	if !s.scheduled || prevExpr == s.cfg.CronExpr {
		return nil
	}

	s.cron.Remove(s.entryID)
	s.scheduled = false
	return s.scheduleLocked()
}

func (s *LinkService) linkConfig() config.LinkConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// LastReport returns the report of the last completed pass.
func (s *LinkService) LastReport() (RunReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return RunReport{}, false
	}
	return *s.last, true
}

// Run is RunOnce shared between concurrent callers.
func (s *LinkService) Run(ctx context.Context) (RunReport, error) {
	v, err, _ := s.group.Do("run", func() (any, error) {
		return s.RunOnce(ctx)
	})
	report, _ := v.(RunReport)
	return report, err
}

// RunOnce links every document of the library once. A failing document is
// counted and logged; only scan errors and cancellation fail the pass.
func (s *LinkService) RunOnce(ctx context.Context) (RunReport, error) {
	cfg := s.linkConfig()
	report := RunReport{Started: time.Now()}

	lib, err := s.scanner.Scan(ctx)
	if err != nil {
		return report, WrapError(err, ErrFileRead, "failed to scan library")
	}
	sources := make(map[string]library.Source, len(lib.Sources))
	for _, src := range lib.Sources {
		sources[src.ID] = src
	}
	log.Info("Linking %d documents from %d sources", len(lib.Documents), len(lib.Sources))

	rules := newRuleCache()
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for _, doc := range lib.Documents {
		mu.Lock()
		report.Scanned++
		if file.IsWithin(cfg.OutputDir, doc.Path) {
			report.Skipped++
			mu.Unlock()
			continue
		}
		mu.Unlock()

		src := sources[doc.SourceID]
		g.Go(func() error {
			var result DocumentResult
			err := SafeExecute(func() error {
				var err error
				result, err = s.linkDocument(gctx, src, doc, rules, cfg, false)
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				if gctx.Err() == nil {
					s.errors.Handle(err)
				}
			case result.Outcome == OutcomeSkipped:
				report.Skipped++
				log.Debug("Skipped %s: %s", doc.Path, result.Reason)
			default:
				report.Linked++
				report.Links += result.Links
				log.Debug("Linked %s: %d links", doc.Path, result.Links)
			}
			return nil
		})
	}
	_ = g.Wait()
	report.Finished = time.Now()

	if err := ctx.Err(); err != nil {
		return report, err
	}

	s.mu.Lock()
	s.last = &report
	s.mu.Unlock()

	log.Info("Link run finished in %s: scanned=%d linked=%d skipped=%d failed=%d links=%d",
		report.Duration().Round(time.Millisecond), report.Scanned, report.Linked,
		report.Skipped, report.Failed, report.Links)
	return report, nil
}

// LinkDocument relinks one document regardless of its stored state.
func (s *LinkService) LinkDocument(ctx context.Context, documentID string) (DocumentResult, error) {
	lib, err := s.scanner.Scan(ctx)
	if err != nil {
		return DocumentResult{}, WrapError(err, ErrFileRead, "failed to scan library")
	}

	for _, doc := range lib.Documents {
		if doc.ID != documentID {
			continue
		}
		var src library.Source
		for _, candidate := range lib.Sources {
			if candidate.ID == doc.SourceID {
				src = candidate
				break
			}
		}
		return s.linkDocument(ctx, src, doc, newRuleCache(), s.linkConfig(), true)
	}

	return DocumentResult{}, NewError(ErrFileNotFound, "document not found").
		WithContext("document_id", documentID)
}

// Execute runs a queued job.
func (s *LinkService) Execute(ctx context.Context, job *jobs.Job) error {
	switch job.Payload.Kind {
	case jobs.KindRun:
		_, err := s.Run(ctx)
		return err
	case jobs.KindDocument:
		_, err := s.LinkDocument(ctx, job.Payload.DocumentID)
		return err
	default:
		return NewError(ErrValidation, fmt.Sprintf("unknown job kind %q", job.Payload.Kind)).
			WithContext("job_id", job.ID)
	}
}

func (s *LinkService) linkDocument(
	ctx context.Context,
	src library.Source,
	doc library.Document,
	rules *ruleCache,
	cfg config.LinkConfig,
	force bool,
) (DocumentResult, error) {
	if err := ctx.Err(); err != nil {
		return DocumentResult{}, err
	}
	result := DocumentResult{DocumentID: doc.ID, Path: doc.Path}

	rulesPath := linkmap.FindInAncestors(filepath.Dir(doc.Path), doc.Language)
	if rulesPath == "" {
		rulesPath = cfg.RulesFile
	}
	if rulesPath == "" {
		result.Outcome = OutcomeSkipped
		result.Reason = "no link rules"
		return result, nil
	}

	ruleSet, digest, err := rules.load(rulesPath)
	if err != nil {
		return result, NewErrorWithCause(ErrParse, "failed to load link rules", err).
			WithContext("rules", rulesPath)
	}
	rulesHash := digest + ":" + cfg.Capitalize.String()

	content, err := os.ReadFile(doc.Path)
	if err != nil {
		errType := ErrFileRead
		if os.IsNotExist(err) {
			errType = ErrFileNotFound
		}
		return result, NewErrorWithCause(errType, "failed to read document", err).
			WithContext("path", doc.Path)
	}
	contentHash := hashContent(content)

	outputPath, err := file.OutputPath(src.Path, cfg.OutputDir, doc.Path)
	if err != nil {
		return result, WrapError(err, ErrValidation, "failed to resolve output path").
			WithContext("path", doc.Path)
	}
	result.OutputPath = outputPath

	state, err := s.store.GetDocumentState(ctx, doc.Path)
	if err != nil {
		return result, WrapError(err, ErrStore, "failed to load document state").
			WithContext("path", doc.Path)
	}
	if !force &&
		state != nil &&
		state.ContentHash == contentHash &&
		state.RulesHash == rulesHash &&
		file.Exists(outputPath) {
		result.Outcome = OutcomeSkipped
		result.Reason = "unchanged"
		return result, nil
	}

	inPlace := outputPath == doc.Path
	text := string(content)
	if inPlace {
		text = unlinkedText(text, contentHash, state, linkmap.Fragments(ruleSet, cfg.Capitalize))
	}

	matched := linkmap.Match(ruleSet, []string{text}).Matched
	linked, err := linkmap.Apply(text, matched, cfg.Capitalize)
	if err != nil {
		return result, WrapError(err, ErrLink, "failed to link document").
			WithContext("path", doc.Path).
			WithContext("rules", rulesPath)
	}
	result.Links = countAnchors(linked) - countAnchors(text)

	if !inPlace || linked != string(content) {
		if err := file.WriteAtomic(outputPath, []byte(linked), fileMode(doc.Path)); err != nil {
			return result, WrapError(err, ErrFileWrite, "failed to write linked document").
				WithContext("output", outputPath)
		}
	}

	next := persistence.DocumentState{
		Path:        doc.Path,
		ContentHash: contentHash,
		RulesHash:   rulesHash,
		OutputPath:  outputPath,
		LinkCount:   result.Links,
		LinkedAt:    time.Now(),
	}
	if inPlace {
		// The next pass reads this output back and must start from text.
		next.ContentHash = hashContent([]byte(linked))
		next.Source = text
		next.Fragments = emittedFragments(linked, linkmap.Fragments(matched, cfg.Capitalize))
	}
	if err := s.store.UpsertDocumentState(ctx, next); err != nil {
		return result, WrapError(err, ErrStore, "failed to save document state").
			WithContext("path", doc.Path)
	}

	result.Outcome = OutcomeLinked
	return result, nil
}

// unlinkedText recovers the text an in-place document had before it was
// linked. An untouched document is replaced by the stored source. An edited
// one has the markup of the last pass, and of the current rules, reverted to
// plain terms; other anchors are kept.
func unlinkedText(content, contentHash string, state *persistence.DocumentState, current []hyperlink.Fragment) string {
	if state == nil {
		return hyperlink.Unlink(content, current)
	}
	if state.OutputPath == state.Path && state.ContentHash == contentHash {
		return state.Source
	}
	return hyperlink.Unlink(content, append(slices.Clip(state.Fragments), current...))
}

func emittedFragments(linked string, fragments []hyperlink.Fragment) []hyperlink.Fragment {
	ret := make([]hyperlink.Fragment, 0, len(fragments))
	for _, f := range fragments {
		if strings.Contains(linked, f.Markup) {
			ret = append(ret, f)
		}
	}
	return ret
}

func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func countAnchors(text string) int {
	return strings.Count(text, `<a href="`)
}

func fileMode(path string) os.FileMode {
	info, err := os.Stat(path)
	if err != nil {
		return 0o644
	}
	return info.Mode().Perm()
}
