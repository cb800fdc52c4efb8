package jobs

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/term-linker/pkg/log"
)

type Executor func(ctx context.Context, job *Job) error

const defaultJobLimit = 1000

// Queue runs link jobs on a fixed pool of workers. While a job is pending or
// running, requests with the same dedupe key return it instead of queueing
// another: a second run request joins the queued run, a second request for
// a document joins that document's job.
type Queue struct {
	workers int
	limit   int
	store   Store

	mu      sync.RWMutex
	jobs    map[string]*Job
	active  map[string]string // dedupe key -> unfinished job id
	lastID  uint64
	started bool
	ready   chan string

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewQueue(workers int, store Store) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		workers: max(workers, 1),
		limit:   defaultJobLimit,
		store:   store,
		jobs:    make(map[string]*Job),
		active:  make(map[string]string),
		ready:   make(chan string, 1024),
		ctx:     ctx,
		cancel:  cancel,
	}
	q.restore(context.Background())
	return q
}

// Enqueue queues a job for req, or returns the unfinished job already holding
// its dedupe key. The key defaults to the payload's Key.
func (q *Queue) Enqueue(req EnqueueRequest) (*Job, bool) {
	key := cmp.Or(req.DedupeKey, req.Payload.Key())

	q.mu.Lock()
	if id, ok := q.active[key]; ok {
		if job, ok := q.jobs[id]; ok {
			snapshot := cloneJob(job)
			q.mu.Unlock()
			return snapshot, false
		}
		delete(q.active, key)
	}

	q.lastID++
	now := time.Now()
	job := &Job{
		ID:        formatJobID(q.lastID),
		Source:    req.Source,
		DedupeKey: key,
		Payload:   req.Payload,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.jobs[job.ID] = job
	q.active[key] = job.ID
	started := q.started
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persist(snapshot)
	if started {
		q.dispatch(job.ID)
	}
	return snapshot, true
}

func (q *Queue) Get(id string) (*Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

// List returns all known jobs, oldest first.
func (q *Queue) List() []*Job {
	q.mu.RLock()
	ret := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		ret = append(ret, cloneJob(job))
	}
	q.mu.RUnlock()

	slices.SortFunc(ret, compareJobs)
	return ret
}

// Start launches the workers. Jobs left pending from an earlier process are
// dispatched first, in the order they were created.
func (q *Queue) Start(exec Executor) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true

	var pending []*Job
	for _, job := range q.jobs {
		if job.Status == StatusPending {
			pending = append(pending, job)
		}
	}
	slices.SortFunc(pending, compareJobs)
	q.mu.Unlock()

	for _, job := range pending {
		q.dispatch(job.ID)
	}
	for range q.workers {
		q.wg.Add(1)
		go q.work(exec)
	}
}

// Stop cancels running jobs and waits for the workers to exit.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.cancel()
		q.wg.Wait()
	})
}

func (q *Queue) work(exec Executor) {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case id := <-q.ready:
			job, ok := q.claim(id)
			if !ok {
				continue
			}
			q.finish(id, exec(q.ctx, job))
		}
	}
}

func (q *Queue) dispatch(id string) {
	select {
	case q.ready <- id:
	default:
		go func() {
			select {
			case q.ready <- id:
			case <-q.ctx.Done():
			}
		}()
	}
}

// claim moves a pending job to running. A job claimed twice, or evicted
// before a worker got to it, is not run.
func (q *Queue) claim(id string) (*Job, bool) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != StatusPending {
		q.mu.Unlock()
		return nil, false
	}
	job.Status = StatusRunning
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persist(snapshot)
	return snapshot, true
}

// finish records the outcome of a job and frees its dedupe key, so the next
// request for the same run or document queues a fresh job.
func (q *Queue) finish(id string, err error) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	job.Status, job.Error = StatusSuccess, ""
	if err != nil {
		job.Status, job.Error = StatusFailed, err.Error()
	}
	job.UpdatedAt = time.Now()
	if q.active[job.DedupeKey] == job.ID {
		delete(q.active, job.DedupeKey)
	}
	evicted := q.evictLocked()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persist(snapshot)
	q.forget(evicted)
}

// evictLocked drops the least recently finished jobs while more than limit
// jobs are held. Unfinished jobs are never evicted.
func (q *Queue) evictLocked() []string {
	excess := len(q.jobs) - q.limit
	if q.limit <= 0 || excess <= 0 {
		return nil
	}

	finished := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		if job.Terminal() {
			finished = append(finished, job)
		}
	}
	slices.SortFunc(finished, func(a, b *Job) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})

	ids := make([]string, 0, min(excess, len(finished)))
	for _, job := range finished[:min(excess, len(finished))] {
		delete(q.jobs, job.ID)
		ids = append(ids, job.ID)
	}
	return ids
}

func (q *Queue) forget(ids []string) {
	if q.store == nil {
		return
	}
	for _, id := range ids {
		if err := q.store.DeleteJob(context.Background(), id); err != nil {
			log.Error("Failed to delete evicted job %s from store: %v", id, err)
		}
	}
}

// restore loads persisted jobs. A job cut off mid-run goes back to pending;
// one whose payload no longer validates is failed instead of being retried.
func (q *Queue) restore(ctx context.Context) {
	if q.store == nil {
		return
	}
	loaded, err := q.store.LoadJobs(ctx)
	if err != nil {
		log.Error("Failed to load jobs from store: %v", err)
		return
	}

	now := time.Now()
	var changed []*Job
	q.mu.Lock()
	for _, stored := range loaded {
		if stored == nil || stored.ID == "" {
			continue
		}
		job := cloneJob(stored)
		job.DedupeKey = cmp.Or(job.DedupeKey, job.Payload.Key())
		q.lastID = max(q.lastID, jobNumber(job.ID))

		if !job.Terminal() {
			if err := job.Payload.Validate(); err != nil {
				job.Status, job.Error = StatusFailed, err.Error()
			} else {
				job.Status = StatusPending
				q.active[job.DedupeKey] = job.ID
			}
			if job.Status != stored.Status {
				job.UpdatedAt = now
				changed = append(changed, cloneJob(job))
			}
		}
		q.jobs[job.ID] = job
	}
	q.mu.Unlock()

	for _, job := range changed {
		q.persist(job)
	}
}

func (q *Queue) persist(job *Job) {
	if q.store == nil {
		return
	}
	if err := q.store.UpsertJob(context.Background(), job); err != nil {
		log.Error("Failed to persist job %s: %v", job.ID, err)
	}
}

func compareJobs(a, b *Job) int {
	return cmp.Or(
		a.CreatedAt.Compare(b.CreatedAt),
		cmp.Compare(jobNumber(a.ID), jobNumber(b.ID)),
	)
}

func formatJobID(n uint64) string {
	return "job-" + strconv.FormatUint(n, 10)
}

// jobNumber returns the counter part of a "job-N" id, or 0.
func jobNumber(id string) uint64 {
	digits, ok := strings.CutPrefix(id, "job-")
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	tmp := *job
	return &tmp
}
