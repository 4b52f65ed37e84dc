package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/radial/internal/shared"
)

// JobStatus is the lifecycle state of a background clustering run.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Finished reports whether the job reached a terminal state.
func (s JobStatus) Finished() bool { return s == JobSucceeded || s == JobFailed }

// RunFunc runs one clustering request, see [Pipeline.Run].
type RunFunc func(ctx context.Context, progress chan<- ProgressUpdate, req Request) (*Result, error)

// Job is a snapshot of a background run.
type Job struct {
	ID         string    `json:"id"`
	Request    Request   `json:"request"`
	Status     JobStatus `json:"status"`
	Phase      string    `json:"phase,omitempty"`
	Percent    float64   `json:"percent"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	Result     *Result   `json:"-"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

type jobEntry struct {
	job  Job
	done chan struct{}
}

// JobRegistry runs clustering requests in the background and tracks their status in memory.
//
// Runs are detached from the caller's cancellation so that a request handler can return immediately.
type JobRegistry struct {
	mu     sync.RWMutex
	jobs   map[string]*jobEntry
	logger *log.Logger
}

// NewJobRegistry creates an empty registry.
func NewJobRegistry(logger *log.Logger) *JobRegistry {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &JobRegistry{jobs: make(map[string]*jobEntry), logger: logger}
}

// Start launches run for req in a new goroutine and returns the job id.
func (r *JobRegistry) Start(ctx context.Context, run RunFunc, req Request) string {
	entry := &jobEntry{
		job:  Job{ID: shared.GenerateID(), Request: req, Status: JobPending, StartedAt: time.Now()},
		done: make(chan struct{}),
	}

	r.mu.Lock()
	r.jobs[entry.job.ID] = entry
	r.mu.Unlock()

	go r.execute(context.WithoutCancel(ctx), run, entry)
	return entry.job.ID
}

func (r *JobRegistry) execute(ctx context.Context, run RunFunc, entry *jobEntry) {
	defer close(entry.done)

	id := entry.job.ID
	r.update(id, func(j *Job) { j.Status = JobRunning })

	progress := make(chan ProgressUpdate, 16)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for update := range progress {
			r.update(id, func(j *Job) {
				j.Phase = update.Phase.String()
				j.Percent = update.Percent()
				j.Message = update.Message
			})
		}
	}()

	result, err := run(ctx, progress, entry.job.Request)
	close(progress)
	<-drained

	r.update(id, func(j *Job) {
		j.FinishedAt = time.Now()
		if err != nil {
			j.Status = JobFailed
			j.Error = err.Error()
			return
		}
		j.Status = JobSucceeded
		j.Result = result
	})

	if err != nil {
		r.logger.Error("clustering job failed", "job", id, "user", entry.job.Request.UserID, "error", err)
		return
	}
	r.logger.Info("clustering job finished", "job", id, "user", entry.job.Request.UserID)
}

func (r *JobRegistry) update(id string, fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.jobs[id]; ok {
		fn(&entry.job)
	}
}

// Get returns a snapshot of the job with the given id.
func (r *JobRegistry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: job %s", shared.ErrNotFound, id)
	}
	return entry.job, nil
}

// Wait blocks until the job finishes or ctx is done.
func (r *JobRegistry) Wait(ctx context.Context, id string) (Job, error) {
	r.mu.RLock()
	entry, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return Job{}, fmt.Errorf("%w: job %s", shared.ErrNotFound, id)
	}

	select {
	case <-entry.done:
		return r.Get(id)
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}
