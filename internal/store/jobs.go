package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alexvazquez-beep/video-transcriber-backend/constants"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/common"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/entity"
)

// JobStore tracks transcription jobs for the lifetime of the process.
// Each job is written only by the pipeline task bound to it; readers get
// snapshot copies. Terminal states win: once a job is done or errored,
// later writes are dropped.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*entity.Job
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[uuid.UUID]*entity.Job)}
}

// Create allocates a new job in queued state with zero progress.
func (s *JobStore) Create() entity.Job {
	job := &entity.Job{
		ID:        uuid.New(),
		Status:    constants.JobStatusQueued,
		Progress:  entity.Progress{Pct: 0, Message: "queued"},
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return *job
}

// Get returns a snapshot of the job, never a live pointer.
func (s *JobStore) Get(id uuid.UUID) (entity.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return entity.Job{}, common.NewAppError("JOB_NOT_FOUND", fmt.Sprintf("job %s", id), common.ErrNotFound)
	}
	return *job, nil
}

// MarkProcessing moves a queued job into processing with the given progress.
func (s *JobStore) MarkProcessing(id uuid.UUID, pct int, message string) {
	s.mutate(id, func(job *entity.Job) {
		job.Status = constants.JobStatusProcessing
		job.Progress = entity.Progress{Pct: pct, Message: message}
	})
}

// SetProgress updates the progress of a running job.
func (s *JobStore) SetProgress(id uuid.UUID, pct int, message string) {
	s.mutate(id, func(job *entity.Job) {
		job.Progress = entity.Progress{Pct: pct, Message: message}
	})
}

// Complete marks the job done with its transcript. Terminal, first-wins.
func (s *JobStore) Complete(id uuid.UUID, text string) {
	s.mutate(id, func(job *entity.Job) {
		now := time.Now()
		job.Status = constants.JobStatusDone
		job.Progress = entity.Progress{Pct: 100, Message: "done"}
		job.ResultText = text
		job.FinishedAt = &now
	})
}

// Fail marks the job errored with the failure detail. Progress resets to
// zero with message "error". Terminal, first-wins.
func (s *JobStore) Fail(id uuid.UUID, detail string) {
	s.mutate(id, func(job *entity.Job) {
		now := time.Now()
		job.Status = constants.JobStatusError
		job.Progress = entity.Progress{Pct: 0, Message: "error"}
		job.Error = detail
		job.FinishedAt = &now
	})
}

func (s *JobStore) mutate(id uuid.UUID, fn func(*entity.Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Terminal() {
		return
	}
	fn(job)
}

// Len reports the number of job records.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
