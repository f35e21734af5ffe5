package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/alexvazquez-beep/video-transcriber-backend/constants"
)

// Progress is the coarse stage indicator reported to polling clients.
type Progress struct {
	Pct     int    `json:"pct"`
	Message string `json:"message"`
}

// Job represents one transcription pipeline execution and its outcome.
type Job struct {
	ID         uuid.UUID           `json:"id"`
	Status     constants.JobStatus `json:"status"`
	Progress   Progress            `json:"progress"`
	ResultText string              `json:"result_text,omitempty"`
	Error      string              `json:"error_message,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

// Terminal reports whether the job has reached a final status.
func (j Job) Terminal() bool {
	return j.Status == constants.JobStatusDone || j.Status == constants.JobStatusError
}
