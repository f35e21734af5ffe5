package constants

// JobStatus is the canonical status for transcription jobs.
type JobStatus string

// Stable values (these exact strings go over the wire).
const (
	JobStatusQueued     JobStatus = "queued"     // accepted, waiting for a worker
	JobStatusProcessing JobStatus = "processing" // pipeline in progress
	JobStatusDone       JobStatus = "done"       // terminal success
	JobStatusError      JobStatus = "error"      // terminal failure
)
