package transcribe

import (
	"context"
	"time"

	"github.com/skillsenselab/dialtone/asr"
)

// Status is the lifecycle state of a transcription job.
type Status string

const (
	// StatusQueued means the job is registered but has not acquired a
	// concurrency slot yet.
	StatusQueued Status = "queued"
	// StatusRunning means the job holds a slot and inference is underway.
	StatusRunning Status = "running"
	// Terminal states. A job leaves the registry on entering one of these.
	StatusCompleted Status = "completed"
	StatusTimedOut  Status = "timed_out"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether s is a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusTimedOut, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// job is one in-flight transcription. It lives in the pipeline registry only
// while in flight; all field mutation happens under the pipeline mutex.
type job struct {
	id        string
	language  string
	startedAt time.Time
	status    Status
	cancelled bool
	cancel    context.CancelFunc
}

// StatusInfo is the externally visible view of a job.
type StatusInfo struct {
	JobID  string `json:"job_id"`
	Status Status `json:"status"`
	IsDone bool   `json:"is_done"`
}

// Outcome is a finished transcription.
type Outcome struct {
	// Text is the trimmed transcript.
	Text string `json:"text"`
	// Language is the detected (or requested) language code.
	Language string `json:"language"`
	// Confidence is a heuristic 0–1 reliability estimate.
	Confidence float64 `json:"confidence"`
	// Duration is the audio duration in seconds.
	Duration float64 `json:"duration"`
	// ProcessingTime is the wall-clock time the job took, in seconds.
	ProcessingTime float64 `json:"processing_time"`
}

// ServiceStatus is the pipeline-level view for health reporting.
type ServiceStatus struct {
	MaxConcurrent  int      `json:"max_concurrent"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	ActiveCount    int      `json:"active_count"`
	ActiveJobs     []string `json:"active_jobs,omitempty"`
	Model          asr.Info `json:"model"`
}
