package jobs

import (
	"fmt"
	"time"
)

type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut, StateCancelled:
		return true
	}
	return false
}

const (
	MinPriority     = 1
	MaxPriority     = 10
	DefaultPriority = 5
)

// Request is the immutable snapshot of submission parameters.
type Request struct {
	InputFile    string            `json:"input_file"`
	Databases    []string          `json:"databases,omitempty"`
	OutputFormat string            `json:"output_format,omitempty"`
	GoTerms      bool              `json:"goterms"`
	Pathways     bool              `json:"pathways"`
	Priority     int               `json:"priority,omitempty"`
	NotifyURL    string            `json:"notify_url,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type ErrorKind string

const (
	ErrKindToolFailed  ErrorKind = "tool_failed"
	ErrKindTimeout     ErrorKind = "timed_out"
	ErrKindWorkspace   ErrorKind = "workspace"
	ErrKindRejected    ErrorKind = "rejected"
	ErrKindInterrupted ErrorKind = "interrupted"
)

// ExecError is the structured failure detail recorded on a job that reached
// FAILED or TIMED_OUT.
type ExecError struct {
	Kind       ErrorKind `json:"kind"`
	ExitCode   int       `json:"exit_code,omitempty"`
	Message    string    `json:"message"`
	StderrTail string    `json:"stderr_tail,omitempty"`
}

func (e *ExecError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("%s (exit code %d): %s", e.Kind, e.ExitCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

type Job struct {
	ID       string `json:"id"`
	State    State  `json:"state"`
	Priority int    `json:"priority"`

	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`

	Request Request `json:"request"`

	// WorkspacePath is set while the job owns a scratch directory and
	// cleared once it is released.
	WorkspacePath string `json:"workspace_path,omitempty"`

	// ResultPath points at the durable result directory; set if and only
	// if State is completed.
	ResultPath string `json:"result_path,omitempty"`

	// Progress is the most recent progress line emitted by the tool.
	Progress string `json:"progress,omitempty"`

	Error *ExecError `json:"error,omitempty"`

	CancelRequested bool `json:"cancel_requested,omitempty"`
}

// Clone returns a deep copy so callers never alias store-owned state.
func (j *Job) Clone() *Job {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	if j.Request.Databases != nil {
		c.Request.Databases = append([]string(nil), j.Request.Databases...)
	}
	if j.Request.Metadata != nil {
		c.Request.Metadata = make(map[string]string, len(j.Request.Metadata))
		for k, v := range j.Request.Metadata {
			c.Request.Metadata[k] = v
		}
	}
	return &c
}
