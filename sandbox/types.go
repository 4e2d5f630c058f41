package sandbox

import "time"

// Result status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ExitNever is the exit code reserved for executions that never completed
// normally: validation failure, timeout, or pre-spawn failure.
const ExitNever = -1

// Request represents the parameters for one code execution
type Request struct {
	// Code is the script text to execute. Required, must be non-empty.
	Code string

	// SessionID selects the durable working directory. Required; keys
	// containing path-traversal sequences are rejected.
	SessionID string

	// Timeout is the execution deadline. Zero means unbounded.
	Timeout time.Duration

	// Context holds JSON-serializable values bound as top-level variables
	// at script start. Optional.
	Context map[string]any

	// CaptureArtifacts controls whether newly created session files are
	// reported in the result.
	CaptureArtifacts bool
}

// Artifacts lists the files newly present in the session directory after
// an execution that were not present before it.
type Artifacts struct {
	Files      []string `json:"files"`
	SessionDir string   `json:"session_dir"`
}

// Result is the normalized record returned for every execution. Execution
// failures (nonzero exit, timeout, validation errors) are encoded here
// rather than raised.
type Result struct {
	Status        string    `json:"status"`
	ReturnCode    int       `json:"returncode"`
	Stdout        string    `json:"stdout"`
	Stderr        string    `json:"stderr"`
	Artifacts     Artifacts `json:"artifacts"`
	ExecutionTime float64   `json:"execution_time"`
	Timestamp     string    `json:"timestamp"`
}
