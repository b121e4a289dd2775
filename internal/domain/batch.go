package domain

import "time"

// RunStatus represents the state of a pipeline run
type RunStatus string

const (
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusStopped    RunStatus = "stopped" // quota or accuracy gate
	RunStatusFailed     RunStatus = "failed"
)

// StopReason explains why a run ended before processing every pending record
type StopReason string

const (
	StopNone           StopReason = ""
	StopQuotaExhausted StopReason = "quota_exhausted"
	StopGateFailed     StopReason = "gate_failed"
	StopCancelled      StopReason = "cancelled"
)

// Run represents one invocation of a batch task over a record file
type Run struct {
	ID         string     `json:"id"`
	Task       string     `json:"task"`
	Provider   string     `json:"provider"`
	InputPath  string     `json:"input_path"`
	OutputPath string     `json:"output_path"`
	Resumed    bool       `json:"resumed"`
	Status     RunStatus  `json:"status"`
	StopReason StopReason `json:"stop_reason,omitempty"`
	Total      int        `json:"total"`
	Eligible   int        `json:"eligible"`
	Done       int        `json:"already_done"`
	// Precomputed counts records resolved locally without a remote call.
	Precomputed  int        `json:"precomputed"`
	Processed    int        `json:"processed"`
	Failed       int        `json:"failed"`
	Remaining    int        `json:"remaining"`
	Batches      int        `json:"batches"`
	Requests     int        `json:"requests"`
	GateAccuracy *float64   `json:"gate_accuracy,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// BatchOutcome is the terminal state of one submitted batch
type BatchOutcome string

const (
	BatchCompleted BatchOutcome = "completed"
	BatchFailed    BatchOutcome = "failed"
	// BatchDefaulted means the reply never parsed and fallback results were applied.
	BatchDefaulted BatchOutcome = "defaulted"
	// BatchPartial means some records got results and the rest stay pending.
	BatchPartial BatchOutcome = "partial"
)

// BatchResult records the outcome of one batch within a run
type BatchResult struct {
	RunID       string        `json:"run_id"`
	BatchNumber int           `json:"batch_number"`
	Size        int           `json:"size"`
	Indices     []int         `json:"indices"`
	Outcome     BatchOutcome  `json:"outcome"`
	Attempts    int           `json:"attempts"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	CreatedAt   time.Time     `json:"created_at"`
}
