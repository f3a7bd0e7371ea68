package output

import (
	"errors"
	"fmt"
	"time"

	"github.com/jacoelho/jsontally/internal/scan"
	"github.com/jacoelho/jsontally/internal/validate"
)

// Mode selects what a run does with each document.
type Mode int

const (
	ModeAnalyze Mode = iota
	ModeValidate
)

func (m Mode) String() string {
	if m == ModeValidate {
		return "validate"
	}
	return "analyze"
}

// JobResult holds the outcome of one document.
type JobResult struct {
	Name     string
	File     string
	Property string
	Criteria string

	MatchingItems    int64
	NonMatchingItems int64
	Elapsed          time.Duration

	Validation *validate.Outcome

	BytesRead   int64
	Codec       string
	Fingerprint string

	Error   error
	Skipped bool
}

// TotalPropertiesFound returns the number of occurrences of the property.
func (r JobResult) TotalPropertiesFound() int64 {
	return r.MatchingItems + r.NonMatchingItems
}

// Succeeded reports whether the job completed and, in validate mode, whether
// the document is valid.
func (r JobResult) Succeeded() bool {
	if r.Error != nil {
		return false
	}
	return r.Validation == nil || r.Validation.Valid
}

// ErrorMessage renders the job failure for humans. Parse errors use the
// "Fatal JSON error" wording.
func (r JobResult) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	var pe *scan.ParseError
	if errors.As(r.Error, &pe) {
		return FatalJSONError(pe)
	}
	return r.Error.Error()
}

// FatalJSONError renders a parse error as reported to users.
func FatalJSONError(pe *scan.ParseError) string {
	return fmt.Sprintf("Fatal JSON error on Line %d, Position %d: %s.", pe.Line, pe.Column, pe.Msg)
}

// Summary aggregates the results of one run. Jobs keep input order.
type Summary struct {
	RunID         string
	Mode          Mode
	Jobs          []JobResult
	TotalDuration time.Duration
}

// NewSummary creates an empty summary for a run.
func NewSummary(runID string, mode Mode) *Summary {
	return &Summary{
		RunID: runID,
		Mode:  mode,
		Jobs:  make([]JobResult, 0),
	}
}

// Add appends a job result.
func (s *Summary) Add(result JobResult) {
	s.Jobs = append(s.Jobs, result)
}

// Succeeded returns the number of successful jobs.
func (s *Summary) Succeeded() int {
	count := 0
	for _, job := range s.Jobs {
		if job.Succeeded() {
			count++
		}
	}
	return count
}

// Failed returns the number of failed jobs.
func (s *Summary) Failed() int {
	return len(s.Jobs) - s.Succeeded()
}

// TotalMatching sums matching items over successful jobs.
func (s *Summary) TotalMatching() int64 {
	var total int64
	for _, job := range s.Jobs {
		if job.Error == nil {
			total += job.MatchingItems
		}
	}
	return total
}

// TotalNonMatching sums non-matching items over successful jobs.
func (s *Summary) TotalNonMatching() int64 {
	var total int64
	for _, job := range s.Jobs {
		if job.Error == nil {
			total += job.NonMatchingItems
		}
	}
	return total
}

// TotalBytes sums the decompressed bytes read by all jobs.
func (s *Summary) TotalBytes() int64 {
	var total int64
	for _, job := range s.Jobs {
		total += job.BytesRead
	}
	return total
}

// BytesPerSecond returns the read throughput over the whole run.
func (s *Summary) BytesPerSecond() float64 {
	if s.TotalDuration <= 0 {
		return 0
	}
	return float64(s.TotalBytes()) / s.TotalDuration.Seconds()
}

// SuccessPercentage returns the percentage of successful jobs.
func (s *Summary) SuccessPercentage() float64 {
	if len(s.Jobs) == 0 {
		return 0
	}
	return float64(s.Succeeded()) / float64(len(s.Jobs)) * 100
}

// FailurePercentage returns the percentage of failed jobs.
func (s *Summary) FailurePercentage() float64 {
	if len(s.Jobs) == 0 {
		return 0
	}
	return float64(s.Failed()) / float64(len(s.Jobs)) * 100
}

// Skipped returns the number of jobs never started because the run was
// cancelled.
func (s *Summary) Skipped() int {
	count := 0
	for _, job := range s.Jobs {
		if job.Skipped {
			count++
		}
	}
	return count
}

// HasFailures reports whether any job failed.
func (s *Summary) HasFailures() bool {
	return s.Failed() > 0
}

// SetTotalDuration records the wall time of the run.
func (s *Summary) SetTotalDuration(d time.Duration) {
	s.TotalDuration = d
}
