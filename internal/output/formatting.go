package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/jacoelho/jsontally/internal/validate"
)

// Format represents the report format.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatYAML
)

var ErrUnknownFormat = errors.New("unknown output format")

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "text"
	}
}

// ParseFormat maps a format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return FormatText, fmt.Errorf("%w %q (expected text, json or yaml)", ErrUnknownFormat, name)
	}
}

const separator = "--------------------------------------------------------------------------------"

// Format formats the summary in the specified format to the given writer.
func (s *Summary) Format(format Format, w io.Writer) error {
	switch format {
	case FormatJSON:
		return s.formatJSON(w)
	case FormatYAML:
		return s.formatYAML(w)
	case FormatText:
		fallthrough
	default:
		return s.formatText(w)
	}
}

func (s *Summary) formatText(w io.Writer) error {
	for _, job := range s.Jobs {
		if _, err := fmt.Fprintf(w, "%s: %s\n", job.Name, s.jobLine(job)); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(w, separator); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "Run:               %s (%s)\n", s.RunID, s.Mode); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Documents:         %d\n", len(s.Jobs)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Succeeded:         %d (%.1f%%)\n", s.Succeeded(), s.SuccessPercentage()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Failed:            %d (%.1f%%)\n", s.Failed(), s.FailurePercentage()); err != nil {
		return err
	}
	if s.Mode == ModeAnalyze {
		if _, err := fmt.Fprintf(w, "Matching:          %d\n", s.TotalMatching()); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "Non-matching:      %d\n", s.TotalNonMatching()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "Bytes read:        %d (%.0f/s)\n", s.TotalBytes(), s.BytesPerSecond()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Duration:          %d ms\n", s.TotalDuration.Milliseconds()); err != nil {
		return err
	}

	return nil
}

func (s *Summary) jobLine(job JobResult) string {
	if job.Error != nil {
		return job.ErrorMessage()
	}
	if s.Mode == ModeValidate {
		if job.Validation == nil || job.Validation.Valid {
			return "valid"
		}
		return job.Validation.Describe()
	}
	return fmt.Sprintf("matching=%d non-matching=%d total=%d (%.2f ms)",
		job.MatchingItems, job.NonMatchingItems, job.TotalPropertiesFound(),
		float64(job.Elapsed.Microseconds())/1000)
}

type reportJob struct {
	Name                 string            `json:"name" yaml:"name"`
	File                 string            `json:"file" yaml:"file"`
	Property             string            `json:"property,omitempty" yaml:"property,omitempty"`
	Criteria             *string           `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	MatchingItems        *int64            `json:"matching_items,omitempty" yaml:"matching_items,omitempty"`
	NonMatchingItems     *int64            `json:"non_matching_items,omitempty" yaml:"non_matching_items,omitempty"`
	TotalPropertiesFound *int64            `json:"total_properties_found,omitempty" yaml:"total_properties_found,omitempty"`
	ElapsedMilliseconds  float64           `json:"elapsed_ms" yaml:"elapsed_ms"`
	Validation           *validate.Outcome `json:"validation,omitempty" yaml:"validation,omitempty"`
	BytesRead            int64             `json:"bytes_read" yaml:"bytes_read"`
	Codec                string            `json:"codec,omitempty" yaml:"codec,omitempty"`
	Fingerprint          string            `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	Success              bool              `json:"success" yaml:"success"`
	Skipped              bool              `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Error                string            `json:"error,omitempty" yaml:"error,omitempty"`
}

type report struct {
	RunID                string      `json:"run_id" yaml:"run_id"`
	Mode                 string      `json:"mode" yaml:"mode"`
	Jobs                 []reportJob `json:"jobs" yaml:"jobs"`
	Documents            int         `json:"documents" yaml:"documents"`
	Succeeded            int         `json:"succeeded" yaml:"succeeded"`
	Failed               int         `json:"failed" yaml:"failed"`
	Skipped              int         `json:"skipped" yaml:"skipped"`
	TotalMatching        int64       `json:"total_matching" yaml:"total_matching"`
	TotalNonMatching     int64       `json:"total_non_matching" yaml:"total_non_matching"`
	BytesRead            int64       `json:"bytes_read" yaml:"bytes_read"`
	BytesPerSecond       float64     `json:"bytes_per_second" yaml:"bytes_per_second"`
	DurationMilliseconds int64       `json:"duration_ms" yaml:"duration_ms"`
}

func (s *Summary) toReport() report {
	jobs := make([]reportJob, 0, len(s.Jobs))
	for _, job := range s.Jobs {
		item := reportJob{
			Name:                job.Name,
			File:                job.File,
			Property:            job.Property,
			ElapsedMilliseconds: float64(job.Elapsed.Microseconds()) / 1000,
			Validation:          job.Validation,
			BytesRead:           job.BytesRead,
			Codec:               job.Codec,
			Fingerprint:         job.Fingerprint,
			Success:             job.Succeeded(),
			Skipped:             job.Skipped,
			Error:               job.ErrorMessage(),
		}
		if s.Mode == ModeAnalyze {
			criteria := job.Criteria
			item.Criteria = &criteria
			if job.Error == nil {
				matching, nonMatching, total := job.MatchingItems, job.NonMatchingItems, job.TotalPropertiesFound()
				item.MatchingItems = &matching
				item.NonMatchingItems = &nonMatching
				item.TotalPropertiesFound = &total
			}
		}
		jobs = append(jobs, item)
	}

	return report{
		RunID:                s.RunID,
		Mode:                 s.Mode.String(),
		Jobs:                 jobs,
		Documents:            len(s.Jobs),
		Succeeded:            s.Succeeded(),
		Failed:               s.Failed(),
		Skipped:              s.Skipped(),
		TotalMatching:        s.TotalMatching(),
		TotalNonMatching:     s.TotalNonMatching(),
		BytesRead:            s.TotalBytes(),
		BytesPerSecond:       s.BytesPerSecond(),
		DurationMilliseconds: s.TotalDuration.Milliseconds(),
	}
}

func (s *Summary) formatJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(s.toReport())
}

func (s *Summary) formatYAML(w io.Writer) error {
	payload, err := yaml.Marshal(s.toReport())
	if err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}
	_, err = w.Write(payload)
	return err
}
