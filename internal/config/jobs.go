package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/jacoelho/jsontally/internal/source"
)

var (
	ErrJobFile      = errors.New("job file error")
	ErrJobNoFile    = fmt.Errorf("%w: missing required 'file' field", ErrJobFile)
	ErrJobNoEntries = fmt.Errorf("%w: no jobs defined", ErrJobFile)
)

// nullMatch is the criteria text that selects null values.
const nullMatch = "null"

// Job is one document analysis. Match defaults to the empty string and Name
// to the file path.
type Job struct {
	Name     string `yaml:"name,omitempty"`
	File     string `yaml:"file"`
	Property string `yaml:"property"`
	Match    string `yaml:"match,omitempty"`
}

// LoadJobs reads a YAML job file. Relative file paths resolve against the
// directory of the job file.
func LoadJobs(path string) ([]Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	defer f.Close()

	return ParseJobs(f, filepath.Dir(path))
}

// ParseJobs decodes a YAML sequence of jobs, resolving relative paths against
// baseDir. A match written as a YAML null (null, ~ or no value) selects null
// values, exactly as the quoted string "null" does.
func ParseJobs(r io.Reader, baseDir string) ([]Job, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read: %v", ErrJobFile, err)
	}

	var jobs []Job

	decoder := yaml.NewDecoder(bytes.NewReader(data), yaml.DisallowUnknownField())
	if err := decoder.Decode(&jobs); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrJobNoEntries
		}
		return nil, fmt.Errorf("%w: failed to decode YAML: %v", ErrJobFile, err)
	}

	if len(jobs) == 0 {
		return nil, ErrJobNoEntries
	}

	if err := markNullMatches(data, jobs); err != nil {
		return nil, fmt.Errorf("%w: failed to decode YAML: %v", ErrJobFile, err)
	}

	for i := range jobs {
		job := &jobs[i]
		if job.File == "" {
			return nil, fmt.Errorf("job %d: %w", i+1, ErrJobNoFile)
		}
		if job.File != source.Stdin && !filepath.IsAbs(job.File) {
			job.File = filepath.Join(baseDir, job.File)
		}
		if job.Name == "" {
			job.Name = displayName(job.File)
		}
	}

	return jobs, nil
}

// markNullMatches sets Match to "null" for every job whose match key is
// present with a YAML null value. Decoding into Job alone cannot tell that
// apart from an omitted key.
func markNullMatches(data []byte, jobs []Job) error {
	var entries []map[string]any
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return err
	}
	for i, entry := range entries {
		if i >= len(jobs) {
			break
		}
		if value, ok := entry["match"]; ok && value == nil {
			jobs[i].Match = nullMatch
		}
	}
	return nil
}
