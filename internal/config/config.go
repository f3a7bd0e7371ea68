package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jacoelho/jsontally/internal/exit"
	"github.com/jacoelho/jsontally/internal/output"
	"github.com/jacoelho/jsontally/internal/scan"
	"github.com/jacoelho/jsontally/internal/source"
)

const (
	// DefaultMaxSize is the largest decompressed document accepted by default.
	DefaultMaxSize int64 = 500 << 20
	// DefaultParallel is the default number of concurrent analyses.
	DefaultParallel = 1
)

var (
	ErrNoArguments     = errors.New("no arguments provided")
	ErrNoFiles         = errors.New("no files specified")
	ErrNoProperty      = errors.New("property name is required")
	ErrJobsAndFiles    = errors.New("files cannot be combined with -jobs")
	ErrJobsAndCriteria = errors.New("-property and -match cannot be combined with -jobs")
	ErrMultipleStdin   = errors.New("standard input can only be read once")
	ErrInvalidMaxSize  = errors.New("max size cannot be negative")
	ErrInvalidMaxDepth = errors.New("max depth cannot be negative")
	ErrInvalidReadRate = errors.New("read rate cannot be negative")
	ErrInvalidParallel = errors.New("parallel must be at least 1")
)

// Config represents the complete configuration for the jsontally tool.
type Config struct {
	// Documents
	Files   []string
	JobFile string
	Jobs    []Job

	// Criteria applied to Files when no job file is given
	Property string
	Match    string

	// Execution
	ValidateOnly bool
	Format       output.Format
	MaxSize      int64   // Decompressed bytes (0 = unlimited)
	MaxDepth     int     // Nesting limit (0 = unlimited)
	ReadRate     float64 // Bytes per second (0 = unlimited)
	Parallel     int
	Debug        bool
}

// Mode returns the run mode selected by the flags.
func (c *Config) Mode() output.Mode {
	if c.ValidateOnly {
		return output.ModeValidate
	}
	return output.ModeAnalyze
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if len(c.Jobs) == 0 {
		return ErrNoFiles
	}

	if c.MaxSize < 0 {
		return ErrInvalidMaxSize
	}
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.ReadRate < 0 {
		return ErrInvalidReadRate
	}
	if c.Parallel < 1 {
		return ErrInvalidParallel
	}

	stdin := 0
	for i, job := range c.Jobs {
		if !c.ValidateOnly && job.Property == "" {
			if c.JobFile != "" {
				return fmt.Errorf("job %d (%s): %w", i+1, job.Name, ErrNoProperty)
			}
			return ErrNoProperty
		}

		if job.File == source.Stdin {
			stdin++
			if stdin > 1 {
				return ErrMultipleStdin
			}
			continue
		}

		if _, err := os.Stat(job.File); err != nil {
			return fmt.Errorf("file %s not found: %w", job.File, err)
		}
	}

	return nil
}

// Parse parses command-line arguments and returns a validated Config.
// If parsing fails or help is requested, returns nil config and exit result.
func Parse(args []string) (*Config, *exit.Result) {
	if len(args) == 0 {
		return nil, exit.Errorf("Error: %v\n\n%s", ErrNoArguments, Usage())
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)

	// Suppress the default usage output since we handle it ourselves
	fs.Usage = func() {}
	// Suppress error output since we handle it ourselves
	fs.SetOutput(io.Discard)

	var (
		property     = fs.String("property", "", "Name of the property to count")
		matchValue   = fs.String("match", "", "Value to match: a literal, alternatives separated by '|', or null")
		jobFile      = fs.String("jobs", "", "Path to YAML job file")
		validateOnly = fs.Bool("validate", false, "Only check that documents are well-formed JSON")
		format       = fs.String("format", "text", "Report format: text, json or yaml")
		maxSize      = fs.Int64("max-size", DefaultMaxSize, "Maximum decompressed document size in bytes (0 for unlimited)")
		maxDepth     = fs.Int("max-depth", scan.DefaultMaxDepth, "Maximum nesting depth (0 for unlimited)")
		readRate     = fs.Float64("read-rate", 0, "Read rate limit in bytes per second (0 for unlimited)")
		parallel     = fs.Int("parallel", DefaultParallel, "Number of documents analysed concurrently")
		debug        = fs.Bool("debug", false, "Enable debug logging")
	)

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, exit.Success(Usage())
		}
		return nil, exit.Errorf("Error: failed to parse arguments: %v\n\n%s", err, Usage())
	}

	outputFormat, err := output.ParseFormat(*format)
	if err != nil {
		return nil, exit.Errorf("Error: %v\n\n%s", err, Usage())
	}

	files := fs.Args()

	config := &Config{
		Files:        files,
		JobFile:      *jobFile,
		Property:     *property,
		Match:        *matchValue,
		ValidateOnly: *validateOnly,
		Format:       outputFormat,
		MaxSize:      *maxSize,
		MaxDepth:     *maxDepth,
		ReadRate:     *readRate,
		Parallel:     *parallel,
		Debug:        *debug,
	}

	criteriaSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "property" || f.Name == "match" {
			criteriaSet = true
		}
	})

	switch {
	case *jobFile != "" && len(files) > 0:
		return nil, exit.Errorf("Error: %v\n\n%s", ErrJobsAndFiles, Usage())
	case *jobFile != "" && criteriaSet:
		return nil, exit.Errorf("Error: %v\n\n%s", ErrJobsAndCriteria, Usage())
	case *jobFile != "":
		jobs, err := LoadJobs(*jobFile)
		if err != nil {
			return nil, exit.Errorf("Error: failed to load job file: %v\n\n%s", err, Usage())
		}
		config.Jobs = jobs
	default:
		config.Jobs = JobsFromFiles(files, *property, *matchValue)
	}

	if err := config.Validate(); err != nil {
		return nil, exit.Errorf("Error: %v\n\n%s", err, Usage())
	}

	return config, nil
}

// JobsFromFiles builds one job per file sharing the same criteria.
func JobsFromFiles(files []string, property, matchValue string) []Job {
	jobs := make([]Job, 0, len(files))
	for _, file := range files {
		jobs = append(jobs, Job{
			Name:     displayName(file),
			File:     file,
			Property: property,
			Match:    matchValue,
		})
	}
	return jobs
}

func displayName(file string) string {
	if file == source.Stdin {
		return "stdin"
	}
	return filepath.Clean(file)
}

// Usage returns a usage string for the CLI tool.
func Usage() string {
	return `jsontally - count JSON property values matching criteria

Usage: jsontally [options] <file1> [file2] ...

Options:
  --property NAME         Name of the property to count (required unless --validate or --jobs)
  --match CRITERIA        Value to match: a literal, alternatives separated by '|', or null (default: "")
  --jobs FILE             Path to YAML job file listing file, property, match and name
  --validate              Only check that documents are well-formed JSON
  --format FORMAT         Report format: text, json or yaml (default: text)
  --max-size BYTES        Maximum decompressed document size (default: 524288000, 0 for unlimited)
  --max-depth N           Maximum nesting depth (default: 1000, 0 for unlimited)
  --read-rate BYTES       Read rate limit in bytes per second (0 for unlimited)
  --parallel N            Number of documents analysed concurrently (default: 1)
  --debug                 Enable debug logging
  -h, --help              Show this help message

Files may be plain, gzip, zstd or lz4 compressed. Use - to read standard input.

Examples:
  jsontally --property status --match active data.json          # Count status == active
  jsontally --property status --match "active|pending" a.json.gz # Any of several values
  jsontally --property deletedAt --match null users.json         # Count null values
  jsontally --validate data.json                                 # Check well-formedness only
  jsontally --jobs jobs.yaml --format json --parallel 4          # Run a batch of analyses
  cat data.json | jsontally --property id -                      # Read standard input`
}
