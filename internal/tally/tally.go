// Package tally counts occurrences of a named JSON property whose value does
// or does not satisfy a match specification. Documents are consumed as a
// token stream in a single pass; nothing is materialized.
package tally

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jacoelho/jsontally/internal/clock"
	"github.com/jacoelho/jsontally/internal/match"
	"github.com/jacoelho/jsontally/internal/scan"
)

var (
	// ErrInput is the parent of all precondition failures; callers can check
	// it with errors.Is.
	ErrInput         = errors.New("invalid input")
	ErrNoInput       = fmt.Errorf("%w: no document stream", ErrInput)
	ErrEmptyProperty = fmt.Errorf("%w: property name is required", ErrInput)
)

// Result is the outcome of a completed analysis.
type Result struct {
	MatchingItems    int64
	NonMatchingItems int64
	Elapsed          time.Duration
}

// TotalPropertiesFound returns the number of occurrences of the property.
func (r Result) TotalPropertiesFound() int64 {
	return r.MatchingItems + r.NonMatchingItems
}

// ElapsedMilliseconds returns the scan duration with fractional milliseconds.
func (r Result) ElapsedMilliseconds() float64 {
	return float64(r.Elapsed) / float64(time.Millisecond)
}

// Analyze scans a JSON document from r and classifies every occurrence of
// property against criteria. Malformed JSON returns a *scan.ParseError and
// no counts.
func Analyze(r io.Reader, property, criteria string, opts ...scan.Option) (Result, error) {
	if r == nil {
		return Result{}, ErrNoInput
	}
	if property == "" {
		return Result{}, ErrEmptyProperty
	}

	spec := match.Build(criteria)

	sc, err := scan.New(r, opts...)
	if err != nil {
		return Result{}, err
	}

	return Run(sc, property, spec)
}

// Run drains sc and counts occurrences of property. The property name must
// match exactly; values are compared by spec. Occurrences are counted at any
// depth, and a structured value is compared as its opening marker while its
// contents are scanned like the rest of the document.
//
// Elapsed time covers the token loop only.
func Run(sc *scan.Scanner, property string, spec *match.Spec) (Result, error) {
	var matching, nonMatching int64

	start := clock.Now()
	for {
		tok, err := sc.Next()
		if err != nil {
			return Result{}, err
		}
		if tok.Kind == scan.EndOfStream {
			break
		}
		if tok.Kind != scan.PropertyName || tok.Value != property {
			continue
		}

		value, err := sc.Next()
		if err != nil {
			return Result{}, err
		}

		if matches(value, spec) {
			matching++
		} else {
			nonMatching++
		}
	}

	return Result{
		MatchingItems:    matching,
		NonMatchingItems: nonMatching,
		Elapsed:          clock.Since(start),
	}, nil
}

func matches(value scan.Token, spec *match.Spec) bool {
	if value.Kind == scan.Null {
		return spec.MatchesNull()
	}
	return spec.MatchesText(value.Text())
}
