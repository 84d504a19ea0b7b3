// Package scanner drives a single pass over one archive's entry stream,
// printing matched entry names or content, and computes the exit status
// across scans.
package scanner

import (
	"fmt"
	"io"

	"github.com/harrison/pkgcat/internal/archive"
	"github.com/harrison/pkgcat/internal/logger"
	"github.com/harrison/pkgcat/internal/matcher"
)

// entryState tracks how data chunks for the current entry are treated.
// It resets to stateSkip at the start of every entry and advances at
// most once to stateFirstChunk and then stateReading.
type entryState int

const (
	stateSkip entryState = iota
	stateFirstChunk
	stateReading
)

// Options control a scan.
type Options struct {
	// Quiet prints matched entry names instead of their content.
	Quiet bool
	// Binary allows printing entries whose first chunk looks binary.
	Binary bool
}

// Scan consumes the iterator to completion, writing matched names or
// content to out, and returns the number of entries whose name matched.
// Stream errors and write errors abort the scan.
func Scan(it *archive.Iterator, m *matcher.Matcher, opts Options, out io.Writer, diag *logger.Logger) (int, error) {
	state := stateSkip
	found := 0
	var current string

	for {
		ev := it.Next()
		switch ev.Kind {
		case archive.Start:
			state = stateSkip
			if !m.Match(ev.Name) {
				continue
			}
			found++
			if opts.Quiet {
				if _, err := fmt.Fprintln(out, ev.Name); err != nil {
					return found, fmt.Errorf("write output: %w", err)
				}
				continue
			}
			current = ev.Name
			state = stateFirstChunk

		case archive.Data:
			switch state {
			case stateFirstChunk:
				if isBinary(ev.Chunk) && !opts.Binary {
					state = stateSkip
					diag.Warnf("%s is a binary file -- use --binary to print", current)
					continue
				}
				if _, err := out.Write(ev.Chunk); err != nil {
					return found, fmt.Errorf("write output: %w", err)
				}
				state = stateReading
			case stateReading:
				if _, err := out.Write(ev.Chunk); err != nil {
					return found, fmt.Errorf("write output: %w", err)
				}
			case stateSkip:
				// entry did not match, or was rejected as binary
			}

		case archive.End:
			state = stateSkip

		case archive.Err:
			return found, ev.Cause

		case archive.EOF:
			return found, nil
		}
	}
}

// isBinary reports whether a first content chunk looks like binary
// data: any zero byte within its leading 512 bytes. Later chunks are
// never inspected, so a file whose nulls appear past the first chunk
// passes as text.
func isBinary(chunk []byte) bool {
	if len(chunk) > 512 {
		chunk = chunk[:512]
	}
	for _, b := range chunk {
		if b == 0 {
			return true
		}
	}
	return false
}

// Status computes one archive's exit status from its found-count. In
// literal mode the archive succeeds only if every distinct pattern was
// found; in regex mode a single match suffices.
func Status(m *matcher.Matcher, found int) int {
	if m.Regex() {
		if found != 0 {
			return 0
		}
		return 1
	}
	if found == m.PatternCount() {
		return 0
	}
	return 1
}

// Aggregator folds per-archive results into the process exit status.
//
// In the default per-archive mode each scan's status is combined with
// bitwise OR, so the run succeeds only if every archive independently
// satisfied the match rule. In cumulative mode found-counts are summed
// across archives and the match rule is applied once at the end.
// Either way, a run that scanned no archives at all succeeds vacuously.
type Aggregator struct {
	matcher    *matcher.Matcher
	cumulative bool
	status     int
	totalFound int
	scans      int
}

// NewAggregator creates an Aggregator for the given matcher. When
// cumulative is true the literal/regex success rule spans all archives
// instead of applying per archive.
func NewAggregator(m *matcher.Matcher, cumulative bool) *Aggregator {
	return &Aggregator{matcher: m, cumulative: cumulative}
}

// Add records the found-count of one completed archive scan.
func (a *Aggregator) Add(found int) {
	a.scans++
	a.totalFound += found
	a.status |= Status(a.matcher, found)
}

// Status returns the aggregate exit status for the run so far.
func (a *Aggregator) Status() int {
	if a.scans == 0 {
		return 0
	}
	if a.cumulative {
		return Status(a.matcher, a.totalFound)
	}
	return a.status
}
