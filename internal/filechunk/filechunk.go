// Package filechunk splits an uploaded file's extracted text into
// chunk-sized segments for ingestion, using the same boundary-and-size
// heuristic the conversation chunker used: break on natural section
// markers first, then fall back to a hard size cap.
package filechunk

import (
	"regexp"
	"strings"
)

const (
	// DefaultMaxChunkLength caps a single chunk's length; content past
	// this is forced onto a new chunk even with no natural boundary.
	DefaultMaxChunkLength = 2000
	minParagraphBreak     = 200
)

var boundaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^#{1,6}\s`),    // markdown headings
	regexp.MustCompile(`^---|^===`),    // section markers
	regexp.MustCompile(`^\d+\.\s`),     // numbered lists
}

// Split breaks text into line-aligned segments, preferring to break at
// a heading, section marker, or blank-line paragraph gap. A segment is
// closed once its byte length passes maxLen, so it can exceed maxLen
// by the line that crossed it; lines are never cut. maxLen <= 0 uses
// DefaultMaxChunkLength.
func Split(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkLength
	}

	var segments []string
	var current strings.Builder
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		isBoundary := false
		for _, p := range boundaryPatterns {
			if p.MatchString(line) {
				isBoundary = true
				break
			}
		}

		if isBoundary && current.Len() > 0 {
			segments = append(segments, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(line)
		current.WriteByte('\n')

		if current.Len() > maxLen {
			segments = append(segments, strings.TrimSpace(current.String()))
			current.Reset()
			continue
		}

		if i < len(lines)-1 && line == "" && lines[i+1] == "" && current.Len() > minParagraphBreak {
			segments = append(segments, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	if current.Len() > 0 {
		if rest := strings.TrimSpace(current.String()); rest != "" {
			segments = append(segments, rest)
		}
	}

	out := segments[:0]
	for _, s := range segments {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
