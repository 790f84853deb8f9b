package review

import (
	"strings"

	"github.com/dshills/tribunal/internal/tools"
)

const (
	// DefaultMaxConcurrency limits parallel model calls inside one worker.
	DefaultMaxConcurrency = 4
	// DefaultChunkThreshold is the byte size above which a worker switches
	// to chunked review.
	DefaultChunkThreshold = 100000 // 100KB
)

// Chunk represents a portion of a diff to be reviewed independently.
type Chunk struct {
	Index int
	Diff  string
	Files []string
}

// SplitIntoChunks splits a diff into per-file chunks.
// Each chunk contains the diff sections for one or more files,
// staying under maxBytes per chunk unless a single file is larger.
func SplitIntoChunks(diff string, maxBytes int) []Chunk {
	sections := tools.SplitDiffSections(diff)
	if len(sections) == 0 {
		return nil
	}

	if maxBytes <= 0 {
		maxBytes = DefaultChunkThreshold
	}

	var chunks []Chunk
	var current strings.Builder
	var files []string

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Diff: current.String(), Files: files})
		current.Reset()
		files = nil
	}

	for _, sec := range sections {
		if current.Len() > 0 && current.Len()+len(sec) > maxBytes {
			flush()
		}
		current.WriteString(sec)
		if path := tools.SectionPath(sec); path != "" {
			files = append(files, path)
		}
	}
	flush()

	return chunks
}
