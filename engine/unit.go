// Package engine drives a WorkUnit's chunks through the external transform
// with bounded concurrency, retries, and cache consultation, then
// reassembles the results in original order.
package engine

import (
	"strings"

	"github.com/google/uuid"

	"github.com/JoseRFJuniorLLMs/Googolplex-Books/cache"
)

// UnitStatus is the aggregate state of a WorkUnit.
type UnitStatus string

const (
	UnitPending UnitStatus = "pending"
	UnitPartial UnitStatus = "partial"
	UnitDone    UnitStatus = "done"
)

// ChunkStatus is the state of a single chunk.
type ChunkStatus string

const (
	ChunkPending  ChunkStatus = "pending"
	ChunkInFlight ChunkStatus = "inflight"
	ChunkDone     ChunkStatus = "done"
	ChunkFailed   ChunkStatus = "failed"
)

// Chunk is the atomic unit of transformation and caching. Index defines
// reassembly order regardless of completion order.
type Chunk struct {
	Index       int
	Content     string
	Fingerprint cache.Fingerprint
	Status      ChunkStatus
	Attempts    int
	Result      string
}

// WorkUnit is one logical document to be transformed end to end.
type WorkUnit struct {
	ID       string
	Kind     string
	Language string
	Chunks   []*Chunk
	Status   UnitStatus
}

// NewWorkUnit splits content immediately and assigns a fresh ID.
func NewWorkUnit(kind, language, content string, maxChunkSize int) *WorkUnit {
	parts := Split(content, maxChunkSize)
	chunks := make([]*Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = &Chunk{Index: i, Content: p, Status: ChunkPending}
	}
	return &WorkUnit{
		ID:       uuid.NewString(),
		Kind:     kind,
		Language: language,
		Chunks:   chunks,
		Status:   UnitPending,
	}
}

// Output returns the in-order concatenation of chunk results. The boolean
// reports completeness: true only when every chunk reached done.
func (u *WorkUnit) Output() (string, bool) {
	var sb strings.Builder
	complete := true
	for _, c := range u.Chunks {
		if c.Status != ChunkDone {
			complete = false
			continue
		}
		sb.WriteString(c.Result)
	}
	return sb.String(), complete
}

// refreshStatus recomputes the aggregate status from the chunks.
func (u *WorkUnit) refreshStatus() {
	done := 0
	touched := 0
	for _, c := range u.Chunks {
		switch c.Status {
		case ChunkDone:
			done++
			touched++
		case ChunkFailed:
			touched++
		}
	}
	switch {
	case len(u.Chunks) > 0 && done == len(u.Chunks):
		u.Status = UnitDone
	case touched > 0:
		u.Status = UnitPartial
	default:
		u.Status = UnitPending
	}
}
