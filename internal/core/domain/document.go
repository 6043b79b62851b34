package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EntityID identifies a server-side entity. The backend emits numeric ids in
// bodies and string keys in status maps, so both forms decode to the same value.
type EntityID string

func (id *EntityID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = EntityID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("entity id: %w", err)
	}
	*id = EntityID(n.String())
	return nil
}

func (id EntityID) String() string { return string(id) }

// IngestionStatus is the lifecycle state of a server-side ingestion task.
// The empty value means no status has been observed yet.
type IngestionStatus string

const (
	StatusAbsent    IngestionStatus = ""
	StatusUnknown   IngestionStatus = "unknown"
	StatusPending   IngestionStatus = "pending"
	StatusRunning   IngestionStatus = "running"
	StatusCompleted IngestionStatus = "completed"
	StatusFailed    IngestionStatus = "failed"
)

// ParseStatus maps a backend status string onto the known states.
// Unrecognised non-empty values become StatusUnknown.
func ParseStatus(s string) IngestionStatus {
	switch v := IngestionStatus(strings.ToLower(strings.TrimSpace(s))); v {
	case StatusAbsent, StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusUnknown:
		return v
	default:
		return StatusUnknown
	}
}

func (s *IngestionStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("ingestion status: %w", err)
	}
	*s = ParseStatus(raw)
	return nil
}

// Terminal reports whether no further transitions are expected.
func (s IngestionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document is a stored document as listed by the backend, plus the locally
// merged ingestion status.
type Document struct {
	ID          EntityID        `json:"id"`
	Filename    string          `json:"filename"`
	ContentType string          `json:"content_type,omitempty"`
	OwnerID     EntityID        `json:"owner_id,omitempty"`
	UploadedAt  *time.Time      `json:"uploaded_at,omitempty"`
	Status      IngestionStatus `json:"ingestion_status,omitempty"`
}

// StatusEntry is one value of a status map.
type StatusEntry struct {
	Status IngestionStatus `json:"status"`
	Detail string          `json:"detail,omitempty"`
}

// StatusMap is a transient snapshot of remote statuses keyed by entity id.
type StatusMap map[EntityID]StatusEntry

// Restrict returns the subset of m whose keys are in ids.
func (m StatusMap) Restrict(ids []EntityID) StatusMap {
	out := make(StatusMap, len(ids))
	for _, id := range ids {
		if entry, ok := m[id]; ok {
			out[id] = entry
		}
	}
	return out
}

// MergeStatuses returns a copy of docs where every document whose id is a key
// of m carries the mapped status. Documents missing from m keep their
// previous status. Only the Status field is ever written.
func MergeStatuses(docs []Document, m StatusMap) []Document {
	out := make([]Document, len(docs))
	copy(out, docs)
	for i := range out {
		if entry, ok := m[out[i].ID]; ok {
			out[i].Status = entry.Status
		}
	}
	return out
}

// MergeEntries returns a copy of tasks with every entry of m applied.
// Tasks missing from m are kept as they were.
func MergeEntries(tasks, m StatusMap) StatusMap {
	out := make(StatusMap, len(tasks)+len(m))
	for id, entry := range tasks {
		out[id] = entry
	}
	for id, entry := range m {
		out[id] = entry
	}
	return out
}

// QAAnswer is the response of the question-answering endpoint.
type QAAnswer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources,omitempty"`
}
