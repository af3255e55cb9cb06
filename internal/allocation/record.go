// internal/allocation/record.go
package allocation

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus is the lifecycle state of one on-chain write attempt.
type SubmissionStatus string

const (
	StatusPending   SubmissionStatus = "pending"
	StatusConfirmed SubmissionStatus = "confirmed"
	StatusFailed    SubmissionStatus = "failed"
)

// SubmissionRecord captures one in-flight or completed allocation update.
// Once a record reaches a terminal status it is never mutated again.
type SubmissionRecord struct {
	ID          string           `json:"id"`
	Hash        string           `json:"tx_hash,omitempty"`
	Status      SubmissionStatus `json:"status"`
	Requested   Set              `json:"requested"` // the set submitted to the chain
	Prior       Set              `json:"prior"`     // the set believed authoritative at submission time
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt time.Time        `json:"completed_at,omitempty"`
}

func newSubmissionRecord(requested, prior Set) *SubmissionRecord {
	return &SubmissionRecord{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		Requested: requested.Clone(),
		Prior:     prior.Clone(),
		CreatedAt: time.Now().UTC(),
	}
}

func (r *SubmissionRecord) complete(status SubmissionStatus, errMsg string) {
	r.Status = status
	r.Error = errMsg
	r.CompletedAt = time.Now().UTC()
}

// Terminal reports whether the record has reached a final status.
func (r *SubmissionRecord) Terminal() bool {
	return r.Status == StatusConfirmed || r.Status == StatusFailed
}

// CSVHeaders returns the column names used by submission exports.
func CSVHeaders() []string {
	return []string{
		"id", "tx_hash", "status", "requested", "prior",
		"error", "created_at", "completed_at",
	}
}

// ToCSV renders the record as one CSV row matching CSVHeaders.
func (r *SubmissionRecord) ToCSV() []string {
	completed := ""
	if !r.CompletedAt.IsZero() {
		completed = r.CompletedAt.Format(time.RFC3339)
	}
	return []string{
		r.ID,
		r.Hash,
		string(r.Status),
		r.Requested.String(),
		r.Prior.String(),
		r.Error,
		r.CreatedAt.Format(time.RFC3339),
		completed,
	}
}
