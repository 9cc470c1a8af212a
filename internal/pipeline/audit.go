package pipeline

import (
	"time"

	"github.com/sells-group/invoice-cli/internal/model"
)

// AuditTrail collects the timestamped per-step audit entries for one
// invoice run.
type AuditTrail struct {
	entries []model.AuditEntry
}

// Add appends a free-text entry for the given step.
func (t *AuditTrail) Add(step model.AuditStep, message string) {
	t.entries = append(t.entries, model.AuditEntry{
		Step:      step,
		Timestamp: time.Now().UTC(),
		Message:   message,
	})
}

// AddEntry appends an entry carrying structured metadata. Step and message
// must be set by the caller; the timestamp is filled in here.
func (t *AuditTrail) AddEntry(entry model.AuditEntry) {
	entry.Timestamp = time.Now().UTC()
	t.entries = append(t.entries, entry)
}

// Entries returns the collected entries in insertion order.
func (t *AuditTrail) Entries() []model.AuditEntry {
	return t.entries
}
