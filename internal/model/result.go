package model

import "time"

// AuditStep names the pipeline stage an audit entry belongs to.
type AuditStep string

const (
	AuditStepRecall AuditStep = "recall"
	AuditStepApply  AuditStep = "apply"
	AuditStepDecide AuditStep = "decide"
	AuditStepLearn  AuditStep = "learn"
)

// AuditEntry is one timestamped free-text event in the per-invoice audit
// trail, with optional structured metadata for deep audit.
type AuditEntry struct {
	Step             AuditStep `json:"step"`
	Timestamp        time.Time `json:"timestamp"`
	Message          string    `json:"message"`
	InvoiceID        string    `json:"invoiceId,omitempty"`
	Vendor           string    `json:"vendor,omitempty"`
	MemoryKey        string    `json:"memoryKey,omitempty"`
	ConfidenceBefore float64   `json:"confidenceBefore,omitempty"`
	ConfidenceAfter  float64   `json:"confidenceAfter,omitempty"`
}

// ProcessResult is the output for one processed invoice.
type ProcessResult struct {
	InvoiceID           string        `json:"invoiceId"`
	Vendor              string        `json:"vendor"`
	NormalizedFields    InvoiceFields `json:"normalizedInvoice"`
	ProposedCorrections []string      `json:"proposedCorrections"`
	RequiresHumanReview bool          `json:"requiresHumanReview"`
	Reasoning           string        `json:"reasoning"`
	ConfidenceScore     float64       `json:"confidenceScore"`
	FinalDecision       Decision      `json:"finalDecision"`
	MemoryUpdates       []string      `json:"memoryUpdates"`
	AuditTrail          []AuditEntry  `json:"auditTrail"`
}
