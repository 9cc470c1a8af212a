package pipeline

import (
	"strings"

	"github.com/sells-group/invoice-cli/internal/memory"
	"github.com/sells-group/invoice-cli/internal/model"
)

// DecisionOutput is the final verdict for one invoice run.
type DecisionOutput struct {
	VendorName          string
	InvoiceID           string
	RequiresHumanReview bool
	Reasoning           string
	ConfidenceScore     float64
	FinalDecision       model.Decision
}

// Decide combines apply confidence, duplicate status, mandatory-field
// completeness, and PO-matching strength into the final verdict. Branches
// short-circuit: the first applicable one wins.
func (p *Pipeline) Decide(inv *model.Invoice, recalled *RecalledMemory, applyRes *ApplyResult, refFilled bool, trail *AuditTrail) *DecisionOutput {
	base := inv.Confidence
	if base == 0 {
		base = 0.5
	}
	tracker := NewConfidenceTracker(base)

	// Duplicates block everything downstream, learning included.
	if p.dup.Check(inv) {
		tracker.Apply(SignalDuplicate)
		trail.Add(model.AuditStepDecide, "blocking auto-accept and learning; invoice detected as duplicate.")
		return &DecisionOutput{
			VendorName:          inv.Vendor,
			InvoiceID:           inv.InvoiceID,
			RequiresHumanReview: true,
			FinalDecision:       model.DecisionRejected,
			Reasoning:           "Duplicate invoice detected (same vendor + invoiceNumber + close dates).",
			ConfidenceScore:     tracker.Value(),
		}
	}

	if len(applyRes.ProposedCorrections) > 0 {
		tracker.Apply(SignalAutoCorrect)
	} else {
		tracker.Apply(SignalAutoAccept)
	}
	score := tracker.Value()

	hasRejectionHistory := false
	for _, r := range recalled.Resolutions {
		if r.Data.LastDecision == model.DecisionRejected {
			hasRejectionHistory = true
			break
		}
	}

	filled := applyRes.FilledByMemorySet()
	serviceDateMissing := p.policy.ServiceDateRequired(inv.Vendor) &&
		inv.Fields.ServiceDate == "" && !filled["serviceDate"]
	invoiceDateMissing := inv.Fields.InvoiceDate == "" && !filled["invoiceDate"]
	hasMissingMandatory := serviceDateMissing || invoiceDateMissing

	hasPOSuggestion := refFilled || correctionsMention(applyRes.ProposedCorrections, "suggested po")
	vatAmbiguous := correctionsMention(applyRes.ProposedCorrections, "vat")

	hasStrongPOStrategy := recalled.Vendor != nil &&
		recalled.Vendor.Data.POMatchingStrategy == memory.POStrategySinglePrefer &&
		recalled.Vendor.Confidence >= p.cfg.Pipeline.StrongPOConfidence

	approveThreshold := p.cfg.Pipeline.AutoApproveThreshold
	hasCorrections := len(applyRes.ProposedCorrections) > 0

	requiresHumanReview := true
	var finalDecision model.Decision
	var decisionReason string

	switch {
	case hasRejectionHistory:
		finalDecision = model.DecisionCorrected
		decisionReason = "Similar discrepancies were previously rejected by humans; review required."
	case hasMissingMandatory:
		finalDecision = model.DecisionCorrected
		decisionReason = "Mandatory field still missing after memory-based correction; review required."
	case hasPOSuggestion && !hasStrongPOStrategy:
		finalDecision = model.DecisionCorrected
		decisionReason = "Order reference data filled fields but no trusted PO strategy exists for this vendor."
	case hasPOSuggestion && hasStrongPOStrategy && score >= p.cfg.Pipeline.StrongPOConfidence:
		finalDecision = model.DecisionApproved
		requiresHumanReview = false
		decisionReason = "PO fill backed by a trusted single-po-prefer strategy; review waived."
	case vatAmbiguous && score < approveThreshold:
		finalDecision = model.DecisionCorrected
		decisionReason = "VAT-related correction with moderate confidence; review required."
	case score >= approveThreshold:
		if hasCorrections {
			finalDecision = model.DecisionCorrected
			decisionReason = "High confidence memory-based corrections applied."
		} else {
			finalDecision = model.DecisionApproved
			requiresHumanReview = false
			decisionReason = "High confidence, no discrepancies detected."
		}
	default:
		finalDecision = model.DecisionCorrected
		decisionReason = "Low confidence or first-time correction; human review required."
	}

	trail.Add(model.AuditStepDecide, decisionReason)

	parts := make([]string, 0, 2)
	if joined := strings.Join(applyRes.Reasoning, ", "); joined != "" {
		parts = append(parts, joined)
	}
	parts = append(parts, decisionReason)

	return &DecisionOutput{
		VendorName:          inv.Vendor,
		InvoiceID:           inv.InvoiceID,
		RequiresHumanReview: requiresHumanReview,
		Reasoning:           strings.Join(parts, ", "),
		ConfidenceScore:     score,
		FinalDecision:       finalDecision,
	}
}

func correctionsMention(corrections []string, needle string) bool {
	for _, c := range corrections {
		if strings.Contains(strings.ToLower(c), needle) {
			return true
		}
	}
	return false
}
