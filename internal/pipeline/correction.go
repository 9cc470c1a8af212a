package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-cli/internal/model"
)

// ProcessCorrection replays an invoice through recall and apply, overlays
// the human reviewer's field corrections, and runs a trusted learning pass
// with the reviewer's verdict. Duplicate detection is skipped; the human
// already saw the invoice.
func (p *Pipeline) ProcessCorrection(ctx context.Context, inv *model.Invoice, corr model.HumanCorrection) (*model.ProcessResult, error) {
	log := zap.L().With(zap.String("invoice", inv.InvoiceID), zap.String("vendor", inv.Vendor))
	log.Info("pipeline: processing human correction", zap.String("decision", string(corr.FinalDecision)))

	inv.Context.FromHumanRun = true
	inv.Context.FinalDecision = corr.FinalDecision

	trail := &AuditTrail{}

	recalled, err := p.Recall(ctx, inv)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: recall for %s", inv.InvoiceID)
	}
	trail.Add(model.AuditStepRecall, recallSummary(recalled))

	// Recall reset the approval flag; the human verdict re-establishes it.
	inv.Context.HumanApproved = corr.FinalDecision.IsApproval()

	applyRes := p.Apply(inv, recalled)
	for _, fc := range corr.Corrections {
		if err := setField(&applyRes.Normalized, fc); err != nil {
			return nil, eris.Wrapf(err, "pipeline: correction for %s", inv.InvoiceID)
		}
		applyRes.ProposedCorrections = append(applyRes.ProposedCorrections,
			fmt.Sprintf("Human corrected %s: %s", fc.Field, fc.Reason))
	}
	trail.Add(model.AuditStepApply, applySummary(applyRes))

	tracker := NewConfidenceTracker(inv.Confidence)
	if corr.FinalDecision.IsApproval() {
		tracker.Apply(SignalHumanApproved)
	} else {
		tracker.Apply(SignalHumanRejected)
	}
	score := clamp01(tracker.Value() + applyRes.ConfidenceContribution)
	trail.Add(model.AuditStepDecide, fmt.Sprintf("Human verdict %s applied; confidence %.2f.", corr.FinalDecision, score))

	updates, err := p.Learn(ctx, inv, applyRes, recalled, score, inv.Context.HumanApproved, corr.FinalDecision)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: learn for %s", inv.InvoiceID)
	}
	for _, u := range updates {
		trail.Add(model.AuditStepLearn, u)
	}

	if err := p.store.SaveProcessedInvoice(ctx, *inv); err != nil {
		return nil, eris.Wrapf(err, "pipeline: save invoice %s", inv.InvoiceID)
	}

	return &model.ProcessResult{
		InvoiceID:           inv.InvoiceID,
		Vendor:              inv.Vendor,
		NormalizedFields:    applyRes.Normalized,
		ProposedCorrections: applyRes.ProposedCorrections,
		RequiresHumanReview: false,
		Reasoning:           strings.Join(applyRes.Reasoning, ", "),
		ConfidenceScore:     score,
		FinalDecision:       corr.FinalDecision,
		MemoryUpdates:       updates,
		AuditTrail:          trail.Entries(),
	}, nil
}

// setField writes one reviewed value onto the normalized field set. Field
// names follow the feed's camelCase JSON keys.
func setField(fields *model.InvoiceFields, fc model.HumanFieldCorrection) error {
	switch fc.Field {
	case "invoiceNumber":
		fields.InvoiceNumber = asString(fc.To)
	case "invoiceDate":
		fields.InvoiceDate = asString(fc.To)
	case "serviceDate":
		fields.ServiceDate = asString(fc.To)
	case "currency":
		fields.Currency = asString(fc.To)
	case "poNumber":
		fields.PONumber = asString(fc.To)
	case "discountTerms":
		fields.DiscountTerms = asString(fc.To)
	case "netTotal":
		v, err := asFloat(fc.To)
		if err != nil {
			return err
		}
		fields.NetTotal = v
	case "taxRate":
		v, err := asFloat(fc.To)
		if err != nil {
			return err
		}
		fields.TaxRate = v
	case "taxTotal":
		v, err := asFloat(fc.To)
		if err != nil {
			return err
		}
		fields.TaxTotal = v
	case "grossTotal":
		v, err := asFloat(fc.To)
		if err != nil {
			return err
		}
		fields.GrossTotal = v
	default:
		return eris.Errorf("unknown correction field %q", fc.Field)
	}
	return nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, eris.Wrapf(err, "parse numeric correction %q", n)
	default:
		return 0, eris.Errorf("non-numeric correction value %v", v)
	}
}
