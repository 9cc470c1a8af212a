// Package pipeline implements the recall → apply → decide → learn flow for
// one invoice at a time. Stages are pure functions of the invoice and the
// recalled memory except Learn and the duplicate detector, which have
// persistent side effects. Invoices are processed strictly sequentially;
// the upsert read-merge-write cycle assumes a single writer.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-cli/internal/config"
	"github.com/sells-group/invoice-cli/internal/model"
	"github.com/sells-group/invoice-cli/internal/store"
)

// Pipeline validates extracted invoices against learned vendor heuristics.
type Pipeline struct {
	cfg    *config.Config
	policy *config.Policy
	store  store.Store
	orders store.OrderLookup
	dup    *DuplicateDetector
}

// New creates a Pipeline. The order lookup may be nil, in which case the
// store serves order reference reads as well.
func New(cfg *config.Config, policy *config.Policy, st store.Store, orders store.OrderLookup) *Pipeline {
	if policy == nil {
		policy = config.DefaultPolicy()
	}
	if orders == nil {
		orders = st
	}
	return &Pipeline{
		cfg:    cfg,
		policy: policy,
		store:  st,
		orders: orders,
		dup:    NewDuplicateDetector(cfg.Pipeline.DuplicateWindowDays),
	}
}

// ResetSession clears per-session duplicate tracking.
func (p *Pipeline) ResetSession() {
	p.dup.Reset()
}

// Process runs the full pipeline for a single invoice. Infrastructure
// errors abort processing before any memory write; data problems fold into
// the decision instead.
func (p *Pipeline) Process(ctx context.Context, inv *model.Invoice) (*model.ProcessResult, error) {
	log := zap.L().With(zap.String("invoice", inv.InvoiceID), zap.String("vendor", inv.Vendor))
	log.Info("pipeline: processing invoice")

	trail := &AuditTrail{}

	recalled, err := p.Recall(ctx, inv)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: recall for %s", inv.InvoiceID)
	}
	trail.Add(model.AuditStepRecall, recallSummary(recalled))

	applyRes := p.Apply(inv, recalled)
	trail.Add(model.AuditStepApply, applySummary(applyRes))

	refFilled, err := p.FillFromOrders(ctx, inv, applyRes)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: order fill for %s", inv.InvoiceID)
	}

	decision := p.Decide(inv, recalled, applyRes, refFilled, trail)
	inv.Context.FinalDecision = decision.FinalDecision

	updates, err := p.Learn(ctx, inv, applyRes, recalled, decision.ConfidenceScore, inv.Context.HumanApproved, decision.FinalDecision)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: learn for %s", inv.InvoiceID)
	}
	for _, u := range updates {
		trail.Add(model.AuditStepLearn, u)
	}

	if err := p.store.SaveProcessedInvoice(ctx, *inv); err != nil {
		return nil, eris.Wrapf(err, "pipeline: save invoice %s", inv.InvoiceID)
	}

	log.Info("pipeline: invoice processed",
		zap.String("decision", string(decision.FinalDecision)),
		zap.Float64("confidence", decision.ConfidenceScore),
		zap.Bool("review", decision.RequiresHumanReview),
	)

	return &model.ProcessResult{
		InvoiceID:           inv.InvoiceID,
		Vendor:              inv.Vendor,
		NormalizedFields:    applyRes.Normalized,
		ProposedCorrections: applyRes.ProposedCorrections,
		RequiresHumanReview: decision.RequiresHumanReview,
		Reasoning:           decision.Reasoning,
		ConfidenceScore:     decision.ConfidenceScore,
		FinalDecision:       decision.FinalDecision,
		MemoryUpdates:       updates,
		AuditTrail:          trail.Entries(),
	}, nil
}
