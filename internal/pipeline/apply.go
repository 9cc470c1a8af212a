package pipeline

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/currency"

	"github.com/sells-group/invoice-cli/internal/memory"
	"github.com/sells-group/invoice-cli/internal/model"
)

// fallbackVendorConfidence weights contributions when a rule fires without
// a recalled vendor record backing it.
const fallbackVendorConfidence = 0.4

// ApplyResult holds the corrected field set plus the structured reasoning
// produced by the apply stage.
type ApplyResult struct {
	Normalized             model.InvoiceFields
	ProposedCorrections    []string
	Reasoning              []string
	ConfidenceContribution float64
	FilledByMemory         []string
}

// FilledByMemorySet returns the filled field names as a lookup set.
func (r *ApplyResult) FilledByMemorySet() map[string]bool {
	set := make(map[string]bool, len(r.FilledByMemory))
	for _, f := range r.FilledByMemory {
		set[f] = true
	}
	return set
}

// Apply turns recalled memory into concrete field corrections. It operates
// on a deep copy of the invoice fields; the original extraction is kept for
// audit. Rules fire independently, so one invoice may trigger several. The
// total confidence contribution is capped so a single invoice cannot
// saturate the score.
func (p *Pipeline) Apply(inv *model.Invoice, recalled *RecalledMemory) *ApplyResult {
	res := &ApplyResult{
		Normalized: inv.Fields.Clone(),
	}

	var vendorData *memory.VendorData
	vendorConfidence := fallbackVendorConfidence
	if recalled.Vendor != nil {
		vendorData = &recalled.Vendor.Data
		vendorConfidence = recalled.Vendor.Confidence
	}

	p.applyServiceDate(inv, res, vendorData, vendorConfidence)
	p.applyCurrency(inv, res, vendorData)
	p.applyFreightSKU(res, vendorData, vendorConfidence)
	p.applySkontoTerms(inv, res, vendorData)
	p.applyVATRecompute(inv, res, recalled, vendorData, vendorConfidence)

	// Transparency: list every recalled pattern, used this run or not.
	for _, corr := range recalled.Corrections {
		res.Reasoning = append(res.Reasoning,
			fmt.Sprintf("Correction pattern %q available (confidence %.2f).", corr.Data.PatternID, corr.Confidence))
	}

	if cap := p.cfg.Pipeline.ApplyContributionCap; res.ConfidenceContribution > cap {
		res.ConfidenceContribution = cap
	}
	return res
}

// applyServiceDate fills a missing service date from raw text when vendor
// memory names a source field. Without vendor memory the missing mandatory
// field is flagged instead; the pipeline never guesses.
func (p *Pipeline) applyServiceDate(inv *model.Invoice, res *ApplyResult, vendorData *memory.VendorData, vendorConfidence float64) {
	if res.Normalized.ServiceDate != "" {
		return
	}

	if vendorData == nil || vendorData.Mappings.ServiceDateField == "" {
		res.ProposedCorrections = append(res.ProposedCorrections,
			"Mandatory field serviceDate missing; no vendor memory present.")
		res.Reasoning = append(res.Reasoning,
			"Mandatory field serviceDate missing and no prior vendor memory exists.")
		return
	}

	match := serviceDatePattern.FindString(inv.RawText)
	if match == "" {
		return
	}

	res.Normalized.ServiceDate = match
	res.FilledByMemory = append(res.FilledByMemory, "serviceDate")
	res.ProposedCorrections = append(res.ProposedCorrections,
		fmt.Sprintf("serviceDate auto-filled from %q.", vendorData.Mappings.ServiceDateField))
	res.Reasoning = append(res.Reasoning,
		fmt.Sprintf("Vendor memory maps %q to serviceDate with sufficient confidence.", vendorData.Mappings.ServiceDateField))
	res.ConfidenceContribution += vendorConfidence * 0.3
}

// applyCurrency adopts the vendor's default currency when it literally
// appears in the raw text and is a valid ISO 4217 unit. Informational only:
// the inference carries no confidence contribution until it is learned.
func (p *Pipeline) applyCurrency(inv *model.Invoice, res *ApplyResult, vendorData *memory.VendorData) {
	if res.Normalized.Currency != "" || vendorData == nil {
		return
	}
	def := vendorData.Mappings.DefaultCurrency
	if def == "" || !strings.Contains(inv.RawText, def) {
		return
	}
	if _, err := currency.ParseISO(def); err != nil {
		zap.L().Debug("apply: learned default currency is not ISO 4217; ignoring",
			zap.String("vendor", inv.Vendor), zap.String("currency", def))
		return
	}

	res.Normalized.Currency = def
	res.ProposedCorrections = append(res.ProposedCorrections,
		fmt.Sprintf("Currency inferred from rawText as %s.", def))
	res.Reasoning = append(res.Reasoning, "Currency inferred from rawText but not yet learned.")
}

// applyFreightSKU assigns the FREIGHT SKU to line items whose description
// matches a freight keyword. Contributions accumulate per matching item;
// only the stage-level cap bounds them.
func (p *Pipeline) applyFreightSKU(res *ApplyResult, vendorData *memory.VendorData, vendorConfidence float64) {
	patterns := p.policy.Defaults.FreightKeywords
	if vendorData != nil && len(vendorData.Mappings.FreightSkuDescriptions) > 0 {
		patterns = vendorData.Mappings.FreightSkuDescriptions
	}

	for i := range res.Normalized.LineItems {
		item := &res.Normalized.LineItems[i]
		if item.SKU != "" || item.Description == "" {
			continue
		}
		if !containsAny(item.Description, patterns) {
			continue
		}
		item.SKU = "FREIGHT"
		res.ProposedCorrections = append(res.ProposedCorrections,
			fmt.Sprintf("Line item %q mapped to SKU FREIGHT.", item.Description))
		res.Reasoning = append(res.Reasoning, "Freight-like description matched vendor freight patterns.")
		res.ConfidenceContribution += vendorConfidence * 0.25
	}
}

// applySkontoTerms copies the first skonto line from raw text into the
// discount terms field.
func (p *Pipeline) applySkontoTerms(inv *model.Invoice, res *ApplyResult, vendorData *memory.VendorData) {
	patterns := p.policy.Defaults.SkontoPatterns
	if vendorData != nil && len(vendorData.Mappings.SkontoPatterns) > 0 {
		patterns = vendorData.Mappings.SkontoPatterns
	}
	if !containsAny(inv.RawText, patterns) {
		return
	}

	for _, line := range strings.Split(inv.RawText, "\n") {
		if strings.Contains(strings.ToLower(line), "skonto") {
			res.Normalized.DiscountTerms = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
			res.Reasoning = append(res.Reasoning, "Skonto terms extracted from raw text.")
			return
		}
	}
}

// applyVATRecompute recomputes gross and tax totals when the raw text hints
// that totals include VAT. Without a confident prior correction pattern the
// ambiguity is only flagged; acting on an unverified hint could corrupt
// correct totals.
func (p *Pipeline) applyVATRecompute(inv *model.Invoice, res *ApplyResult, recalled *RecalledMemory, vendorData *memory.VendorData, vendorConfidence float64) {
	hints := p.policy.Defaults.VATInclusiveHints
	if vendorData != nil && len(vendorData.Mappings.VATInclusiveHints) > 0 {
		hints = vendorData.Mappings.VATInclusiveHints
	}
	if !containsAny(inv.RawText, hints) {
		return
	}
	if res.Normalized.GrossTotal <= 0 || res.Normalized.TaxRate <= 0 {
		return
	}

	var vatPattern *memory.Record[memory.CorrectionData]
	for i := range recalled.Corrections {
		c := &recalled.Corrections[i]
		if c.Data.PatternID == "vat_inclusive" && c.Confidence >= p.cfg.Pipeline.MemoryConfidenceMin {
			vatPattern = c
			break
		}
	}

	if vatPattern == nil {
		res.ProposedCorrections = append(res.ProposedCorrections,
			"VAT-inclusive indication detected; totals may need recompute (no prior correction memory).")
		res.Reasoning = append(res.Reasoning,
			"VAT inclusive indication with no prior correction memory (recompute may be false positive).")
		return
	}

	gross := round2(res.Normalized.NetTotal * (1 + res.Normalized.TaxRate))
	tax := round2(gross - res.Normalized.NetTotal)

	if gross != res.Normalized.GrossTotal || tax != res.Normalized.TaxTotal {
		res.Normalized.GrossTotal = gross
		res.Normalized.TaxTotal = tax
		res.ProposedCorrections = append(res.ProposedCorrections,
			"VAT-inclusive totals detected; recomputed gross and tax.")
		res.Reasoning = append(res.Reasoning,
			fmt.Sprintf("Correction pattern \"vat_inclusive\" available (confidence %.2f).", vatPattern.Confidence))
	} else {
		res.ProposedCorrections = append(res.ProposedCorrections,
			"VAT-inclusive totals detected; recomputed gross and tax are already correct.")
		res.Reasoning = append(res.Reasoning,
			"Correction pattern \"vat_inclusive\" confirmed existing totals.")
	}
	res.ConfidenceContribution += vendorConfidence * 0.3
}

func applySummary(res *ApplyResult) string {
	return fmt.Sprintf("Applied %d memory-based corrections.", len(res.ProposedCorrections))
}

// containsAny reports whether haystack contains any needle,
// case-insensitively.
func containsAny(haystack string, needles []string) bool {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
