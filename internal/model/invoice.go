package model

// Decision is the final verdict for a processed invoice.
type Decision string

const (
	DecisionApproved  Decision = "approved"
	DecisionRejected  Decision = "rejected"
	DecisionCorrected Decision = "corrected"
)

// IsApproval reports whether the decision counts toward the approval tally
// in resolution memory. An accepted system correction is an approval.
func (d Decision) IsApproval() bool {
	return d == DecisionApproved || d == DecisionCorrected
}

// LineItem is a single invoice line.
type LineItem struct {
	SKU         string  `json:"sku,omitempty"`
	Description string  `json:"description,omitempty"`
	Qty         float64 `json:"qty"`
	UnitPrice   float64 `json:"unitPrice"`
}

// InvoiceFields holds the normalized field set of an extracted invoice.
// A working copy is corrected by the pipeline; the original extraction is
// never mutated.
type InvoiceFields struct {
	InvoiceNumber string     `json:"invoiceNumber"`
	InvoiceDate   string     `json:"invoiceDate"`
	ServiceDate   string     `json:"serviceDate,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	PONumber      string     `json:"poNumber,omitempty"`
	NetTotal      float64    `json:"netTotal"`
	TaxRate       float64    `json:"taxRate"`
	TaxTotal      float64    `json:"taxTotal"`
	GrossTotal    float64    `json:"grossTotal"`
	DiscountTerms string     `json:"discountTerms,omitempty"`
	LineItems     []LineItem `json:"lineItems"`
}

// Clone returns a deep copy of the field set.
func (f InvoiceFields) Clone() InvoiceFields {
	out := f
	out.LineItems = make([]LineItem, len(f.LineItems))
	copy(out.LineItems, f.LineItems)
	return out
}

// InvoiceContext records run provenance. It is appended to at each pipeline
// stage and is the only part of an invoice the pipeline mutates in place.
type InvoiceContext struct {
	DetectedDuplicate bool     `json:"detectedDuplicate,omitempty"`
	HumanApproved     bool     `json:"humanApproved,omitempty"`
	FromHumanRun      bool     `json:"fromHumanRun,omitempty"`
	FinalDecision     Decision `json:"finalDecision,omitempty"`
}

// Invoice is an already-extracted invoice record as delivered by the
// extraction collaborator.
type Invoice struct {
	InvoiceID  string         `json:"invoiceId"`
	Vendor     string         `json:"vendor"`
	Fields     InvoiceFields  `json:"fields"`
	RawText    string         `json:"rawText"`
	Confidence float64        `json:"confidence"`
	Context    InvoiceContext `json:"context,omitempty"`
}

// HumanFieldCorrection is one reviewed field change from the human feed.
type HumanFieldCorrection struct {
	Field  string `json:"field"`
	From   any    `json:"from"`
	To     any    `json:"to"`
	Reason string `json:"reason"`
}

// HumanCorrection is one entry of the external human correction feed,
// applied to an invoice before a trusted learning pass.
type HumanCorrection struct {
	InvoiceID     string                 `json:"invoiceId"`
	Vendor        string                 `json:"vendor"`
	Corrections   []HumanFieldCorrection `json:"corrections"`
	FinalDecision Decision               `json:"finalDecision"`
}
