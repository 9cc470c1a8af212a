package memory

import (
	"context"
	"sort"

	"github.com/sells-group/invoice-cli/internal/store"
)

// POMatchingStrategy selects how aggressively PO auto-matches for a vendor
// may be trusted by the decision stage.
type POMatchingStrategy string

const (
	POStrategySinglePrefer POMatchingStrategy = "single-po-prefer"
	POStrategyNone         POMatchingStrategy = "none"
)

// VendorMappings holds learned field-mapping heuristics for one vendor.
type VendorMappings struct {
	ServiceDateField       string   `json:"serviceDateField,omitempty"`
	DefaultCurrency        string   `json:"defaultCurrency,omitempty"`
	VATInclusiveHints      []string `json:"vatInclusiveHints,omitempty"`
	FreightSkuDescriptions []string `json:"freightSkuDescriptions,omitempty"`
	SkontoPatterns         []string `json:"skontoPatterns,omitempty"`
}

// VendorData is the payload of a vendor memory record.
type VendorData struct {
	Vendor             string             `json:"vendor"`
	Mappings           VendorMappings     `json:"mappings"`
	POMatchingStrategy POMatchingStrategy `json:"poMatchingStrategy,omitempty"`
}

func vendorKey(vendor string) string {
	return "vendor:" + vendor
}

// GetVendorMemory returns the vendor memory record or nil when absent.
func GetVendorMemory(ctx context.Context, st store.Store, vendor string) (*Record[VendorData], error) {
	rec, err := st.GetMemory(ctx, vendorKey(vendor), store.MemoryTypeVendor)
	if err != nil || rec == nil {
		return nil, err
	}
	return decode[VendorData](rec)
}

// UpsertVendorMemory merges the given data into the existing vendor record
// and applies the confidence delta (prior 0.6, clamped to [0,1]).
//
// Merge rules: array-valued mapping fields are set-unioned; serviceDateField
// is first-write-wins; defaultCurrency and poMatchingStrategy take the newer
// non-empty value, since the caller supplies the current invoice's value.
func UpsertVendorMemory(ctx context.Context, st store.Store, vendor string, newData VendorData, confidenceDelta float64, invoiceID string) (*Record[VendorData], error) {
	existing, err := GetVendorMemory(ctx, st, vendor)
	if err != nil {
		return nil, err
	}

	merged := newData
	merged.Vendor = vendor
	prior := defaultPrior

	if existing != nil {
		prior = existing.Confidence
		merged = mergeVendorData(existing.Data, newData)
		merged.Vendor = vendor
	}

	confidence := clamp(prior + confidenceDelta)
	return upsert(ctx, st, vendorKey(vendor), store.MemoryTypeVendor, merged, confidence, invoiceID)
}

func mergeVendorData(existing, incoming VendorData) VendorData {
	out := existing

	// serviceDateField: first write wins.
	if out.Mappings.ServiceDateField == "" {
		out.Mappings.ServiceDateField = incoming.Mappings.ServiceDateField
	}
	// defaultCurrency and strategy: newer non-empty value wins.
	if incoming.Mappings.DefaultCurrency != "" {
		out.Mappings.DefaultCurrency = incoming.Mappings.DefaultCurrency
	}
	if incoming.POMatchingStrategy != "" {
		out.POMatchingStrategy = incoming.POMatchingStrategy
	}

	out.Mappings.VATInclusiveHints = mergeSet(existing.Mappings.VATInclusiveHints, incoming.Mappings.VATInclusiveHints)
	out.Mappings.FreightSkuDescriptions = mergeSet(existing.Mappings.FreightSkuDescriptions, incoming.Mappings.FreightSkuDescriptions)
	out.Mappings.SkontoPatterns = mergeSet(existing.Mappings.SkontoPatterns, incoming.Mappings.SkontoPatterns)

	return out
}

// mergeSet unions two string slices, deduplicated and sorted so repeated
// merges are byte-stable regardless of input order.
func mergeSet(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
