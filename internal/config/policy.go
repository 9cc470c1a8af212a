package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// VendorPolicy holds per-vendor validation policy flags.
type VendorPolicy struct {
	// ServiceDateRequired marks whether a missing service date blocks
	// auto-approval for this vendor. Nil means the global default (true).
	ServiceDateRequired *bool `yaml:"service_date_required,omitempty"`
}

// PolicyDefaults holds the fallback keyword sets used by the apply stage
// when vendor memory carries none of its own.
type PolicyDefaults struct {
	FreightKeywords   []string `yaml:"freight_keywords"`
	VATInclusiveHints []string `yaml:"vat_inclusive_hints"`
	SkontoPatterns    []string `yaml:"skonto_patterns"`
}

// Policy is the vendor validation policy: compiled defaults, optionally
// overridden by a YAML policy file.
type Policy struct {
	Defaults PolicyDefaults          `yaml:"defaults"`
	Vendors  map[string]VendorPolicy `yaml:"vendors"`
}

// DefaultPolicy returns the compiled-in policy. Freight & Co invoices may
// legitimately lack a service date, so that vendor ships exempt.
func DefaultPolicy() *Policy {
	exempt := false
	return &Policy{
		Defaults: PolicyDefaults{
			FreightKeywords:   []string{"Seefracht", "Shipping"},
			VATInclusiveHints: []string{"MwSt. inkl.", "VAT included"},
			SkontoPatterns:    []string{"skonto"},
		},
		Vendors: map[string]VendorPolicy{
			"Freight & Co": {ServiceDateRequired: &exempt},
		},
	}
}

// LoadPolicy reads a policy YAML file, falling back to compiled defaults
// for any section the file omits.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "policy: read %s", path)
	}

	var wrapper struct {
		Policy Policy `yaml:"policy"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "policy: parse %s", path)
	}

	pol := wrapper.Policy
	def := DefaultPolicy()
	if len(pol.Defaults.FreightKeywords) == 0 {
		pol.Defaults.FreightKeywords = def.Defaults.FreightKeywords
	}
	if len(pol.Defaults.VATInclusiveHints) == 0 {
		pol.Defaults.VATInclusiveHints = def.Defaults.VATInclusiveHints
	}
	if len(pol.Defaults.SkontoPatterns) == 0 {
		pol.Defaults.SkontoPatterns = def.Defaults.SkontoPatterns
	}
	if pol.Vendors == nil {
		pol.Vendors = def.Vendors
	}
	return &pol, nil
}

// ServiceDateRequired reports whether the vendor requires a service date.
func (p *Policy) ServiceDateRequired(vendor string) bool {
	if vp, ok := p.Vendors[vendor]; ok && vp.ServiceDateRequired != nil {
		return *vp.ServiceDateRequired
	}
	return true
}
