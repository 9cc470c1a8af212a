package pipeline

import (
	"github.com/sells-group/invoice-cli/internal/model"
)

// DuplicateDetector tracks invoice sightings within one processing session,
// keyed by vendor|invoiceNumber. It is owned by the pipeline rather than
// being process-global so independent runs cannot contaminate each other.
type DuplicateDetector struct {
	windowDays float64
	seen       map[string]string // key -> first-seen invoice date
}

// NewDuplicateDetector creates a detector flagging repeat sightings whose
// invoice dates fall within windowDays of each other.
func NewDuplicateDetector(windowDays int) *DuplicateDetector {
	return &DuplicateDetector{
		windowDays: float64(windowDays),
		seen:       make(map[string]string),
	}
}

// Check records the invoice sighting and reports whether it is a duplicate.
// The first sighting of a key is never a duplicate. A repeat sighting is a
// duplicate when the two dates are within the window, or when either date
// fails to parse (fail safe). Detected duplicates mark the invoice context.
func (d *DuplicateDetector) Check(inv *model.Invoice) bool {
	number := inv.Fields.InvoiceNumber
	date := inv.Fields.InvoiceDate
	if number == "" || date == "" {
		return false
	}

	key := inv.Vendor + "|" + number

	prevDate, ok := d.seen[key]
	if !ok {
		d.seen[key] = date
		return false
	}

	prev, okPrev := parseFlexibleDate(prevDate)
	curr, okCurr := parseFlexibleDate(date)
	if !okPrev || !okCurr {
		inv.Context.DetectedDuplicate = true
		return true
	}

	if daysBetween(prev, curr) <= d.windowDays {
		inv.Context.DetectedDuplicate = true
		return true
	}
	return false
}

// Reset clears all recorded sightings.
func (d *DuplicateDetector) Reset() {
	d.seen = make(map[string]string)
}
