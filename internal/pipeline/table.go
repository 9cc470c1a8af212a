package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-cli/internal/model"
)

// FillFromOrders bridges the normalized invoice to external order records.
// A missing PO number is filled only when exactly one purchase order for
// the vendor falls within the match window of the invoice date and shares a
// SKU with the invoice; ambiguity leaves the field unset. Once a PO number
// is known and the line items are not fully SKU-populated, they are
// replaced wholesale with the matching delivery note's items. The returned
// flag tells the decision stage that order-grade reference data was
// available.
func (p *Pipeline) FillFromOrders(ctx context.Context, inv *model.Invoice, res *ApplyResult) (bool, error) {
	filled := false

	if res.Normalized.PONumber == "" {
		poNumber, err := p.autoMatchPO(ctx, inv.Vendor, &res.Normalized)
		if err != nil {
			return false, err
		}
		if poNumber != "" {
			res.Normalized.PONumber = poNumber
			res.Reasoning = append(res.Reasoning,
				"PO auto-filled: single matching PO within match window and matching item.")
			filled = true
		}
	}

	if res.Normalized.PONumber != "" && !allItemsHaveSKU(res.Normalized.LineItems) {
		dn, err := p.orders.GetDeliveryNoteByPO(ctx, res.Normalized.PONumber)
		if err != nil {
			return filled, eris.Wrapf(err, "table: delivery note for %s", res.Normalized.PONumber)
		}
		if dn != nil {
			res.Normalized.LineItems = itemsFromDeliveryNote(dn)
			res.Reasoning = append(res.Reasoning, "Line items filled from Delivery Note.")
			filled = true
		}
	}

	return filled, nil
}

// autoMatchPO returns the PO number when exactly one candidate qualifies,
// empty otherwise. Several equally-qualifying candidates are never guessed
// among.
func (p *Pipeline) autoMatchPO(ctx context.Context, vendor string, fields *model.InvoiceFields) (string, error) {
	invoiceDate, ok := parseFlexibleDate(fields.InvoiceDate)
	if !ok {
		return "", nil
	}

	pos, err := p.orders.GetPurchaseOrdersByVendor(ctx, vendor)
	if err != nil {
		return "", eris.Wrapf(err, "table: purchase orders for %s", vendor)
	}

	window := float64(p.cfg.Pipeline.POMatchWindowDays)
	var matches []model.PurchaseOrder
	for _, po := range pos {
		poDate, ok := parseFlexibleDate(po.Date)
		if !ok || daysBetween(invoiceDate, poDate) > window {
			continue
		}
		if sharesSKU(fields.LineItems, po.Items) {
			matches = append(matches, po)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0].PONumber, nil
	case 0:
		return "", nil
	default:
		zap.L().Debug("table: ambiguous PO match, leaving unresolved",
			zap.String("vendor", vendor), zap.Int("candidates", len(matches)))
		return "", nil
	}
}

func sharesSKU(items []model.LineItem, poItems []model.PurchaseOrderItem) bool {
	for _, li := range items {
		if li.SKU == "" {
			continue
		}
		for _, pi := range poItems {
			if pi.SKU == li.SKU {
				return true
			}
		}
	}
	return false
}

func allItemsHaveSKU(items []model.LineItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, li := range items {
		if li.SKU == "" {
			return false
		}
	}
	return true
}

func itemsFromDeliveryNote(dn *model.DeliveryNote) []model.LineItem {
	items := make([]model.LineItem, 0, len(dn.Items))
	for _, di := range dn.Items {
		qty := di.QtyDelivered
		if qty == 0 {
			qty = di.Qty
		}
		items = append(items, model.LineItem{SKU: di.SKU, Qty: qty})
	}
	return items
}
