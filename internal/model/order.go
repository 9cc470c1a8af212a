package model

// PurchaseOrderItem is a single ordered position on a purchase order.
type PurchaseOrderItem struct {
	SKU       string  `json:"sku"`
	Qty       float64 `json:"qty"`
	UnitPrice float64 `json:"unitPrice"`
}

// PurchaseOrder is an immutable reference record from the order collaborator.
type PurchaseOrder struct {
	PONumber string              `json:"poNumber"`
	Vendor   string              `json:"vendor"`
	Date     string              `json:"date"`
	Items    []PurchaseOrderItem `json:"items"`
}

// DeliveryNoteItem is a delivered position on a delivery note. QtyDelivered
// may be zero when only the ordered quantity is known.
type DeliveryNoteItem struct {
	SKU          string  `json:"sku"`
	QtyDelivered float64 `json:"qtyDelivered"`
	Qty          float64 `json:"qty,omitempty"`
}

// DeliveryNote is an immutable reference record linked to a purchase order.
type DeliveryNote struct {
	DNNumber string             `json:"dnNumber"`
	PONumber string             `json:"poNumber"`
	Vendor   string             `json:"vendor"`
	Date     string             `json:"date"`
	Items    []DeliveryNoteItem `json:"items"`
}
