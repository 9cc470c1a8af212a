// Package report writes processed-invoice review worksheets.
package report

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/invoice-cli/internal/model"
)

var reviewHeader = []string{
	"Invoice ID", "Vendor", "Invoice Number", "Invoice Date", "Service Date",
	"Currency", "PO Number", "Net Total", "Tax Total", "Gross Total",
	"Decision", "Review Required", "Confidence",
}

// WriteReviewWorkbook writes one row per processed invoice to an xlsx file
// for operator review.
func WriteReviewWorkbook(path string, invoices []model.Invoice, results map[string]model.ProcessResult) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Invoices")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range reviewHeader {
		header.AddCell().SetString(h)
	}

	for _, inv := range invoices {
		row := sheet.AddRow()
		row.AddCell().SetString(inv.InvoiceID)
		row.AddCell().SetString(inv.Vendor)
		row.AddCell().SetString(inv.Fields.InvoiceNumber)
		row.AddCell().SetString(inv.Fields.InvoiceDate)
		row.AddCell().SetString(inv.Fields.ServiceDate)
		row.AddCell().SetString(inv.Fields.Currency)
		row.AddCell().SetString(inv.Fields.PONumber)
		row.AddCell().SetFloat(inv.Fields.NetTotal)
		row.AddCell().SetFloat(inv.Fields.TaxTotal)
		row.AddCell().SetFloat(inv.Fields.GrossTotal)

		if res, ok := results[inv.InvoiceID]; ok {
			row.AddCell().SetString(string(res.FinalDecision))
			row.AddCell().SetString(fmt.Sprintf("%t", res.RequiresHumanReview))
			row.AddCell().SetFloat(res.ConfidenceScore)
		} else {
			row.AddCell().SetString("")
			row.AddCell().SetString("")
			row.AddCell().SetString("")
		}
	}

	return eris.Wrapf(f.Save(path), "report: save %s", path)
}
