package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-cli/internal/model"
	"github.com/sells-group/invoice-cli/internal/report"
)

var (
	exportVendor string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export processed invoices for a vendor to an xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		invoices, err := st.GetInvoicesByVendor(ctx, exportVendor)
		if err != nil {
			return eris.Wrap(err, "load invoices")
		}

		results := make(map[string]model.ProcessResult, len(invoices))
		for _, inv := range invoices {
			if inv.Context.FinalDecision == "" {
				continue
			}
			results[inv.InvoiceID] = model.ProcessResult{
				InvoiceID:     inv.InvoiceID,
				Vendor:        inv.Vendor,
				FinalDecision: inv.Context.FinalDecision,
			}
		}

		if err := report.WriteReviewWorkbook(exportOutput, invoices, results); err != nil {
			return err
		}

		zap.L().Info("workbook written",
			zap.String("path", exportOutput),
			zap.Int("invoices", len(invoices)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportVendor, "vendor", "", "vendor name")
	exportCmd.Flags().StringVar(&exportOutput, "output", "invoices.xlsx", "output workbook path")
	exportCmd.MarkFlagRequired("vendor")
	rootCmd.AddCommand(exportCmd)
}
