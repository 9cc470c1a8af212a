package main

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-cli/internal/model"
)

var runInput string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Validate a batch of extracted invoices",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		invoices, err := loadInvoices(runInput)
		if err != nil {
			return err
		}

		results := make([]*model.ProcessResult, 0, len(invoices))
		for i := range invoices {
			inv := &invoices[i]
			res, err := env.Pipeline.Process(ctx, inv)
			if err != nil {
				zap.L().Error("processing failed",
					zap.String("invoice", inv.InvoiceID),
					zap.Error(err),
				)
				continue
			}
			results = append(results, res)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(results), "encode results")
	},
}

// loadInvoices reads the extraction feed. Invoices without an ID get one
// assigned so every downstream record stays addressable.
func loadInvoices(path string) ([]model.Invoice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read invoices %s", path)
	}

	var invoices []model.Invoice
	if err := json.Unmarshal(data, &invoices); err != nil {
		return nil, eris.Wrapf(err, "parse invoices %s", path)
	}

	for i := range invoices {
		if invoices[i].InvoiceID == "" {
			invoices[i].InvoiceID = uuid.NewString()
		}
	}

	return invoices, nil
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "invoices.json", "path to extracted invoice JSON feed")
	rootCmd.AddCommand(runCmd)
}
