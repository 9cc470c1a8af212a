package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-cli/internal/model"
)

var (
	correctInvoices string
	correctFeed     string
)

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Apply human review corrections and run trusted learning",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		invoices, err := loadInvoices(correctInvoices)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(correctFeed)
		if err != nil {
			return eris.Wrapf(err, "read corrections %s", correctFeed)
		}
		var feed []model.HumanCorrection
		if err := json.Unmarshal(data, &feed); err != nil {
			return eris.Wrapf(err, "parse corrections %s", correctFeed)
		}

		byID := make(map[string]*model.Invoice, len(invoices))
		for i := range invoices {
			byID[invoices[i].InvoiceID] = &invoices[i]
		}

		results := make([]*model.ProcessResult, 0, len(feed))
		for _, corr := range feed {
			inv, ok := byID[corr.InvoiceID]
			if !ok {
				zap.L().Warn("correction references unknown invoice", zap.String("invoice", corr.InvoiceID))
				continue
			}
			res, err := env.Pipeline.ProcessCorrection(ctx, inv, corr)
			if err != nil {
				zap.L().Error("correction failed",
					zap.String("invoice", corr.InvoiceID),
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

func init() {
	correctCmd.Flags().StringVar(&correctInvoices, "input", "invoices.json", "path to extracted invoice JSON feed")
	correctCmd.Flags().StringVar(&correctFeed, "corrections", "corrections.json", "path to human correction JSON feed")
	rootCmd.AddCommand(correctCmd)
}
