package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/invoice-cli/internal/model"
)

var (
	seedPOFile string
	seedDNFile string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load purchase order and delivery note reference data",
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

		var (
			pos []model.PurchaseOrder
			dns []model.DeliveryNote
		)

		g, _ := errgroup.WithContext(ctx)
		g.Go(func() error {
			return readJSONFile(seedPOFile, &pos)
		})
		g.Go(func() error {
			return readJSONFile(seedDNFile, &dns)
		})
		if err := g.Wait(); err != nil {
			return err
		}

		if err := st.SeedPurchaseOrders(ctx, pos); err != nil {
			return eris.Wrap(err, "seed purchase orders")
		}
		if err := st.SeedDeliveryNotes(ctx, dns); err != nil {
			return eris.Wrap(err, "seed delivery notes")
		}

		zap.L().Info("reference data seeded",
			zap.Int("purchase_orders", len(pos)),
			zap.Int("delivery_notes", len(dns)),
		)
		return nil
	},
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "read %s", path)
	}
	return eris.Wrapf(json.Unmarshal(data, v), "parse %s", path)
}

func init() {
	seedCmd.Flags().StringVar(&seedPOFile, "purchase-orders", "purchase_orders.json", "path to purchase order JSON file")
	seedCmd.Flags().StringVar(&seedDNFile, "delivery-notes", "delivery_notes.json", "path to delivery note JSON file")
	rootCmd.AddCommand(seedCmd)
}
