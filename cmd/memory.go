package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/invoice-cli/internal/store"
)

var memoryVendor string

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Dump learned memory for a vendor",
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

		out := map[string][]store.MemoryRecord{}

		vendor, err := st.GetMemory(ctx, "vendor:"+memoryVendor, store.MemoryTypeVendor)
		if err != nil {
			return eris.Wrap(err, "get vendor memory")
		}
		if vendor != nil {
			out["vendor"] = []store.MemoryRecord{*vendor}
		}

		corrections, err := st.ListMemoryByPrefix(ctx, "correction:"+memoryVendor, store.MemoryTypeCorrection)
		if err != nil {
			return eris.Wrap(err, "list correction memory")
		}
		out["corrections"] = corrections

		resolutions, err := st.ListMemoryByPrefix(ctx, "resolution:"+memoryVendor, store.MemoryTypeResolution)
		if err != nil {
			return eris.Wrap(err, "list resolution memory")
		}
		out["resolutions"] = resolutions

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(out), "encode memory")
	},
}

func init() {
	memoryCmd.Flags().StringVar(&memoryVendor, "vendor", "", "vendor name")
	memoryCmd.MarkFlagRequired("vendor")
	rootCmd.AddCommand(memoryCmd)
}
