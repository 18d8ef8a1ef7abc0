package main

import (
	"fmt"
	"os"

	"github.com/cuemby/autoscaler/pkg/storage"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load plan documents from a YAML file into the plan store",
	Long: `Load formations, plans, app_plans and market_holidays from a YAML
file into the store at DATABASE_URL, under the DATABASE_NAME namespace.

Documents are upserted by id (app_name for app plans, year for holidays).
With --prune, formations, plans and app plans missing from FILE are deleted.
A running server picks the changes up on its next reload.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		doc, err := storage.ParseDocument(f)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}

		store, err := storage.NewBoltStore(cfg.DatabaseURL, cfg.DatabaseName, storage.Options{})
		if err != nil {
			return fmt.Errorf("failed to open plan store: %w", err)
		}
		defer store.Close()

		sum, err := storage.Import(store, doc)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Printf("✓ Imported %d formations, %d plans, %d app plans, %d holiday calendars\n",
			sum.Formations, sum.Plans, sum.AppPlans, sum.Holidays)

		if prune, _ := cmd.Flags().GetBool("prune"); prune {
			pruned, err := storage.Prune(store, doc)
			if err != nil {
				return fmt.Errorf("prune failed: %w", err)
			}
			fmt.Printf("✓ Pruned %d formations, %d plans, %d app plans\n",
				pruned.Formations, pruned.Plans, pruned.AppPlans)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().Bool("prune", false, "Delete formations, plans and app plans not listed in FILE")
}
