package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cuemby/autoscaler/pkg/manager"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Print the compiled schedule for a date",
	Long: `Compile the plan store for one date and print, per app, every minute
at which the planned formation changes. Defaults to today in
AUTOSCALER_TIMEZONE.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		day := time.Now().In(cfg.Location)
		if s, _ := cmd.Flags().GetString("date"); s != "" {
			day, err = time.ParseInLocation(time.DateOnly, s, cfg.Location)
			if err != nil {
				return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", s)
			}
		}

		store, err := openStore(cfg)()
		if err != nil {
			return fmt.Errorf("failed to open plan store: %w", err)
		}
		defer store.Close()

		snap, err := manager.Load(store, day)
		if err != nil {
			return err
		}

		fmt.Printf("%s (%s)", snap.Date, snap.Weekday)
		if snap.Holiday {
			fmt.Print(" holiday: default formations all day")
		}
		fmt.Println()
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "APP\tPLATFORM\tFROM\tFORMATION\tTYPE\tSIZE\tQUANTITY")
		for _, app := range snap.Apps {
			for _, tr := range app.Schedule.Transitions() {
				f := snap.Formations[tr.Formation]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
					app.App.AppName, app.App.Platform, tr.Clock(), f.ID, f.Type, f.Size, f.Quantity)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}

		for _, refErr := range snap.Errors {
			fmt.Fprintf(os.Stderr, "warning: %v\n", refErr)
		}
		return nil
	},
}

func init() {
	compileCmd.Flags().String("date", "", "Date to compile (YYYY-MM-DD)")
}
