package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MelonMars/ABMMarket/internal/store"
	"github.com/MelonMars/ABMMarket/internal/util"
)

func runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List persisted runs",
		RunE: func(_ *cobra.Command, _ []string) error {
			return listRuns(limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "most recent runs to show")
	return cmd
}

func listRuns(limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("no store path configured; set store.path")
	}

	st, err := store.Open(cfg.Store.Path, util.NewLogger(cfg.App.LogLevel))
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.Runs(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded yet")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTEPS\tSEED\tINVESTORS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Steps, r.Seed, r.Investors)
	}
	return tw.Flush()
}
