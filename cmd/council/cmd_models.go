package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aspendos/council/internal/config"
)

func newModelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the model catalog with rates and seat assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			seatFor := make(map[string][]string)
			for _, s := range cfg.Seats {
				seatFor[s.Primary] = append(seatFor[s.Primary], string(s.Seat))
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tCONTEXT\tIN/1K\tOUT/1K\tSEATS")
			for _, m := range cfg.Models {
				seats := ""
				if ss := seatFor[m.ID]; len(ss) > 0 {
					seats = fmt.Sprint(ss)
				}
				fmt.Fprintf(w, "%s\t%d\t$%.4f\t$%.4f\t%s\n",
					m.ID, m.ContextWindow, m.InputPer1K, m.OutputPer1K, seats)
			}
			return w.Flush()
		},
	}
	return cmd
}
