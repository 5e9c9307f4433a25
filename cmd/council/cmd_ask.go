package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aspendos/council/internal/models"
)

func newAskCommand() *cobra.Command {
	var seats []string
	var sessionDir string
	var timeoutSec int

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Run one council deliberation from the terminal",
		Long: `Run one council deliberation from the terminal.

Deltas are printed as they stream in, tagged by seat; the synthesis and
a per-seat summary follow once every seat is terminal.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd, sessionDir)
			if err != nil {
				return err
			}
			if timeoutSec > 0 {
				a.cfg.Tuning.SessionTimeoutSec = timeoutSec
			}

			query := strings.Join(args, " ")
			seatList := make([]models.Seat, 0, len(seats))
			for _, s := range seats {
				seatList = append(seatList, models.Seat(s))
			}

			session, err := a.orchestrator.CreateSession("", query, seatList)
			if err != nil {
				return err
			}

			sub, err := a.broker.Subscribe(session.ID, 0)
			if err != nil {
				return err
			}
			defer a.broker.Unsubscribe(session.ID, sub)

			out := cmd.OutOrStdout()
			var lastSeat models.Seat
			for ev := range sub.Events() {
				switch ev.Type {
				case models.EventPersonaDelta:
					if ev.Seat != lastSeat {
						fmt.Fprintf(out, "\n[%s] ", ev.Seat)
						lastSeat = ev.Seat
					}
					if text, ok := ev.Data["text"].(string); ok {
						fmt.Fprint(out, text)
					}
				case models.EventPersonaStatus:
					if ev.Data["status"] == string(models.AssignmentFailed) {
						fmt.Fprintf(out, "\n[%s] failed: %v\n", ev.Seat, ev.Data["error_code"])
						lastSeat = ""
					}
				case models.EventError:
					fmt.Fprintf(out, "\nerror: %v\n", ev.Data["message"])
				}
			}

			final, err := a.orchestrator.GetSession(session.ID)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "\n\n--- session %s: %s ---\n", final.ID, final.Status)
			for _, as := range final.Assignments {
				line := fmt.Sprintf("  %-10s %-10s", as.Seat, as.Status)
				if as.ServedBy != "" {
					line += " " + as.ServedBy
				}
				if as.ErrorCode != "" {
					line += " " + string(as.ErrorCode)
				}
				fmt.Fprintln(out, line)
			}
			if final.Synthesis != "" {
				fmt.Fprintf(out, "\nSynthesis:\n%s\n", final.Synthesis)
			}
			fmt.Fprintf(out, "\nTotal cost: $%.4f\n", final.TotalCost)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&seats, "seat", nil, "Seats to convene (defaults to the full council)")
	cmd.Flags().StringVar(&sessionDir, "session-dir", "", "Directory for session records (in-memory when unset)")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 0, "Session timeout in seconds (overrides the configured default)")

	return cmd
}
