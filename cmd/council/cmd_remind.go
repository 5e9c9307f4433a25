package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aspendos/council/internal/remind"
)

func newRemindCommand() *cobra.Command {
	var refStr string

	cmd := &cobra.Command{
		Use:   "remind <expression>",
		Short: "Resolve a reminder time expression",
		Long: `Resolve a reminder time expression against the current time (or --ref).

Recognized forms, in priority order: an ISO-8601 date or date-time,
"tomorrow", "next week", "in N <unit>", "N <unit> from now", and a bare
"N <unit>" where <unit> is minute/hour/day/week.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := time.Now()
			if refStr != "" {
				parsed, err := time.Parse(time.RFC3339, refStr)
				if err != nil {
					return fmt.Errorf("invalid --ref (want RFC 3339): %w", err)
				}
				ref = parsed
			}

			text := strings.Join(args, " ")
			at, ok := remind.Parse(text, ref)
			if !ok {
				return fmt.Errorf("unrecognized time expression: %q", text)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", at.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&refStr, "ref", "", "Reference instant (RFC 3339, defaults to now)")
	return cmd
}
