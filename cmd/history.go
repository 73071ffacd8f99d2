package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/attune/internal/store"
	"github.com/abhisek/attune/internal/ui/theme"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show journaled interventions and dialogue reports",
}

func historyOpts(cmd *cobra.Command) store.QueryOpts {
	limit, _ := cmd.Flags().GetInt("limit")
	user, _ := cmd.Flags().GetString("user")
	opts := store.QueryOpts{Limit: limit, UserID: user}
	if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
		opts.From = time.Now().Add(-since)
	}
	return opts
}

var historyInterventionsCmd = &cobra.Command{
	Use:   "interventions",
	Short: "List dispatched interventions",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := historyOpts(cmd)
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.EventRepo().QueryInterventions(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("query interventions: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No interventions recorded.")
			return nil
		}

		fmt.Printf("%-5s  %-19s  %-12s  %-20s  %-12s  %-18s  %5s  %5s\n",
			"ID", "Timestamp", "User", "Topic", "Target", "Reason", "Score", "Mast")
		fmt.Println(theme.Separator(110))
		for _, e := range events {
			target := e.Target
			if e.DialogueSessionID != "" {
				target += "*"
			}
			fmt.Printf("%-5d  %-19s  %-12s  %-20s  %-12s  %-18s  %5.2f  %5.2f\n",
				e.ID,
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				truncate(e.UserID, 12),
				truncate(e.Topic, 20),
				target,
				truncate(e.Reason, 18),
				e.Score,
				e.Mastery,
			)
		}
		fmt.Println()
		fmt.Println(theme.Hint.Render("* opened a tutoring dialogue"))
		return nil
	},
}

var historyReportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List closed dialogue sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := historyOpts(cmd)
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		reports, err := s.EventRepo().QuerySessionReports(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("query reports: %w", err)
		}
		if len(reports) == 0 {
			fmt.Println("No dialogue reports recorded.")
			return nil
		}

		fmt.Printf("%-5s  %-19s  %-12s  %-20s  %5s  %6s  %8s  %s\n",
			"ID", "Timestamp", "User", "Concept", "Turns", "Grasp", "Duration", "Closed")
		fmt.Println(theme.Separator(100))
		for _, r := range reports {
			closed := theme.Hold.Render(r.CloseReason)
			if r.CloseReason == "mastered" {
				closed = theme.Good.Render(r.CloseReason)
			}
			fmt.Printf("%-5d  %-19s  %-12s  %-20s  %5d  %5.0f%%  %8s  %s\n",
				r.ID,
				r.Timestamp.Local().Format("2006-01-02 15:04:05"),
				truncate(r.UserID, 12),
				truncate(r.Concept, 20),
				r.TurnCount,
				r.FinalComprehension*100,
				(time.Duration(r.DurationSeconds) * time.Second).String(),
				closed,
			)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{historyInterventionsCmd, historyReportsCmd} {
		c.Flags().IntP("limit", "n", 20, "Number of events to show")
		c.Flags().StringP("user", "u", "", "Only show this learner")
		c.Flags().Duration("since", 0, "Only show events newer than this (e.g. 24h)")
		historyCmd.AddCommand(c)
	}
}
