package cmd

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/attune/internal/llm"
	"github.com/abhisek/attune/internal/store"
	"github.com/abhisek/attune/internal/ui/theme"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect journaled LLM calls",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.EventRepo().QueryLLMEvents(cmd.Context(), store.QueryOpts{Limit: limit})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}

		if len(events) == 0 {
			fmt.Println("No LLM events found.")
			return nil
		}

		fmt.Printf("%-5s  %-19s  %-20s  %-28s  %-6s  %-6s  %-7s  %s\n",
			"ID", "Timestamp", "Purpose", "Model", "In", "Out", "Ms", "OK")
		fmt.Println(theme.Separator(106))

		for _, e := range events {
			if purpose != "" && e.Purpose != purpose {
				continue
			}
			ok := theme.Good.Render("✓")
			if !e.Success {
				ok = theme.Bad.Render("✗")
			}
			fmt.Printf("%-5d  %-19s  %-20s  %-28s  %-6d  %-6d  %-7d  %s\n",
				e.ID,
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				truncate(e.Purpose, 20),
				truncate(e.Model, 28),
				e.InputTokens,
				e.OutputTokens,
				e.LatencyMs,
				ok,
			)
		}
		return nil
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "View the full request and response of an LLM call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		e, err := s.EventRepo().GetLLMEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if e == nil {
			return fmt.Errorf("event %d not found", id)
		}

		fmt.Println(theme.Field("ID", e.ID))
		fmt.Println(theme.Field("Time", e.Timestamp.Local().Format("2006-01-02 15:04:05")))
		fmt.Println(theme.Field("Provider", e.Provider))
		fmt.Println(theme.Field("Model", e.Model))
		fmt.Println(theme.Field("Purpose", e.Purpose))
		fmt.Println(theme.Field("Tokens", fmt.Sprintf("%d in / %d out", e.InputTokens, e.OutputTokens)))
		fmt.Println(theme.Field("Latency", fmt.Sprintf("%dms", e.LatencyMs)))
		fmt.Println(theme.Field("Success", e.Success))
		if e.ErrorMessage != "" {
			fmt.Println(theme.Label.Render("Error") + theme.Bad.Render(e.ErrorMessage))
		}

		section := func(title, body string) {
			fmt.Println(theme.Separator(60))
			fmt.Println(theme.Title.Render(title))
			fmt.Println(theme.Separator(60))
			if body == "" {
				body = theme.Hint.Render("(not captured)")
			}
			fmt.Println(body)
		}
		fmt.Println()
		section("REQUEST", e.RequestBody)
		section("RESPONSE", e.ResponseBody)
		return nil
	},
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated LLM token usage and estimated cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.EventRepo().LLMUsageStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}

		if len(stats) == 0 {
			fmt.Println("No LLM usage recorded yet.")
			return nil
		}

		fmt.Println(theme.Title.Render("Usage by purpose and model"))
		fmt.Println(theme.Separator(104))
		fmt.Printf("%-20s  %-28s  %6s  %5s  %9s  %9s  %7s  %10s\n",
			"Purpose", "Model", "Calls", "Fail", "Input", "Output", "Avg Ms", "Cost")
		fmt.Println(theme.Separator(104))

		var (
			totalCalls, totalFail, totalIn, totalOut int
			totalCost                                float64
			unknown                                  []string
		)
		for _, st := range stats {
			cost := "?"
			if price := llm.LookupCost(st.Model); price != nil {
				c := price.Cost(st.InputTokens, st.OutputTokens)
				totalCost += c
				cost = formatCost(c)
			} else if !slices.Contains(unknown, st.Model) {
				unknown = append(unknown, st.Model)
			}
			fmt.Printf("%-20s  %-28s  %6d  %5d  %9d  %9d  %7.0f  %10s\n",
				truncate(st.Purpose, 20), truncate(st.Model, 28),
				st.Calls, st.Failures, st.InputTokens, st.OutputTokens, st.AvgLatencyMs, cost)
			totalCalls += st.Calls
			totalFail += st.Failures
			totalIn += st.InputTokens
			totalOut += st.OutputTokens
		}

		fmt.Println(theme.Separator(104))
		label := "TOTAL"
		if len(unknown) > 0 {
			label = "TOTAL (partial)"
		}
		fmt.Printf("%-20s  %-28s  %6d  %5d  %9d  %9d  %7s  %10s\n",
			label, "", totalCalls, totalFail, totalIn, totalOut, "", formatCost(totalCost))

		if len(unknown) > 0 {
			fmt.Println()
			fmt.Println(theme.Hint.Render("Pricing unavailable for: " + strings.Join(unknown, ", ")))
		}
		return nil
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by purpose (e.g. dialogue-turn, tool-choice)")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
