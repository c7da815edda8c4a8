package main

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yourusername/mediabridge-go/internal/domain"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"list"},
	Short:   "List past acquisitions",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		query := url.Values{}
		for _, key := range []string{"status", "platform", "provider", "error-kind"} {
			if value, _ := cmd.Flags().GetString(key); value != "" {
				query.Set(flagToQuery(key), value)
			}
		}
		limit, _ := cmd.Flags().GetInt("limit")
		query.Set("limit", strconv.Itoa(limit))

		var acquisitions []domain.Acquisition
		exitOnError(newAPIClient(serverURL).getJSON("/api/v1/acquisitions", query, &acquisitions))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tURL\tPLATFORM\tSTATUS\tPROVIDER\tATTEMPTS\tCREATED")
		for _, a := range acquisitions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				truncate(a.ID, 8),
				truncate(a.URL, 40),
				a.Platform,
				statusColor(a.Status),
				a.Provider,
				a.AttemptCount,
				a.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one acquisition with its provider attempts",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var a domain.Acquisition
		exitOnError(newAPIClient(serverURL).getJSON("/api/v1/acquisitions/"+url.PathEscape(args[0]), nil, &a))

		bold := color.New(color.Bold)
		bold.Println("Acquisition Details:")
		fmt.Printf("  ID:       %s\n", a.ID)
		fmt.Printf("  URL:      %s\n", a.URL)
		fmt.Printf("  Platform: %s\n", a.Platform)
		fmt.Printf("  Status:   %s\n", statusColor(a.Status))
		fmt.Printf("  Mode:     %s (%s)\n", a.Mode, a.Delivery)
		fmt.Printf("  Chain:    %s\n", a.Chain)
		if a.Provider != "" {
			fmt.Printf("  Provider: %s\n", a.Provider)
		}
		if a.Filename != "" {
			fmt.Printf("  File:     %s (%s)\n", a.Filename, humanBytes(a.SizeBytes))
		}
		if a.ErrorKind != "" {
			fmt.Printf("  Error:    %s: %s\n", a.ErrorKind, a.ErrorMessage)
		}
		fmt.Printf("  Duration: %dms\n", a.DurationMs)

		if len(a.Attempts) == 0 {
			return
		}
		fmt.Println()
		bold.Println("Attempts:")
		for _, at := range a.Attempts {
			line := fmt.Sprintf("  #%d %-10s %-8s %5dms", at.Sequence, at.Provider, at.Outcome, at.DurationMs)
			if at.ErrorKind != "" {
				line += fmt.Sprintf("  %s: %s", at.ErrorKind, truncate(at.Message, 80))
			}
			fmt.Println(line)
		}
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show acquisition statistics",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var result struct {
			Stats    domain.AcquisitionStats `json:"stats"`
			InFlight int                     `json:"in_flight"`
		}
		exitOnError(newAPIClient(serverURL).getJSON("/api/v1/acquisitions/stats", nil, &result))

		stats := result.Stats
		fmt.Println("Acquisition Statistics:")
		fmt.Printf("  Total:      %d\n", stats.Total)
		fmt.Printf("  In flight:  %d\n", result.InFlight)
		fmt.Printf("  Running:    %d\n", stats.Running)
		fmt.Printf("  Succeeded:  %s\n", color.GreenString("%d", stats.Succeeded))
		fmt.Printf("  Failed:     %s\n", color.RedString("%d", stats.Failed))

		printBreakdown("By provider:", stats.ByProvider)
		printBreakdown("By error kind:", stats.ByErrorKind)
	},
}

func printBreakdown(title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println(title)
	for _, k := range keys {
		fmt.Printf("  %-22s %d\n", k, counts[k])
	}
}

func statusColor(status domain.AcquisitionStatus) string {
	switch status {
	case domain.StatusSucceeded:
		return color.GreenString(string(status))
	case domain.StatusFailed:
		return color.RedString(string(status))
	default:
		return color.YellowString(string(status))
	}
}

func flagToQuery(flag string) string {
	if flag == "error-kind" {
		return "error_kind"
	}
	return flag
}

func init() {
	historyCmd.Flags().StringP("status", "s", "", "Filter by status (running, succeeded, failed)")
	historyCmd.Flags().StringP("platform", "p", "", "Filter by platform")
	historyCmd.Flags().String("provider", "", "Filter by winning provider")
	historyCmd.Flags().String("error-kind", "", "Filter by failure kind")
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum rows")
}
