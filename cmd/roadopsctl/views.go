package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func newViewsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "views",
		Short: "Reporting views over events and work orders",
	}
	cmd.AddCommand(newViewsStatusCountsCmd())
	cmd.AddCommand(newViewsWardsCmd())
	cmd.AddCommand(newViewsOverviewCmd())
	return cmd
}

func newViewsStatusCountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status-counts",
		Short: "Count events per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("GET", "/api/v1/views/status-counts", nil)
			if err != nil {
				return err
			}
			var counts map[string]int64
			if err := json.Unmarshal(body, &counts); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}
			if format == outputTable {
				headers := []string{"Status", "Count"}
				var rows [][]string
				for _, status := range []string{"planned", "active", "pending_review", "closed", "archived", "cancelled"} {
					rows = append(rows, []string{status, strconv.FormatInt(counts[status], 10)})
				}
				return printTable(os.Stdout, headers, rows)
			}
			return printStructured(os.Stdout, format, counts)
		},
	}
}

func newViewsWardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wards",
		Short: "Count active events per ward",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("GET", "/api/v1/views/wards", nil)
			if err != nil {
				return err
			}
			var counts map[string]int64
			if err := json.Unmarshal(body, &counts); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}
			if format == outputTable {
				headers := []string{"Ward", "Active Events"}
				var rows [][]string
				for ward, n := range counts {
					rows = append(rows, []string{ward, strconv.FormatInt(n, 10)})
				}
				return printTable(os.Stdout, headers, rows)
			}
			return printStructured(os.Stdout, format, counts)
		},
	}
}

func newViewsOverviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overview <event-id>",
		Short: "Show an event with its work order and evidence rollup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("GET", "/api/v1/events/"+args[0]+"/overview", nil)
			if err != nil {
				return err
			}
			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}
			var overview map[string]any
			if err := json.Unmarshal(body, &overview); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			if format == outputTable {
				return printStructured(os.Stdout, outputJSON, overview)
			}
			return printStructured(os.Stdout, format, overview)
		},
	}
}
