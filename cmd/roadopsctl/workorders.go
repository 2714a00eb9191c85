package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// workOrderResponse mirrors the server's work order JSON.
type workOrderResponse struct {
	ID           string     `json:"id"`
	EventID      string     `json:"eventId"`
	Title        string     `json:"title"`
	WorkType     string     `json:"type"`
	AssignedDept string     `json:"assignedDept"`
	Status       string     `json:"status"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func newWorkOrdersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workorders",
		Aliases: []string{"wo"},
		Short:   "Manage work orders under construction events",
	}
	cmd.AddCommand(newWorkOrdersListCmd())
	cmd.AddCommand(newWorkOrdersCreateCmd())
	cmd.AddCommand(newWorkOrdersGetCmd())
	cmd.AddCommand(newWorkOrdersTransitionCmd())
	return cmd
}

func newWorkOrdersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <event-id>",
		Short: "List work orders under an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("GET", "/api/v1/events/"+args[0]+"/workorders", nil)
			if err != nil {
				return err
			}
			var resp struct {
				WorkOrders []workOrderResponse `json:"workOrders"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}
			if format == outputTable {
				headers := []string{"ID", "Title", "Status", "Type", "Dept", "Due", "Completed"}
				var rows [][]string
				for _, wo := range resp.WorkOrders {
					due := "-"
					if wo.DueDate != nil {
						due = wo.DueDate.Format("2006-01-02")
					}
					completed := "-"
					if wo.CompletedAt != nil {
						completed = wo.CompletedAt.Format(time.RFC3339)
					}
					rows = append(rows, []string{
						wo.ID,
						truncate(wo.Title, 40),
						wo.Status,
						wo.WorkType,
						wo.AssignedDept,
						due,
						completed,
					})
				}
				return printTable(os.Stdout, headers, rows)
			}
			return printStructured(os.Stdout, format, resp)
		},
	}
}

func newWorkOrdersCreateCmd() *cobra.Command {
	var (
		title    string
		workType string
		dept     string
	)

	cmd := &cobra.Command{
		Use:   "create <event-id>",
		Short: "Create a work order under an event",
		Long: `Create a work order under a construction event. The parent event must be
planned or active.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.Marshal(map[string]string{
				"title":        title,
				"type":         workType,
				"assignedDept": dept,
			})
			if err != nil {
				return err
			}
			body, err := globalClient.doRequest("POST", "/api/v1/events/"+args[0]+"/workorders", bytes.NewReader(data))
			if err != nil {
				return err
			}
			return printRawWorkOrder(body)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Work order title (required)")
	cmd.Flags().StringVar(&workType, "type", "", "Work type (e.g. paving, signage)")
	cmd.Flags().StringVar(&dept, "dept", "", "Assigned department")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newWorkOrdersGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <workorder-id>",
		Short: "Show a work order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("GET", "/api/v1/workorders/"+args[0], nil)
			if err != nil {
				return err
			}
			return printRawWorkOrder(body)
		},
	}
}

func newWorkOrdersTransitionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transition <workorder-id> <to-status>",
		Short: "Transition a work order",
		Long: `Transition a work order to a new status (assigned, in_progress, completed,
cancelled). Completion is blocked while the parent event requires evidence
sign-off and no evidence has been accepted by the authority.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _ := json.Marshal(map[string]string{"to": args[1]})
			body, err := globalClient.doRequest("POST", "/api/v1/workorders/"+args[0]+"/transition", bytes.NewReader(data))
			if err != nil {
				return err
			}
			var resp transitionResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}
			if format == outputTable {
				fmt.Fprintf(os.Stdout, "Work order %s: %s -> %s\n", resp.ID, resp.From, resp.To)
				return nil
			}
			return printStructured(os.Stdout, format, resp)
		},
	}
}

// printRawWorkOrder renders a single work order response body.
func printRawWorkOrder(body []byte) error {
	var rec workOrderResponse
	if err := json.Unmarshal(body, &rec); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	format, err := parseOutputFormat(outputFlag)
	if err != nil {
		return err
	}
	if format == outputTable {
		fmt.Fprintf(os.Stdout, "ID:        %s\n", rec.ID)
		fmt.Fprintf(os.Stdout, "Event:     %s\n", rec.EventID)
		fmt.Fprintf(os.Stdout, "Title:     %s\n", rec.Title)
		fmt.Fprintf(os.Stdout, "Status:    %s\n", rec.Status)
		fmt.Fprintf(os.Stdout, "Type:      %s\n", rec.WorkType)
		fmt.Fprintf(os.Stdout, "Dept:      %s\n", rec.AssignedDept)
		if rec.CompletedAt != nil {
			fmt.Fprintf(os.Stdout, "Completed: %s\n", rec.CompletedAt.Format(time.RFC3339))
		}
		return nil
	}
	return printStructured(os.Stdout, format, rec)
}
