package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// eventResponse mirrors the server's construction event JSON.
type eventResponse struct {
	ID                      string     `json:"id"`
	Name                    string     `json:"name"`
	RestrictionType         string     `json:"restrictionType"`
	Ward                    string     `json:"ward"`
	Department              string     `json:"department"`
	CreatedBy               string     `json:"createdBy"`
	Status                  string     `json:"status"`
	PostEndDecision         string     `json:"postEndDecision,omitempty"`
	RequiresEvidenceSignOff bool       `json:"requiresEvidenceSignOff"`
	StartDate               *time.Time `json:"startDate,omitempty"`
	EndDate                 *time.Time `json:"endDate,omitempty"`
	ArchivedAt              *time.Time `json:"archivedAt,omitempty"`
	CreatedAt               time.Time  `json:"createdAt"`
	UpdatedAt               time.Time  `json:"updatedAt"`
}

type eventListResponse struct {
	Events        []eventResponse `json:"events"`
	NextPageToken string          `json:"nextPageToken"`
}

type transitionResponse struct {
	ID               string `json:"id"`
	From             string `json:"from"`
	To               string `json:"to"`
	DecisionRequired bool   `json:"decisionRequired,omitempty"`
	Retried          bool   `json:"retried,omitempty"`
}

type statusChangeResponse struct {
	Kind       string    `json:"kind"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Actor      string    `json:"actor"`
	ActorRole  string    `json:"actorRole"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Manage construction events",
	}
	cmd.AddCommand(newEventsListCmd())
	cmd.AddCommand(newEventsGetCmd())
	cmd.AddCommand(newEventsCreateCmd())
	cmd.AddCommand(newEventsTransitionCmd())
	cmd.AddCommand(newEventsDecideCmd())
	cmd.AddCommand(newEventsDuplicateCmd())
	cmd.AddCommand(newEventsHistoryCmd())
	return cmd
}

func newEventsListCmd() *cobra.Command {
	var (
		status    string
		ward      string
		pageSize  int
		pageToken string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List construction events",
		Long: `List construction events. Archived events are hidden unless --status
selects them explicitly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			if ward != "" {
				q.Set("ward", ward)
			}
			if pageSize > 0 {
				q.Set("pageSize", strconv.Itoa(pageSize))
			}
			if pageToken != "" {
				q.Set("pageToken", pageToken)
			}

			body, err := globalClient.doRequest("GET", "/api/v1/events?"+q.Encode(), nil)
			if err != nil {
				return err
			}
			var resp eventListResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}
			if format == outputTable {
				headers := []string{"ID", "Name", "Status", "Ward", "Type", "Sign-Off", "Decision"}
				var rows [][]string
				for _, e := range resp.Events {
					signOff := "no"
					if e.RequiresEvidenceSignOff {
						signOff = "yes"
					}
					decision := "-"
					if e.PostEndDecision != "" {
						decision = e.PostEndDecision
					}
					rows = append(rows, []string{
						e.ID,
						truncate(e.Name, 40),
						e.Status,
						e.Ward,
						e.RestrictionType,
						signOff,
						decision,
					})
				}
				if err := printTable(os.Stdout, headers, rows); err != nil {
					return err
				}
				if resp.NextPageToken != "" {
					fmt.Fprintf(os.Stdout, "\nNext page token: %s\n", resp.NextPageToken)
				}
				return nil
			}
			return printStructured(os.Stdout, format, resp)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (planned, active, pending_review, closed, archived, cancelled)")
	cmd.Flags().StringVar(&ward, "ward", "", "Filter by ward")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Page size")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Page token from a previous list")
	return cmd
}

func newEventsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <event-id>",
		Short: "Show a construction event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("GET", "/api/v1/events/"+args[0], nil)
			if err != nil {
				return err
			}
			return printRawEvent(body)
		},
	}
}

func newEventsCreateCmd() *cobra.Command {
	var (
		name            string
		restrictionType string
		ward            string
		department      string
		signOff         string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a construction event in planned state",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{
				"name":            name,
				"restrictionType": restrictionType,
				"ward":            ward,
				"department":      department,
			}
			switch signOff {
			case "":
				// Leave to the server's closure policy.
			case "true", "false":
				payload["requiresEvidenceSignOff"] = signOff == "true"
			default:
				return fmt.Errorf("invalid --sign-off value %q (expected true or false)", signOff)
			}
			data, err := json.Marshal(payload)
			if err != nil {
				return err
			}
			body, err := globalClient.doRequest("POST", "/api/v1/events", bytes.NewReader(data))
			if err != nil {
				return err
			}
			return printRawEvent(body)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Event name (required)")
	cmd.Flags().StringVar(&restrictionType, "type", "", "Restriction type (e.g. full_closure, lane_closure)")
	cmd.Flags().StringVar(&ward, "ward", "", "Ward")
	cmd.Flags().StringVar(&department, "department", "", "Owning department")
	cmd.Flags().StringVar(&signOff, "sign-off", "", "Override evidence sign-off requirement (true or false)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newEventsTransitionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transition <event-id> <to-status>",
		Short: "Transition a construction event",
		Long: `Transition a construction event to a new status. Legal targets depend on
the current status: planned events start or cancel, active events end into
pending review, reviewed events close, closed events archive.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _ := json.Marshal(map[string]string{"to": args[1]})
			body, err := globalClient.doRequest("POST", "/api/v1/events/"+args[0]+"/transition", bytes.NewReader(data))
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
				fmt.Fprintf(os.Stdout, "Event %s: %s -> %s\n", resp.ID, resp.From, resp.To)
				if resp.DecisionRequired {
					fmt.Fprintln(os.Stdout, "A post-end decision is now required before the event can close.")
				}
				return nil
			}
			return printStructured(os.Stdout, format, resp)
		},
	}
}

func newEventsDecideCmd() *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "decide <event-id> <no-change|permanent-change>",
		Short: "Record the post-end decision for an event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _ := json.Marshal(map[string]string{
				"postEndDecision": args[1],
				"notes":           notes,
			})
			body, err := globalClient.doRequest("POST", "/api/v1/events/"+args[0]+"/decision", bytes.NewReader(data))
			if err != nil {
				return err
			}
			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}
			if format == outputTable {
				fmt.Fprintf(os.Stdout, "Recorded decision %q for event %s\n", args[1], args[0])
				return nil
			}
			var resp map[string]string
			_ = json.Unmarshal(body, &resp)
			return printStructured(os.Stdout, format, resp)
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "Decision notes")
	return cmd
}

func newEventsDuplicateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <event-id>",
		Short: "Duplicate a closed event as a new planned event",
		Long: `Duplicate a closed event. The copy starts in planned state with the same
descriptive fields and asset links; work orders and evidence are not copied.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("POST", "/api/v1/events/"+args[0]+"/duplicate", nil)
			if err != nil {
				return err
			}
			return printRawEvent(body)
		},
	}
}

func newEventsHistoryCmd() *cobra.Command {
	var (
		pageSize  int
		pageToken string
	)

	cmd := &cobra.Command{
		Use:   "history <event-id>",
		Short: "Show the status change history of an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if pageSize > 0 {
				q.Set("pageSize", strconv.Itoa(pageSize))
			}
			if pageToken != "" {
				q.Set("pageToken", pageToken)
			}
			body, err := globalClient.doRequest("GET", "/api/v1/events/"+args[0]+"/history?"+q.Encode(), nil)
			if err != nil {
				return err
			}
			var resp struct {
				Changes       []statusChangeResponse `json:"changes"`
				NextPageToken string                 `json:"nextPageToken"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}
			if format == outputTable {
				headers := []string{"Time", "Kind", "From", "To", "Actor", "Role"}
				var rows [][]string
				for _, c := range resp.Changes {
					rows = append(rows, []string{
						c.CreatedAt.Format(time.RFC3339),
						c.Kind,
						c.From,
						c.To,
						c.Actor,
						c.ActorRole,
					})
				}
				if err := printTable(os.Stdout, headers, rows); err != nil {
					return err
				}
				if resp.NextPageToken != "" {
					fmt.Fprintf(os.Stdout, "\nNext page token: %s\n", resp.NextPageToken)
				}
				return nil
			}
			return printStructured(os.Stdout, format, resp)
		},
	}

	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Page size")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Page token from a previous call")
	return cmd
}

// printRawEvent renders a single event response body.
func printRawEvent(body []byte) error {
	var rec eventResponse
	if err := json.Unmarshal(body, &rec); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	format, err := parseOutputFormat(outputFlag)
	if err != nil {
		return err
	}
	if format == outputTable {
		fmt.Fprintf(os.Stdout, "ID:          %s\n", rec.ID)
		fmt.Fprintf(os.Stdout, "Name:        %s\n", rec.Name)
		fmt.Fprintf(os.Stdout, "Status:      %s\n", rec.Status)
		fmt.Fprintf(os.Stdout, "Type:        %s\n", rec.RestrictionType)
		fmt.Fprintf(os.Stdout, "Ward:        %s\n", rec.Ward)
		fmt.Fprintf(os.Stdout, "Department:  %s\n", rec.Department)
		fmt.Fprintf(os.Stdout, "Created by:  %s\n", rec.CreatedBy)
		fmt.Fprintf(os.Stdout, "Sign-off:    %t\n", rec.RequiresEvidenceSignOff)
		if rec.PostEndDecision != "" {
			fmt.Fprintf(os.Stdout, "Decision:    %s\n", rec.PostEndDecision)
		}
		if rec.ArchivedAt != nil {
			fmt.Fprintf(os.Stdout, "Archived at: %s\n", rec.ArchivedAt.Format(time.RFC3339))
		}
		return nil
	}
	return printStructured(os.Stdout, format, rec)
}
