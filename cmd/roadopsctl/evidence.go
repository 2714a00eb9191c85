package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// evidenceResponse mirrors the server's evidence JSON.
type evidenceResponse struct {
	ID           string     `json:"id"`
	WorkOrderID  string     `json:"workOrderId"`
	FileRef      string     `json:"fileRef"`
	EvidenceType string     `json:"type"`
	Title        string     `json:"title"`
	SubmittedBy  string     `json:"submittedBy"`
	SubmittedAt  time.Time  `json:"submittedAt"`
	ReviewStatus string     `json:"reviewStatus"`
	ReviewedBy   string     `json:"reviewedBy,omitempty"`
	ReviewedAt   *time.Time `json:"reviewedAt,omitempty"`
}

func newEvidenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Manage completion evidence on work orders",
	}
	cmd.AddCommand(newEvidenceSubmitCmd())
	cmd.AddCommand(newEvidenceListCmd())
	cmd.AddCommand(newEvidenceDecideCmd())
	return cmd
}

func newEvidenceSubmitCmd() *cobra.Command {
	var (
		fileRef      string
		evidenceType string
		title        string
		description  string
	)

	cmd := &cobra.Command{
		Use:   "submit <workorder-id>",
		Short: "Submit evidence under a work order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.Marshal(map[string]string{
				"fileRef":     fileRef,
				"type":        evidenceType,
				"title":       title,
				"description": description,
			})
			if err != nil {
				return err
			}
			body, err := globalClient.doRequest("POST", "/api/v1/workorders/"+args[0]+"/evidence", bytes.NewReader(data))
			if err != nil {
				return err
			}
			var rec evidenceResponse
			if err := json.Unmarshal(body, &rec); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}
			if format == outputTable {
				fmt.Fprintf(os.Stdout, "Submitted evidence %s (%s) for review\n", rec.ID, rec.FileRef)
				return nil
			}
			return printStructured(os.Stdout, format, rec)
		},
	}

	cmd.Flags().StringVar(&fileRef, "file-ref", "", "File reference for the artifact (required)")
	cmd.Flags().StringVar(&evidenceType, "type", "", "Evidence type (e.g. photo, report)")
	cmd.Flags().StringVar(&title, "title", "", "Evidence title")
	cmd.Flags().StringVar(&description, "description", "", "Evidence description")
	_ = cmd.MarkFlagRequired("file-ref")
	return cmd
}

func newEvidenceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <workorder-id>",
		Short: "List evidence under a work order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("GET", "/api/v1/workorders/"+args[0]+"/evidence", nil)
			if err != nil {
				return err
			}
			var resp struct {
				Evidence []evidenceResponse `json:"evidence"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}
			if format == outputTable {
				headers := []string{"ID", "File", "Type", "Review", "Submitted By", "Reviewed By"}
				var rows [][]string
				for _, e := range resp.Evidence {
					reviewedBy := "-"
					if e.ReviewedBy != "" {
						reviewedBy = e.ReviewedBy
					}
					rows = append(rows, []string{
						e.ID,
						truncate(e.FileRef, 40),
						e.EvidenceType,
						e.ReviewStatus,
						e.SubmittedBy,
						reviewedBy,
					})
				}
				return printTable(os.Stdout, headers, rows)
			}
			return printStructured(os.Stdout, format, resp)
		},
	}
}

func newEvidenceDecideCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decide <evidence-id> <decision>",
		Short: "Record a review decision on evidence",
		Long: `Record a review decision on evidence. Operators peer-review pending
evidence (approved or rejected); the authority acts on approved evidence
(accepted_by_authority or rejected).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _ := json.Marshal(map[string]string{"decision": args[1]})
			body, err := globalClient.doRequest("POST", "/api/v1/evidence/"+args[0]+"/decision", bytes.NewReader(data))
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
				fmt.Fprintf(os.Stdout, "Evidence %s: %s -> %s\n", resp.ID, resp.From, resp.To)
				return nil
			}
			return printStructured(os.Stdout, format, resp)
		},
	}
}
