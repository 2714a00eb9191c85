package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/cobra"
)

// editResponse mirrors the server's recent edit JSON.
type editResponse struct {
	Seq         int64     `json:"seq"`
	ID          string    `json:"id"`
	RoadAssetID string    `json:"roadAssetId"`
	EditType    string    `json:"editType"`
	BBox        []float64 `json:"bbox,omitempty"`
	RoadName    string    `json:"roadName,omitempty"`
	Ward        string    `json:"ward,omitempty"`
	EditedAt    time.Time `json:"editedAt"`
}

type editListResponse struct {
	Edits      []editResponse `json:"edits"`
	NextBefore int64          `json:"nextBefore"`
}

func newEditsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edits",
		Short: "Inspect and follow the recent asset edits feed",
	}
	cmd.AddCommand(newEditsListCmd())
	cmd.AddCommand(newEditsWatchCmd())
	return cmd
}

func newEditsListCmd() *cobra.Command {
	var (
		limit  int
		before int64
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent asset edits, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if before > 0 {
				q.Set("before", strconv.FormatInt(before, 10))
			}
			body, err := globalClient.doRequest("GET", "/api/v1/notify/recent-edits?"+q.Encode(), nil)
			if err != nil {
				return err
			}
			var resp editListResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}
			if format == outputTable {
				if err := printTable(os.Stdout, editHeaders(), editRows(resp.Edits)); err != nil {
					return err
				}
				if resp.NextBefore > 0 {
					fmt.Fprintf(os.Stdout, "\nNext page: --before %d\n", resp.NextBefore)
				}
				return nil
			}
			return printStructured(os.Stdout, format, resp)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of edits")
	cmd.Flags().Int64Var(&before, "before", 0, "Return edits with seq below this cursor")
	return cmd
}

func newEditsWatchCmd() *cobra.Command {
	var (
		interval time.Duration
		since    int64
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the asset edits feed",
		Long: `Follow the asset edits feed by polling the server. New edits are printed
once, oldest first. The seen-edit set deduplicates overlapping polls, so a
retried request never repeats a line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			seen := mapset.NewSet[string]()
			cursor := since

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			fmt.Fprintf(os.Stderr, "watching edits from seq %d (poll every %s)\n", cursor, interval)

			poll := func() {
				path := fmt.Sprintf("/api/v1/notify/recent-edits?limit=100&since=%d", cursor)
				body, err := globalClient.doRequest("GET", path, nil)
				if err != nil {
					fmt.Fprintf(os.Stderr, "poll failed: %v\n", err)
					return
				}
				var resp editListResponse
				if err := json.Unmarshal(body, &resp); err != nil {
					fmt.Fprintf(os.Stderr, "parsing response: %v\n", err)
					return
				}

				// Replay comes oldest first; the seen set guards against an
				// overlapping retry after a failed poll.
				for _, e := range resp.Edits {
					if e.Seq <= cursor && seen.Contains(e.ID) {
						continue
					}
					seen.Add(e.ID)
					if e.Seq > cursor {
						cursor = e.Seq
					}
					fmt.Fprintf(os.Stdout, "%s  seq=%d  %s  asset=%s  %s  ward=%s\n",
						e.EditedAt.Format(time.RFC3339), e.Seq, e.EditType, e.RoadAssetID, e.RoadName, e.Ward)
				}
			}

			poll()
			for {
				select {
				case <-sigCh:
					fmt.Fprintln(os.Stderr, "stopped")
					return nil
				case <-ticker.C:
					poll()
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "Poll interval")
	cmd.Flags().Int64Var(&since, "since", 0, "Start from this seq cursor")
	return cmd
}

func editHeaders() []string {
	return []string{"Seq", "Time", "Type", "Asset", "Name", "Ward"}
}

func editRows(edits []editResponse) [][]string {
	var rows [][]string
	for _, e := range edits {
		rows = append(rows, []string{
			strconv.FormatInt(e.Seq, 10),
			e.EditedAt.Format(time.RFC3339),
			e.EditType,
			e.RoadAssetID,
			truncate(e.RoadName, 30),
			e.Ward,
		})
	}
	return rows
}
