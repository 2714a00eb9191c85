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

// assetResponse mirrors the server's road asset JSON.
type assetResponse struct {
	ID         string    `json:"id"`
	AssetType  string    `json:"assetType"`
	Name       string    `json:"name"`
	Ward       string    `json:"ward,omitempty"`
	Surface    string    `json:"surface,omitempty"`
	LengthM    float64   `json:"lengthM,omitempty"`
	CreateTime time.Time `json:"createTime"`
}

func newAssetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Manage road and park assets",
	}
	cmd.AddCommand(newAssetsListCmd())
	cmd.AddCommand(newAssetsGetCmd())
	cmd.AddCommand(newAssetsCreateCmd())
	cmd.AddCommand(newAssetsDeleteCmd())
	return cmd
}

func newAssetsListCmd() *cobra.Command {
	var (
		assetType string
		ward      string
		pageSize  int
		pageToken string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if assetType != "" {
				q.Set("assetType", assetType)
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
			body, err := globalClient.doRequest("GET", "/api/v1/assets?"+q.Encode(), nil)
			if err != nil {
				return err
			}
			var resp struct {
				Assets        []assetResponse `json:"assets"`
				NextPageToken string          `json:"nextPageToken"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}
			if format == outputTable {
				headers := []string{"ID", "Type", "Name", "Ward", "Surface", "Length (m)"}
				var rows [][]string
				for _, a := range resp.Assets {
					length := "-"
					if a.LengthM > 0 {
						length = strconv.FormatFloat(a.LengthM, 'f', 1, 64)
					}
					rows = append(rows, []string{
						a.ID,
						a.AssetType,
						truncate(a.Name, 40),
						a.Ward,
						a.Surface,
						length,
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

	cmd.Flags().StringVar(&assetType, "type", "", "Filter by asset type (road, park, bridge, pathway, drainage)")
	cmd.Flags().StringVar(&ward, "ward", "", "Filter by ward")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Page size")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Page token from a previous list")
	return cmd
}

func newAssetsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <asset-id>",
		Short: "Show an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("GET", "/api/v1/assets/"+args[0], nil)
			if err != nil {
				return err
			}
			var rec assetResponse
			if err := json.Unmarshal(body, &rec); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}
			if format == outputTable {
				fmt.Fprintf(os.Stdout, "ID:      %s\n", rec.ID)
				fmt.Fprintf(os.Stdout, "Type:    %s\n", rec.AssetType)
				fmt.Fprintf(os.Stdout, "Name:    %s\n", rec.Name)
				fmt.Fprintf(os.Stdout, "Ward:    %s\n", rec.Ward)
				fmt.Fprintf(os.Stdout, "Surface: %s\n", rec.Surface)
				return nil
			}
			return printStructured(os.Stdout, format, rec)
		},
	}
}

func newAssetsCreateCmd() *cobra.Command {
	var (
		assetType string
		name      string
		ward      string
		surface   string
		lengthM   float64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.Marshal(map[string]any{
				"assetType": assetType,
				"name":      name,
				"ward":      ward,
				"surface":   surface,
				"lengthM":   lengthM,
			})
			if err != nil {
				return err
			}
			body, err := globalClient.doRequest("POST", "/api/v1/assets", bytes.NewReader(data))
			if err != nil {
				return err
			}
			var rec assetResponse
			if err := json.Unmarshal(body, &rec); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Fprintf(os.Stdout, "Created asset %s (%s)\n", rec.ID, rec.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&assetType, "type", "road", "Asset type (road, park, bridge, pathway, drainage)")
	cmd.Flags().StringVar(&name, "name", "", "Asset name (required)")
	cmd.Flags().StringVar(&ward, "ward", "", "Ward")
	cmd.Flags().StringVar(&surface, "surface", "", "Surface material")
	cmd.Flags().Float64Var(&lengthM, "length", 0, "Length in meters")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newAssetsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <asset-id>",
		Short: "Delete an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := globalClient.doRequest("DELETE", "/api/v1/assets/"+args[0], nil); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Deleted asset %s\n", args[0])
			return nil
		},
	}
}
