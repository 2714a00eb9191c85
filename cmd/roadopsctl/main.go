// Package main provides the roadopsctl CLI binary for operating the
// roadops server. This is a management-plane tool that communicates with
// the roadops-server HTTP API.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	// Global flags
	serverURL     string
	outputFlag    string
	roleFlag      string
	principalFlag string
	globalClient  *roadopsClient
)

// roadopsClient wraps an HTTP client and the server base URL.
type roadopsClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// newRoadopsClient creates a new client targeting the given server URL.
func newRoadopsClient(baseURL string) *roadopsClient {
	return &roadopsClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}
}

// doRequest performs an HTTP request and returns the response body bytes.
// It returns an error if the status code indicates a failure.
func (c *roadopsClient) doRequest(method, path string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if roleFlag != "" {
		req.Header.Set("X-User-Role", roleFlag)
	}
	if principalFlag != "" {
		req.Header.Set("X-User-Principal", principalFlag)
	}

	c.logger.Debug("sending request", "method", method, "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting to roadops server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		// Try to extract error message from JSON response
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &errResp) == nil {
			if errResp.Message != "" {
				return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Message)
			}
			if errResp.Error != "" {
				return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Error)
			}
		}
		return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "roadopsctl",
		Short: "CLI for the roadops construction event service",
		Long: `roadopsctl is a command-line tool for operating the roadops server.

It provides commands for managing construction events, work orders,
completion evidence, road/park assets, and the recent-edits feed.

The CLI communicates with the roadops-server HTTP API.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			globalClient = newRoadopsClient(serverURL)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Roadops server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&roleFlag, "role", "", "Role for RBAC (viewer, operator, authority); sets X-User-Role header")
	rootCmd.PersistentFlags().StringVar(&principalFlag, "as", "", "Acting principal; sets X-User-Principal header")

	// Register subcommands
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newWorkOrdersCmd())
	rootCmd.AddCommand(newEvidenceCmd())
	rootCmd.AddCommand(newAssetsCmd())
	rootCmd.AddCommand(newEditsCmd())
	rootCmd.AddCommand(newViewsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
