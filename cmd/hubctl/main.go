package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	serverURL string
	authToken string
	tenantID  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hubctl",
		Short: "agenthub CLI - interact with your agent hub server",
		Long: `hubctl is a command-line interface for the agent hub API.
All output is JSON (pipe through jq for filtering).`,
		Version: version,
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", getDefaultServer(), "Hub server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("AGENTHUB_TOKEN"), "Bearer token")
	rootCmd.PersistentFlags().StringVarP(&tenantID, "tenant", "t", os.Getenv("AGENTHUB_TENANT"), "Tenant ID")

	rootCmd.AddCommand(newDispatchCommand())
	rootCmd.AddCommand(newClassifyCommand())
	rootCmd.AddCommand(newChatCommand())
	rootCmd.AddCommand(newActionsCommand())
	rootCmd.AddCommand(newContextCommand())
	rootCmd.AddCommand(newMemoryCommand())
	rootCmd.AddCommand(newProposalsCommand())
	rootCmd.AddCommand(newEventsCommand())
	rootCmd.AddCommand(newAutopilotCommand())
	rootCmd.AddCommand(newLogsCommand())
	rootCmd.AddCommand(newLoginCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getDefaultServer() string {
	if server := os.Getenv("AGENTHUB_SERVER"); server != "" {
		return server
	}
	return "http://localhost:8080"
}

// --- HTTP client ---

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func newClient() *Client {
	return &Client{
		BaseURL: serverURL,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) do(method, path string, params url.Values, data any) ([]byte, error) {
	u := fmt.Sprintf("%s%s", c.BaseURL, path)
	if params != nil {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data: %w", err)
		}
		body = strings.NewReader(string(jsonData))
	}

	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

func (c *Client) get(path string, params url.Values) ([]byte, error) {
	return c.do("GET", path, params, nil)
}

func (c *Client) post(path string, data any) ([]byte, error) {
	return c.do("POST", path, nil, data)
}

// outputJSON pretty-prints raw JSON data.
func outputJSON(data []byte) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		fmt.Println(string(data))
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// parseContext turns key=value pairs into a request context map. Values that
// parse as JSON (numbers, booleans, arrays) keep their type.
func parseContext(pairs []string) (map[string]any, error) {
	ctx := map[string]any{}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			ctx[key] = parsed
		} else {
			ctx[key] = value
		}
	}
	return ctx, nil
}

func requireTenant() error {
	if tenantID == "" {
		return fmt.Errorf("tenant is required (use --tenant or AGENTHUB_TENANT)")
	}
	return nil
}
