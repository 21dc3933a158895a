package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// contributionsResponse mirrors the pledgescope API response model.
type contributionsResponse struct {
	TotalContributionsCount int    `json:"total_contributions_count"`
	Source                  string `json:"source"`
	Contributors            []struct {
		Name        string   `json:"name"`
		AmountLabel string   `json:"amount_label"`
		Amount      *float64 `json:"amount"`
	} `json:"contributors"`
}

// errorResponse mirrors the pledgescope API error body.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	Code    string `json:"code"`
}

func main() {
	apiURL := os.Getenv("PLEDGESCOPE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("PLEDGESCOPE_API_KEY")

	s := server.NewMCPServer(
		"pledgescope",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	contributionsTool := mcp.NewTool("get_contributions",
		mcp.WithDescription("Scrape the fundraising page and return the named contributors, their pledge amounts and the total number of contributions. Takes up to a minute because a real browser renders the page."),
		mcp.WithBoolean("include_contributors",
			mcp.Description("List every contributor (default true). Set false to only get the totals."),
		),
	)
	s.AddTool(contributionsTool, handleContributions(apiURL, apiKey))

	renderTool := mcp.NewTool("render_page",
		mcp.WithDescription("Return the fundraising page as rendered after JavaScript ran, for debugging extraction. Markdown by default."),
		mcp.WithString("format",
			mcp.Description("Output format: 'markdown' (default) or 'html'"),
			mcp.Enum("markdown", "html"),
		),
		mcp.WithString("selector",
			mcp.Description("Optional CSS selector to narrow the output, e.g. 'ul[class*=contribution]'"),
		),
		mcp.WithBoolean("full",
			mcp.Description("Return the whole document instead of the first 100 000 bytes"),
		),
	)
	s.AddTool(renderTool, handleRender(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleContributions(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 180 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		includeContributors := request.GetBool("include_contributors", true)

		body, err := get(ctx, client, apiURL+"/api/v1/contributions", apiKey)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp contributionsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Total contributions: %d\nNamed contributors: %d\nSource: %s\n",
			resp.TotalContributionsCount, len(resp.Contributors), resp.Source)
		if includeContributors && len(resp.Contributors) > 0 {
			b.WriteString("\n")
			for _, c := range resp.Contributors {
				fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.AmountLabel)
			}
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleRender(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 180 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q := url.Values{}
		q.Set("format", request.GetString("format", "markdown"))
		if sel := request.GetString("selector", ""); sel != "" {
			q.Set("selector", sel)
		}
		if request.GetBool("full", false) {
			q.Set("full", "1")
		}

		body, err := get(ctx, client, apiURL+"/api/v1/render?"+q.Encode(), apiKey)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

// get performs an authenticated GET and turns API error bodies into errors.
func get(ctx context.Context, client *http.Client, target, apiKey string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	if apiKey != "" {
		httpReq.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		if json.Unmarshal(body, &e) == nil && e.Code != "" {
			return nil, fmt.Errorf("[%s] %s: %s", e.Code, e.Error, e.Details)
		}
		return nil, fmt.Errorf("API returned HTTP %d", resp.StatusCode)
	}
	return body, nil
}
