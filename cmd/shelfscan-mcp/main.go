package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/shelfscan/models"
)

// previewRecords caps the records echoed back in a tool result.
const previewRecords = 25

func main() {
	apiURL := os.Getenv("SHELFSCAN_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("SHELFSCAN_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "SHELFSCAN_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"shelfscan",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	listSitesTool := mcp.NewTool("list_sites",
		mcp.WithDescription("List the grocery retailers that can be scraped, with their pagination and extraction strategies."),
	)
	s.AddTool(listSitesTool, handleListSites(apiURL, apiKey))

	startScrapeTool := mcp.NewTool("start_scrape",
		mcp.WithDescription("Scrape product listings (name, price, weight) for one or more categories of a grocery site. Drives a headless browser through every page of each category and waits for the job to finish."),
		mcp.WithString("site",
			mcp.Required(),
			mcp.Description("Retailer name as returned by list_sites, e.g. 'aldi', 'tesco', 'ocado'"),
		),
		mcp.WithArray("categories",
			mcp.Required(),
			mcp.Description("Categories as 'id=slug' strings, e.g. 'milk=chilled-food/milk'. A bare slug doubles as the id."),
		),
		mcp.WithNumber("workers",
			mcp.Description("Number of categories scraped concurrently (default: server setting, max: 32)"),
		),
		mcp.WithString("format",
			mcp.Description("Output file format: 'csv' (default) or 'columnar'"),
			mcp.Enum("csv", "columnar"),
		),
		mcp.WithString("folder",
			mcp.Description("Sub-folder of the output location"),
		),
		mcp.WithString("prefix",
			mcp.Description("Output file name prefix (default: 'products')"),
		),
		mcp.WithNumber("max_age",
			mcp.Description("Accept a cached result up to this many milliseconds old"),
		),
	)
	s.AddTool(startScrapeTool, handleStartScrape(apiURL, apiKey))

	getJobTool := mcp.NewTool("get_job",
		mcp.WithDescription("Fetch the status and results of a scrape job by ID."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Job ID returned by start_scrape"),
		),
	)
	s.AddTool(getJobTool, handleGetJob(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiDo sends a request to the Shelfscan API and returns the response body.
func apiDo(ctx context.Context, client *http.Client, method, url, apiKey string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// apiError extracts the error of a failed response, if any.
func apiError(body []byte) string {
	var errResp models.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == nil {
		return ""
	}
	return fmt.Sprintf("[%s] %s", errResp.Error.Code, errResp.Error.Message)
}

// pollJobCompletion polls a job until its status is no longer "processing"
// or ctx is cancelled.
func pollJobCompletion(ctx context.Context, client *http.Client, apiURL, apiKey, id string) (*models.JobStatusResponse, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			body, err := apiDo(ctx, client, http.MethodGet, apiURL+"/api/v1/jobs/"+id, apiKey, nil)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}
			var status models.JobStatusResponse
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}
			if status.Status != models.JobProcessing {
				return &status, nil
			}
		}
	}
}

func handleListSites(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		body, err := apiDo(ctx, client, http.MethodGet, apiURL+"/api/v1/sites", apiKey, nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("sites request failed: %v", err)), nil
		}
		if msg := apiError(body); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}

		var resp models.SitesResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse sites response: %v", err)), nil
		}

		var sb strings.Builder
		for _, s := range resp.Sites {
			weight := "no weight"
			if s.Weight {
				weight = "with weight"
			}
			sb.WriteString(fmt.Sprintf("%s: %s, %s extraction, %s\n  %s\n", s.Name, s.Pagination, s.Extraction, weight, s.ExampleURL))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleStartScrape(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		siteName, err := request.RequireString("site")
		if err != nil {
			return mcp.NewToolResultError("site is required"), nil
		}
		raw, err := request.RequireStringSlice("categories")
		if err != nil {
			return mcp.NewToolResultError("categories is required and must be an array of strings"), nil
		}

		categories := make([]models.Category, 0, len(raw))
		for _, r := range raw {
			c, err := models.ParseCategory(r)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			categories = append(categories, c)
		}

		payload := models.JobRequest{
			Site:       siteName,
			Categories: categories,
			Workers:    request.GetInt("workers", 0),
			MaxAge:     request.GetInt("max_age", 0),
		}
		format := request.GetString("format", "")
		folder := request.GetString("folder", "")
		prefix := request.GetString("prefix", "")
		if format != "" || folder != "" || prefix != "" {
			payload.Output = &models.OutputOptions{Prefix: prefix, Folder: folder, Format: format}
		}

		body, err := apiDo(ctx, client, http.MethodPost, apiURL+"/api/v1/jobs", apiKey, payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("job request failed: %v", err)), nil
		}
		if msg := apiError(body); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}

		var jobResp models.JobResponse
		if err := json.Unmarshal(body, &jobResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse job response: %v", err)), nil
		}
		if jobResp.ID == "" {
			return mcp.NewToolResultError("job creation failed"), nil
		}

		status, err := pollJobCompletion(ctx, client, apiURL, apiKey, jobResp.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling job %s failed: %v", jobResp.ID, err)), nil
		}
		return mcp.NewToolResultText(formatJob(status)), nil
	}
}

func handleGetJob(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}

		body, err := apiDo(ctx, client, http.MethodGet, apiURL+"/api/v1/jobs/"+id, apiKey, nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("job request failed: %v", err)), nil
		}
		if msg := apiError(body); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}

		var status models.JobStatusResponse
		if err := json.Unmarshal(body, &status); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse job status: %v", err)), nil
		}
		return mcp.NewToolResultText(formatJob(&status)), nil
	}
}

func formatJob(s *models.JobStatusResponse) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job %s (%s): %s, %d/%d categories, %d records\n",
		s.ID, s.Site, s.Status, s.Completed, s.Total, s.RecordCount))
	if s.Location != "" {
		sb.WriteString("Written to: " + s.Location + "\n")
	}
	if s.CacheStatus != "" {
		sb.WriteString("Cache: " + s.CacheStatus + "\n")
	}
	if s.Error != nil {
		sb.WriteString(fmt.Sprintf("Error: [%s] %s\n", s.Error.Code, s.Error.Message))
	}

	sb.WriteString("\n")
	for _, c := range s.Categories {
		line := fmt.Sprintf("- %s: pages %d/%d", c.Category, c.PagesSucceeded, c.PagesAttempted)
		if c.ExpectedCount > 0 {
			line += fmt.Sprintf(", expected %d items", c.ExpectedCount)
		}
		if c.Failure != "" {
			line += ", FAILED: " + c.Failure
		}
		sb.WriteString(line + "\n")
	}

	if len(s.Records) > 0 {
		sb.WriteString("\nproduct_name | price | weight | category\n")
		for i, r := range s.Records {
			if i == previewRecords {
				sb.WriteString(fmt.Sprintf("... %d more\n", len(s.Records)-previewRecords))
				break
			}
			sb.WriteString(fmt.Sprintf("%s | %s | %s | %s\n", r.ProductName, r.Price, r.Weight, r.Category))
		}
	}
	return sb.String()
}
