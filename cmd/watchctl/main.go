package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	// Global flags
	serverURL string

	// start command flags
	keyword      string
	maxArticles  int
	noWait       bool
	pollInterval time.Duration
	waitTimeout  time.Duration

	// status/report command flags
	runID      string
	outputFile string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "watchctl",
	Short:   "Control litwatch monitoring runs",
	Version: version,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a monitoring run for a keyword",
	Long: `Start a monitoring run for a keyword.

The run executes asynchronously on the server. By default the command
polls until the run reaches a terminal state and prints the outcome,
including the report path for completed runs.

Examples:
  # Run to completion and print the result
  watchctl start --keyword "quantum error correction"

  # Collect 15 articles
  watchctl start --keyword "protein folding" --max-articles 15

  # Enqueue only, check later with status
  watchctl start --keyword "dark matter" --no-wait`,
	RunE: runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a run",
	RunE:  runStatus,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Fetch the Markdown report of a completed run",
	RunE:  runReport,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "litwatch server URL (defaults to LITWATCH_URL or http://localhost:9020)")

	startCmd.Flags().StringVar(&keyword, "keyword", "", "search keyword (required)")
	startCmd.Flags().IntVar(&maxArticles, "max-articles", 0, "articles to collect (3-20, 0 uses the server default)")
	startCmd.Flags().BoolVar(&noWait, "no-wait", false, "enqueue the run and return immediately")
	startCmd.Flags().DurationVar(&pollInterval, "poll-interval", 2*time.Second, "interval between status polls")
	startCmd.Flags().DurationVar(&waitTimeout, "timeout", 15*time.Minute, "give up waiting after this long")
	_ = startCmd.MarkFlagRequired("keyword")

	statusCmd.Flags().StringVar(&runID, "run-id", "", "run id (required)")
	_ = statusCmd.MarkFlagRequired("run-id")

	reportCmd.Flags().StringVar(&runID, "run-id", "", "run id (required)")
	reportCmd.Flags().StringVarP(&outputFile, "output", "o", "", "write the report to a file instead of stdout")
	_ = reportCmd.MarkFlagRequired("run-id")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reportCmd)
}

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient() *apiClient {
	base := serverURL
	if base == "" {
		base = os.Getenv("LITWATCH_URL")
	}
	if base == "" {
		base = "http://localhost:9020"
	}
	return &apiClient{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type runPayload struct {
	ID            string    `json:"id"`
	Keyword       string    `json:"keyword"`
	MaxArticles   int       `json:"max_articles"`
	Status        string    `json:"status"`
	ArticleIDs    []string  `json:"article_ids"`
	QuickSummary  string    `json:"quick_summary"`
	FailureReason string    `json:"failure_reason"`
	ReportPath    string    `json:"report_path"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type summaryPayload struct {
	ArticleSourceID string `json:"article_source_id"`
	Status          string `json:"status"`
	SummaryText     string `json:"summary_text"`
	ErrorDetail     string `json:"error_detail"`
}

type synthesisPayload struct {
	SynthesisText   string   `json:"synthesis_text"`
	CitedArticleIDs []string `json:"cited_article_ids"`
}

type detailsPayload struct {
	Run       runPayload        `json:"run"`
	Summaries []summaryPayload  `json:"summaries"`
	Synthesis *synthesisPayload `json:"synthesis"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func (c *apiClient) startRun(ctx context.Context, keyword string, maxArticles int) (*runPayload, error) {
	body := map[string]any{"keyword": keyword}
	if maxArticles > 0 {
		body["max_articles"] = maxArticles
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/runs", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return nil, apiError(resp)
	}

	var run runPayload
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &run, nil
}

func (c *apiClient) getRun(ctx context.Context, id string) (*detailsPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/runs/"+id, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var details detailsPayload
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &details, nil
}

func (c *apiClient) getReport(ctx context.Context, id string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/runs/"+id+"/report", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	return io.ReadAll(resp.Body)
}

func apiError(resp *http.Response) error {
	var payload errorPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Message != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, payload.Message)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := newAPIClient()
	run, err := client.startRun(ctx, keyword, maxArticles)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}

	fmt.Printf("Run %s accepted (keyword %q, %d articles).\n", run.ID, run.Keyword, run.MaxArticles)

	if noWait {
		fmt.Printf("Check progress with: watchctl status --run-id %s\n", run.ID)
		return nil
	}

	details, err := pollUntilDone(ctx, client, run.ID)
	if err != nil {
		return err
	}

	fmt.Println()
	printRun(&details.Run)
	if details.Synthesis != nil {
		fmt.Printf("\n%s\n", details.Synthesis.SynthesisText)
	}

	if details.Run.Status == "failed" {
		return fmt.Errorf("run failed: %s", details.Run.FailureReason)
	}
	return nil
}

func pollUntilDone(ctx context.Context, client *apiClient, id string) (*detailsPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastStatus := ""
	for {
		details, err := client.getRun(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("poll run: %w", err)
		}

		if details.Run.Status != lastStatus {
			fmt.Printf("  %s\n", details.Run.Status)
			lastStatus = details.Run.Status
		}
		if details.Run.Status == "completed" || details.Run.Status == "failed" {
			return details, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up waiting for run %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := newAPIClient()
	details, err := client.getRun(cmd.Context(), runID)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}

	printRun(&details.Run)

	if len(details.Summaries) > 0 {
		fmt.Printf("\nSummaries:\n")
		for _, s := range details.Summaries {
			fmt.Printf("  %-16s %s\n", s.ArticleSourceID, s.Status)
		}
	}
	if details.Synthesis != nil {
		fmt.Printf("\nSynthesis:\n%s\n", details.Synthesis.SynthesisText)
	}
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	client := newAPIClient()
	data, err := client.getReport(cmd.Context(), runID)
	if err != nil {
		return fmt.Errorf("fetch report: %w", err)
	}

	if outputFile == "" {
		fmt.Print(string(data))
		return nil
	}
	if err := os.WriteFile(outputFile, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Printf("Report written to %s (%d bytes)\n", outputFile, len(data))
	return nil
}

func printRun(run *runPayload) {
	fmt.Printf("Run Status:\n")
	fmt.Printf("  ID:           %s\n", run.ID)
	fmt.Printf("  Keyword:      %s\n", run.Keyword)
	fmt.Printf("  Status:       %s\n", run.Status)
	fmt.Printf("  Max Articles: %d\n", run.MaxArticles)
	if len(run.ArticleIDs) > 0 {
		fmt.Printf("  Articles:     %s\n", strings.Join(run.ArticleIDs, ", "))
	}
	if run.QuickSummary != "" {
		fmt.Printf("  Quick Look:   %s\n", run.QuickSummary)
	}
	if run.FailureReason != "" {
		fmt.Printf("  Failure:      %s\n", run.FailureReason)
	}
	if run.ReportPath != "" {
		fmt.Printf("  Report:       %s\n", run.ReportPath)
	}
	fmt.Printf("  Created At:   %s\n", run.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  Updated At:   %s\n", run.UpdatedAt.Format(time.RFC3339))
}
