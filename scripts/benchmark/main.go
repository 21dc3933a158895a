// Command benchmark hammers a running pledgescope server with sequential
// contribution scrapes and reports how often each strategy won, how long the
// scrapes took and how stable the reported totals were.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/use-agent/pledgescope/models"
)

// CLI flags
var (
	apiURL = flag.String("api-url", "http://localhost:8080", "pledgescope API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	runs   = flag.Int("runs", 10, "number of sequential scrapes")
	pause  = flag.Duration("pause", 2*time.Second, "pause between scrapes")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// --- Result types ---

type runResult struct {
	Run          int    `json:"run"`
	LatencyMs    int64  `json:"latency_ms"`
	ServerMs     int64  `json:"server_ms"`
	HTTPStatus   int    `json:"http_status"`
	Source       string `json:"source,omitempty"`
	Total        int    `json:"total"`
	Contributors int    `json:"contributors"`
	ErrorCode    string `json:"error_code,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (r runResult) ok() bool {
	return r.HTTPStatus == http.StatusOK && r.Error == ""
}

type sourceStats struct {
	Source string `json:"source"`
	Runs   int    `json:"runs"`
	P50Ms  int64  `json:"p50_ms"`
	P95Ms  int64  `json:"p95_ms"`
	MinTot int    `json:"min_total"`
	MaxTot int    `json:"max_total"`
}

type benchmarkReport struct {
	Timestamp string         `json:"timestamp"`
	APIURL    string         `json:"api_url"`
	Runs      []runResult    `json:"runs"`
	Sources   []sourceStats  `json:"sources"`
	Failures  map[string]int `json:"failures"`
}

func main() {
	flag.Parse()

	fmt.Println("=== pledgescope soak ===")
	fmt.Printf("API URL:  %s\n", *apiURL)
	fmt.Printf("Runs:     %d\n", *runs)
	fmt.Printf("Output:   %s\n", *output)
	fmt.Println()

	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	report := benchmarkReport{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		APIURL:    *apiURL,
	}

	for i := 1; i <= *runs; i++ {
		fmt.Printf("  Run %d/%d ... ", i, *runs)
		rr := scrape(client, *apiURL, *apiKey, i)
		if rr.ok() {
			fmt.Printf("OK  %dms  %s  %d/%d\n", rr.LatencyMs, rr.Source, rr.Contributors, rr.Total)
		} else {
			fmt.Printf("FAILED (%d %s): %s\n", rr.HTTPStatus, rr.ErrorCode, rr.Error)
		}
		report.Runs = append(report.Runs, rr)
		if i < *runs {
			time.Sleep(*pause)
		}
	}

	report.Sources, report.Failures = summarize(report.Runs)
	fmt.Println()
	printTable(os.Stdout, report)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// scrape runs one GET /api/v1/contributions and records what came back.
func scrape(client *http.Client, baseURL, key string, run int) runResult {
	rr := runResult{Run: run}

	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/contributions", nil)
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	rr.LatencyMs = time.Since(start).Milliseconds()
	rr.HTTPStatus = resp.StatusCode
	rr.ServerMs, _ = strconv.ParseInt(resp.Header.Get("X-Elapsed-Ms"), 10, 64)
	if err != nil {
		rr.Error = fmt.Sprintf("read body: %v", err)
		return rr
	}

	if resp.StatusCode != http.StatusOK {
		var er models.ErrorResponse
		if json.Unmarshal(body, &er) == nil {
			rr.ErrorCode = er.Code
			rr.Error = er.Error
		} else {
			rr.Error = http.StatusText(resp.StatusCode)
		}
		return rr
	}

	var cr models.ContributionsResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}
	rr.Source = cr.Source
	rr.Total = cr.TotalContributionsCount
	rr.Contributors = len(cr.Contributors)
	return rr
}

// summarize groups successful runs by source and counts failures by code.
func summarize(results []runResult) ([]sourceStats, map[string]int) {
	bySource := map[string][]runResult{}
	var order []string
	failures := map[string]int{}

	for _, r := range results {
		if !r.ok() {
			code := r.ErrorCode
			if code == "" {
				code = "TRANSPORT"
			}
			failures[code]++
			continue
		}
		if _, seen := bySource[r.Source]; !seen {
			order = append(order, r.Source)
		}
		bySource[r.Source] = append(bySource[r.Source], r)
	}

	stats := make([]sourceStats, 0, len(order))
	for _, src := range order {
		rs := bySource[src]
		lat := make([]int64, len(rs))
		st := sourceStats{Source: src, Runs: len(rs), MinTot: rs[0].Total, MaxTot: rs[0].Total}
		for i, r := range rs {
			lat[i] = r.LatencyMs
			st.MinTot = min(st.MinTot, r.Total)
			st.MaxTot = max(st.MaxTot, r.Total)
		}
		slices.Sort(lat)
		st.P50Ms = percentile(lat, 50)
		st.P95Ms = percentile(lat, 95)
		stats = append(stats, st)
	}
	return stats, failures
}

// percentile uses nearest rank on a sorted slice.
func percentile(sorted []int64, p int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p*len(sorted)+99)/100 - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

func printTable(w io.Writer, report benchmarkReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Source", "Runs", "p50", "p95", "Total range"})
	for _, s := range report.Sources {
		t.AppendRow(table.Row{
			s.Source,
			s.Runs,
			fmt.Sprintf("%dms", s.P50Ms),
			fmt.Sprintf("%dms", s.P95Ms),
			fmt.Sprintf("%d-%d", s.MinTot, s.MaxTot),
		})
	}
	codes := make([]string, 0, len(report.Failures))
	for code := range report.Failures {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		t.AppendRow(table.Row{"failed: " + code, report.Failures[code], "-", "-", "-"})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
