package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type startResponse struct {
	Message string `json:"message"`
	JobID   string `json:"job_id"`
	Error   string `json:"error"`
}

type jobResponse struct {
	ID       string         `json:"id"`
	Kind     string         `json:"kind"`
	Status   string         `json:"status"`
	Duration string         `json:"duration"`
	Result   map[string]any `json:"result"`
	Error    string         `json:"error"`
}

type jobMetric struct {
	Target     string
	HTTPStatus int
	JobID      string
	Status     string
	Duration   time.Duration
	Result     map[string]any
	Error      string
}

func main() {
	baseURL := flag.String("base-url", "http://localhost:8080", "API base URL")
	adminSecretFlag := flag.String("admin-secret", "", "Admin secret (or use ADMIN_SECRET env)")
	targetsCSV := flag.String("targets", "bills,votes", "Comma-separated jobs: bills, votes, retry-summaries")
	member := flag.String("member", "", "Member name for refresh jobs (server default when empty)")
	pollEvery := flag.Duration("poll", 3*time.Second, "Job status poll interval")
	timeout := flag.Duration("timeout", 30*time.Minute, "Give up waiting on a job after this long")
	dryRun := flag.Bool("dry-run", false, "Print planned calls only; do not execute")
	flag.Parse()

	adminSecret := strings.TrimSpace(*adminSecretFlag)
	if adminSecret == "" {
		adminSecret = strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
	}
	if adminSecret == "" {
		exitErr(errors.New("missing admin secret: use -admin-secret or ADMIN_SECRET env"))
	}

	targets := splitTargets(*targetsCSV)
	if len(targets) == 0 {
		exitErr(errors.New("no targets provided"))
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(*baseURL, "/")).
		SetHeader("X-Admin-Secret", adminSecret).
		SetTimeout(30 * time.Second)

	metrics := make([]jobMetric, 0, len(targets))
	for _, target := range targets {
		path := jobPath(target)
		if *dryRun {
			fmt.Printf("[DRY-RUN] POST %s%s\n", *baseURL, path)
			continue
		}
		metrics = append(metrics, runJob(client, target, path, *member, *pollEvery, *timeout))
	}
	printReport(metrics)

	for _, m := range metrics {
		if m.Error != "" {
			os.Exit(1)
		}
	}
}

func splitTargets(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if t := strings.TrimSpace(strings.ToLower(part)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func jobPath(target string) string {
	if target == "retry-summaries" {
		return "/api/admin/retry-summaries"
	}
	return "/api/admin/refresh/" + target
}

func runJob(client *resty.Client, target, path, member string, pollEvery, timeout time.Duration) jobMetric {
	metric := jobMetric{Target: target}
	start := time.Now()
	defer func() { metric.Duration = time.Since(start) }()

	var started startResponse
	req := client.R().SetResult(&started).SetError(&started)
	if member != "" && target != "retry-summaries" {
		req.SetQueryParam("member_name", member)
	}
	resp, err := req.Post(path)
	if err != nil {
		metric.Error = err.Error()
		return metric
	}
	metric.HTTPStatus = resp.StatusCode()
	if resp.IsError() {
		metric.Error = fmt.Sprintf("http %d: %s", resp.StatusCode(), started.Error)
		return metric
	}
	metric.JobID = started.JobID

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		time.Sleep(pollEvery)

		var job jobResponse
		resp, err := client.R().SetResult(&job).Get("/api/admin/job/" + started.JobID)
		if err != nil {
			metric.Error = err.Error()
			return metric
		}
		if resp.IsError() {
			metric.Error = fmt.Sprintf("poll: http %d", resp.StatusCode())
			return metric
		}
		metric.Status = job.Status
		if job.Status == "running" {
			continue
		}
		metric.Result = job.Result
		metric.Error = job.Error
		return metric
	}
	metric.Error = "timed out waiting for job"
	return metric
}

func printReport(metrics []jobMetric) {
	if len(metrics) == 0 {
		return
	}
	fmt.Println("\n=== Admin Job Report ===")
	fmt.Printf("%-16s %-6s %-10s %-10s %-8s %-30s %s\n", "target", "http", "job", "status", "sec", "result", "error")
	for _, m := range metrics {
		fmt.Printf("%-16s %-6d %-10s %-10s %-8.1f %-30v %s\n",
			m.Target, m.HTTPStatus, m.JobID, m.Status, m.Duration.Seconds(), m.Result, m.Error)
	}
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
