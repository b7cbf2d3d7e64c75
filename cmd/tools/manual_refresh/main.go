package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/david/assembly-tracker/internal/app"
	"github.com/david/assembly-tracker/internal/config"
	"github.com/david/assembly-tracker/internal/models"
	"github.com/jedib0t/go-pretty/v6/table"
)

func main() {
	dataset := flag.String("dataset", models.DatasetBills, "Dataset to aggregate (bills or votes)")
	member := flag.String("member", "", "Member name (defaults to the configured member)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *member == "" {
		*member = cfg.Member.Name
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Refresh.Timeout)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	log.Printf("Starting manual %s aggregation for %s", *dataset, *member)
	started := time.Now()
	value, err := a.Aggregate(ctx, *dataset, *member)
	if err != nil {
		log.Fatalf("Aggregation failed: %v", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Dataset", "Member", "Rows", "Without detail", "Summary failed", "Duration"})

	var rows, noDetail, failed int
	switch v := value.(type) {
	case []models.Bill:
		rows = len(v)
		for _, b := range v {
			noDetail += countIf(b.Details == models.DetailNotFound || b.Details == models.DetailMissingID)
			failed += countIf(b.Summary == models.SummaryFailed)
		}
	case []models.Vote:
		rows = len(v)
		for _, vote := range v {
			noDetail += countIf(vote.Details.Details == models.DetailNotFound || vote.Details.Details == models.DetailMissingID)
			failed += countIf(vote.Details.Summary == models.SummaryFailed)
		}
	}
	t.AppendRow(table.Row{*dataset, *member, rows, noDetail, failed, time.Since(started).Round(time.Second)})
	t.Render()
}

func countIf(ok bool) int {
	if ok {
		return 1
	}
	return 0
}
