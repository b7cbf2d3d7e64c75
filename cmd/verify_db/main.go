package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/david/assembly-tracker/internal/config"
	"github.com/david/assembly-tracker/internal/db"
	"github.com/david/assembly-tracker/internal/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Unable to load config: %v", err)
	}

	ctx := context.Background()
	store, err := db.Open(ctx, cfg.DatabaseURL())
	if err != nil {
		log.Fatalf("Unable to open database: %v", err)
	}
	defer store.Close()

	bills, err := store.ListBills(ctx)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	votes, err := store.ListVotes(ctx)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	var withDetails, withSummary, failed int
	for _, b := range bills {
		if b.Details != "" && b.Details != models.DetailNotFound && b.Details != models.DetailMissingID {
			withDetails++
		}
		switch b.Summary {
		case "", models.SummaryUnavailable, models.SummaryInsufficient:
		case models.SummaryFailed:
			failed++
		default:
			withSummary++
		}
	}

	results := map[string]int{}
	for _, v := range votes {
		results[v.Result]++
	}

	backend := "postgres"
	if strings.HasPrefix(cfg.DatabaseURL(), "sqlite:") {
		backend = "sqlite"
	}
	fmt.Printf("Database: %s\n", backend)
	fmt.Printf("Total bills: %d\n", len(bills))
	fmt.Printf("With details: %d\n", withDetails)
	fmt.Printf("With summary: %d\n", withSummary)
	fmt.Printf("Summary failed: %d\n", failed)
	fmt.Printf("Total votes: %d\n", len(votes))
	for result, n := range results {
		fmt.Printf("  %s: %d\n", result, n)
	}
}
