package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/david/assembly-tracker/internal/config"
	"github.com/david/assembly-tracker/internal/db"
	"github.com/david/assembly-tracker/internal/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func main() {
	limit := flag.Int("limit", 20, "Rows to print per table (0 prints all)")
	failedOnly := flag.Bool("failed", false, "Only list bills whose summary generation failed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	store, err := db.Open(ctx, cfg.DatabaseURL())
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	var bills []models.Bill
	if *failedOnly {
		bills, err = store.ListBillsBySummary(ctx, models.SummaryFailed)
	} else {
		bills, err = store.ListBills(ctx)
	}
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Bills")
	t.AppendHeader(table.Row{"Bill ID", "Name", "Proposed", "Committee", "Summary"})
	for i, b := range bills {
		if *limit > 0 && i >= *limit {
			break
		}
		t.AppendRow(table.Row{b.BillID, text.Trim(b.BillName, 40), b.ProposeDate, b.Committee, text.Trim(b.Summary, 50)})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(bills)})
	t.Render()

	if *failedOnly {
		return
	}

	votes, err := store.ListVotes(ctx)
	if err != nil {
		log.Fatal(err)
	}

	vt := table.NewWriter()
	vt.SetOutputMirror(os.Stdout)
	vt.SetTitle("Votes")
	vt.AppendHeader(table.Row{"Bill ID", "Member", "Result", "Summary"})
	for i, v := range votes {
		if *limit > 0 && i >= *limit {
			break
		}
		vt.AppendRow(table.Row{v.BillID, v.MemberName, v.Result, text.Trim(v.Details.Summary, 50)})
	}
	vt.AppendFooter(table.Row{"", "", "Total", len(votes)})
	vt.Render()
}
