package enrich

import (
	"context"
	"fmt"
	"log"

	"github.com/david/assembly-tracker/internal/models"
)

// SummaryStore is the slice of the persistent store the retrier needs.
type SummaryStore interface {
	ListBillsBySummary(ctx context.Context, summary string) ([]models.Bill, error)
	UpdateBillSummary(ctx context.Context, billID, summary string) error
}

// SummaryRetrier revisits stored bills whose summarization failed.
type SummaryRetrier struct {
	Store    SummaryStore
	Enricher *Enricher
}

// RetryFailed re-summarizes every bill stored with the failure placeholder
// and returns how many were fixed.
func (r *SummaryRetrier) RetryFailed(ctx context.Context) (int, error) {
	bills, err := r.Store.ListBillsBySummary(ctx, models.SummaryFailed)
	if err != nil {
		return 0, fmt.Errorf("error listing failed summaries: %w", err)
	}
	if len(bills) == 0 {
		return 0, nil
	}

	log.Printf("[SummaryRetry] Reprocessing %d failed summaries", len(bills))
	fixed := 0
	for _, b := range bills {
		if err := ctx.Err(); err != nil {
			return fixed, err
		}

		summary := r.Enricher.SummaryFor(ctx, b.Details)
		if summary == models.SummaryFailed {
			continue
		}
		if err := r.Store.UpdateBillSummary(ctx, b.BillID, summary); err != nil {
			log.Printf("[SummaryRetry] Failed to update %s: %v", b.BillID, err)
			continue
		}
		r.Enricher.Remember(b.BillID, models.Detail{Details: b.Details, Summary: summary})
		fixed++
	}

	log.Printf("[SummaryRetry] Fixed %d/%d summaries", fixed, len(bills))
	return fixed, nil
}
