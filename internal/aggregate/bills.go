package aggregate

import (
	"context"
	"errors"
	"log"

	"github.com/david/assembly-tracker/internal/assembly"
	"github.com/david/assembly-tracker/internal/models"
)

type PrimarySource interface {
	FetchPrimaryBills(ctx context.Context, memberName string) ([]assembly.Row, error)
}

type CollabSource interface {
	FetchCollaborativeBills(ctx context.Context) ([]assembly.CollabRow, error)
}

type BillStore interface {
	UpsertBill(ctx context.Context, b models.Bill) error
}

// BillAggregator merges the primary-sponsor listing with the co-sponsor
// listing and enriches every bill.
type BillAggregator struct {
	Primary  PrimarySource
	Collab   CollabSource
	Enricher DetailEnricher
	Store    BillStore // optional
}

// AggregateBills returns primary-sponsor bills followed by co-sponsored
// bills, each group in source order. A failing source contributes what it
// managed to collect; only cancellation fails the whole aggregation.
func (a *BillAggregator) AggregateBills(ctx context.Context, memberName string) ([]models.Bill, error) {
	log.Printf("[Aggregator] Fetching bills for member: %s", memberName)

	bills := a.primaryBills(ctx, memberName)
	primaryCount := len(bills)
	bills = append(bills, a.collabBills(ctx)...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, len(bills))
	for i, b := range bills {
		ids[i] = b.BillID
	}
	for i, d := range enrichEach(ctx, a.Enricher, ids) {
		bills[i] = bills[i].WithDetail(d)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Printf("[Aggregator] %d bills (%d primary, %d co-sponsored)", len(bills), primaryCount, len(bills)-primaryCount)
	a.persist(ctx, bills)
	return bills, nil
}

func (a *BillAggregator) primaryBills(ctx context.Context, memberName string) []models.Bill {
	rows, err := a.Primary.FetchPrimaryBills(ctx, memberName)
	if err != nil {
		if len(rows) == 0 {
			log.Printf("[Aggregator] ❌ Primary listing failed: %v", err)
		} else {
			log.Printf("[Aggregator] ⚠️ Primary listing incomplete, keeping %d rows: %v", len(rows), err)
		}
	}

	bills := make([]models.Bill, 0, len(rows))
	for _, row := range rows {
		bills = append(bills, models.Bill{
			Provenance:  models.PrimarySponsor,
			BillID:      row.String("BILL_ID"),
			BillName:    row.String("BILL_NAME"),
			ProposeDate: row.String("PROPOSE_DT"),
			Committee:   row.String("COMMITTEE"),
			Proposer:    row.String("PROPOSER"),
			BillLink:    row.String("DETAIL_LINK"),
			ProcDate:    row.String("PROC_DT"),
		})
	}
	return bills
}

func (a *BillAggregator) collabBills(ctx context.Context) []models.Bill {
	if a.Collab == nil {
		return nil
	}
	rows, err := a.Collab.FetchCollaborativeBills(ctx)
	if err != nil {
		if errors.Is(err, assembly.ErrAuthentication) {
			log.Printf("[Aggregator] ❌ Portal session rejected, skipping co-sponsored bills: %v", err)
		} else {
			log.Printf("[Aggregator] ❌ Co-sponsor listing failed (%d rows kept): %v", len(rows), err)
		}
	}

	bills := make([]models.Bill, 0, len(rows))
	for _, row := range rows {
		bills = append(bills, models.Bill{
			Provenance:  models.CoSponsor,
			BillID:      row.BillID,
			BillName:    row.BillName,
			ProposeDate: row.ProposeDate,
			Committee:   row.Committee,
			Proposer:    row.Proposer,
			BillLink:    row.BillLink,
		})
	}
	return bills
}

func (a *BillAggregator) persist(ctx context.Context, bills []models.Bill) {
	if a.Store == nil {
		return
	}
	saved, failed := 0, 0
	for _, b := range bills {
		if b.BillID == "" {
			continue
		}
		if err := a.Store.UpsertBill(ctx, b); err != nil {
			log.Printf("[Aggregator] Failed to save bill %s: %v", b.BillID, err)
			failed++
			continue
		}
		saved++
	}
	log.Printf("[Aggregator] Saved %d bills (%d failed)", saved, failed)
}
