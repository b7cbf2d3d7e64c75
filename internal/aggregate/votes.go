package aggregate

import (
	"context"
	"log"

	"github.com/david/assembly-tracker/internal/assembly"
	"github.com/david/assembly-tracker/internal/models"
	"golang.org/x/sync/errgroup"
)

type VoteSource interface {
	FetchSessionBillIDs(ctx context.Context) ([]string, error)
	FetchVotes(ctx context.Context, billID, memberName string) ([]assembly.Row, error)
}

type VoteStore interface {
	UpsertVote(ctx context.Context, v models.Vote) error
}

// VoteAggregator collects a member's roll-call votes. The vote API can only
// be queried per bill, so every bill of the session is checked.
type VoteAggregator struct {
	Source      VoteSource
	Enricher    DetailEnricher
	Store       VoteStore // optional
	Concurrency int       // parallel vote queries, default 4
}

// AggregateVotes returns the member's votes ordered like the session's bill
// list. Bills whose vote query fails are skipped.
func (a *VoteAggregator) AggregateVotes(ctx context.Context, memberName string) ([]models.Vote, error) {
	log.Printf("[VoteAggregator] Fetching vote data for member: %s", memberName)

	ids, err := a.Source.FetchSessionBillIDs(ctx)
	if err != nil {
		log.Printf("[VoteAggregator] ⚠️ Bill list incomplete, continuing with %d ids: %v", len(ids), err)
	}

	perBill := make([][]models.Vote, len(ids))
	limit := a.Concurrency
	if limit <= 0 {
		limit = 4
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			rows, err := a.Source.FetchVotes(ctx, id, memberName)
			if err != nil {
				log.Printf("[VoteAggregator] Vote query for %s failed: %v", id, err)
				return nil
			}
			for _, row := range rows {
				if name := row.String("HG_NM"); name != "" && name != memberName {
					continue
				}
				perBill[i] = append(perBill[i], voteFromRow(row, id, memberName))
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	votes := make([]models.Vote, 0, len(ids))
	for _, vs := range perBill {
		votes = append(votes, vs...)
	}

	billIDs := make([]string, len(votes))
	for i, v := range votes {
		billIDs[i] = v.BillID
	}
	for i, d := range enrichEach(ctx, a.Enricher, billIDs) {
		votes[i].Details = d
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Printf("[VoteAggregator] %d votes across %d session bills", len(votes), len(ids))
	a.persist(ctx, votes)
	return votes, nil
}

func voteFromRow(row assembly.Row, billID, memberName string) models.Vote {
	v := models.Vote{
		BillID:     row.String("BILL_ID"),
		BillName:   row.String("BILL_NAME"),
		Result:     row.String("RESULT_VOTE_MOD"),
		MemberName: row.String("HG_NM"),
		VoteDate:   row.String("VOTE_DATE"),
	}
	if v.BillID == "" {
		v.BillID = billID
	}
	if v.Result == "" {
		v.Result = row.String("RESULT")
	}
	if v.MemberName == "" {
		v.MemberName = memberName
	}
	return v
}

func (a *VoteAggregator) persist(ctx context.Context, votes []models.Vote) {
	if a.Store == nil {
		return
	}
	failed := 0
	for _, v := range votes {
		if err := a.Store.UpsertVote(ctx, v); err != nil {
			log.Printf("[VoteAggregator] Failed to save vote %s: %v", v.BillID, err)
			failed++
		}
	}
	log.Printf("[VoteAggregator] Saved %d votes (%d failed)", len(votes)-failed, failed)
}
