package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/david/assembly-tracker/internal/models"
)

// Store persists aggregated bills and votes. Both upserts are keyed by the
// natural identifier so replaying an aggregation never duplicates rows.
type Store interface {
	UpsertBill(ctx context.Context, b models.Bill) error
	UpsertVote(ctx context.Context, v models.Vote) error
	ListBills(ctx context.Context) ([]models.Bill, error)
	ListVotes(ctx context.Context) ([]models.Vote, error)
	ListBillsBySummary(ctx context.Context, summary string) ([]models.Bill, error)
	UpdateBillSummary(ctx context.Context, billID, summary string) error
	Close()
}

const unknownValue = "unknown"

// voteColumns normalizes the values written for a vote row.
func voteColumns(v models.Vote) (billID, result, member, details string, err error) {
	if v.BillID == "" {
		return "", "", "", "", fmt.Errorf("vote without bill id")
	}
	result = v.Result
	if result == "" {
		result = unknownValue
	}
	member = v.MemberName
	if member == "" {
		member = unknownValue
	}
	return v.BillID, result, member, formatVoteDetails(v.Details), nil
}

// formatVoteDetails flattens a detail pair into the single details column.
func formatVoteDetails(d models.Detail) string {
	return "Details: " + d.Details + "\nSummary: " + d.Summary
}

// parseVoteDetails reverses formatVoteDetails. Text in any other shape is
// returned as details.
func parseVoteDetails(s string) models.Detail {
	rest, ok := strings.CutPrefix(s, "Details: ")
	if !ok {
		return models.Detail{Details: s}
	}
	idx := strings.LastIndex(rest, "\nSummary: ")
	if idx < 0 {
		return models.Detail{Details: rest}
	}
	return models.Detail{Details: rest[:idx], Summary: rest[idx+len("\nSummary: "):]}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
