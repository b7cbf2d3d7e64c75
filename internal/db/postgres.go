package db

import (
	"context"
	"fmt"

	"github.com/david/assembly-tracker/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const billColumns = `bill_id, bill_name, propose_date, committee, proposer, bill_link, details, summary, proc_dt`

func (s *PostgresStore) UpsertBill(ctx context.Context, b models.Bill) error {
	if b.BillID == "" {
		return fmt.Errorf("bill without bill id")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bills (`+billColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (bill_id) DO UPDATE SET
			bill_name = EXCLUDED.bill_name,
			propose_date = EXCLUDED.propose_date,
			committee = EXCLUDED.committee,
			proposer = EXCLUDED.proposer,
			bill_link = EXCLUDED.bill_link,
			details = EXCLUDED.details,
			summary = EXCLUDED.summary,
			proc_dt = EXCLUDED.proc_dt
	`, b.BillID, b.BillName, b.ProposeDate, b.Committee, b.Proposer, b.BillLink,
		b.Details, b.Summary, nilIfEmpty(b.ProcDate))
	if err != nil {
		return fmt.Errorf("error upserting bill %s: %w", b.BillID, err)
	}
	return nil
}

func (s *PostgresStore) UpsertVote(ctx context.Context, v models.Vote) error {
	billID, result, member, details, err := voteColumns(v)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO votes (bill_id, vote_result, m_name, details)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (bill_id, m_name) DO UPDATE SET
			vote_result = EXCLUDED.vote_result,
			details = EXCLUDED.details
	`, billID, result, member, details)
	if err != nil {
		return fmt.Errorf("error upserting vote %s/%s: %w", billID, member, err)
	}
	return nil
}

func (s *PostgresStore) ListBills(ctx context.Context) ([]models.Bill, error) {
	return s.queryBills(ctx, `SELECT `+billColumns+` FROM bills ORDER BY id`)
}

func (s *PostgresStore) ListBillsBySummary(ctx context.Context, summary string) ([]models.Bill, error) {
	return s.queryBills(ctx, `SELECT `+billColumns+` FROM bills WHERE summary = $1 ORDER BY id`, summary)
}

func (s *PostgresStore) queryBills(ctx context.Context, query string, args ...any) ([]models.Bill, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying bills: %w", err)
	}
	defer rows.Close()

	var bills []models.Bill
	for rows.Next() {
		b, err := scanBill(rows.Scan)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func (s *PostgresStore) UpdateBillSummary(ctx context.Context, billID, summary string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE bills SET summary = $1 WHERE bill_id = $2`, summary, billID)
	if err != nil {
		return fmt.Errorf("error updating summary of %s: %w", billID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bill %s not found", billID)
	}
	return nil
}

func (s *PostgresStore) ListVotes(ctx context.Context) ([]models.Vote, error) {
	rows, err := s.pool.Query(ctx, `SELECT bill_id, vote_result, m_name, details FROM votes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error querying votes: %w", err)
	}
	defer rows.Close()

	var votes []models.Vote
	for rows.Next() {
		v, err := scanVote(rows.Scan)
		if err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// scanBill reads a row selected with billColumns.
func scanBill(scan func(dest ...any) error) (models.Bill, error) {
	var b models.Bill
	var name, proposeDate, committee, proposer, link, details, summary, procDate *string
	if err := scan(&b.BillID, &name, &proposeDate, &committee, &proposer, &link, &details, &summary, &procDate); err != nil {
		return b, fmt.Errorf("error scanning bill: %w", err)
	}
	b.BillName = deref(name)
	b.ProposeDate = deref(proposeDate)
	b.Committee = deref(committee)
	b.Proposer = deref(proposer)
	b.BillLink = deref(link)
	b.Details = deref(details)
	b.Summary = deref(summary)
	b.ProcDate = deref(procDate)
	return b, nil
}

func scanVote(scan func(dest ...any) error) (models.Vote, error) {
	var v models.Vote
	var result, details *string
	if err := scan(&v.BillID, &result, &v.MemberName, &details); err != nil {
		return v, fmt.Errorf("error scanning vote: %w", err)
	}
	v.Result = deref(result)
	v.Details = parseVoteDetails(deref(details))
	return v, nil
}
