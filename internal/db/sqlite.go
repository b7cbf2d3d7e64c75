package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/david/assembly-tracker/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the local-development store, same schema as Postgres.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating db dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite db: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	conn.SetMaxOpenConns(1)

	s := &SQLiteStore{db: conn}
	if err := s.init(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS bills (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			bill_id      TEXT NOT NULL UNIQUE,
			bill_name    TEXT,
			propose_date TEXT,
			committee    TEXT,
			proposer     TEXT,
			bill_link    TEXT,
			details      TEXT,
			summary      TEXT,
			proc_dt      TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_bills_summary ON bills(summary);

		CREATE TABLE IF NOT EXISTS votes (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			bill_id     TEXT NOT NULL,
			vote_result TEXT,
			m_name      TEXT NOT NULL,
			details     TEXT,
			UNIQUE (bill_id, m_name)
		);
		CREATE INDEX IF NOT EXISTS idx_votes_bill_id ON votes(bill_id);
	`)
	if err != nil {
		return fmt.Errorf("error initializing sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertBill(ctx context.Context, b models.Bill) error {
	if b.BillID == "" {
		return fmt.Errorf("bill without bill id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bills (`+billColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (bill_id) DO UPDATE SET
			bill_name = excluded.bill_name,
			propose_date = excluded.propose_date,
			committee = excluded.committee,
			proposer = excluded.proposer,
			bill_link = excluded.bill_link,
			details = excluded.details,
			summary = excluded.summary,
			proc_dt = excluded.proc_dt
	`, b.BillID, b.BillName, b.ProposeDate, b.Committee, b.Proposer, b.BillLink,
		b.Details, b.Summary, nilIfEmpty(b.ProcDate))
	if err != nil {
		return fmt.Errorf("error upserting bill %s: %w", b.BillID, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertVote(ctx context.Context, v models.Vote) error {
	billID, result, member, details, err := voteColumns(v)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO votes (bill_id, vote_result, m_name, details)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (bill_id, m_name) DO UPDATE SET
			vote_result = excluded.vote_result,
			details = excluded.details
	`, billID, result, member, details)
	if err != nil {
		return fmt.Errorf("error upserting vote %s/%s: %w", billID, member, err)
	}
	return nil
}

func (s *SQLiteStore) ListBills(ctx context.Context) ([]models.Bill, error) {
	return s.queryBills(ctx, `SELECT `+billColumns+` FROM bills ORDER BY id`)
}

func (s *SQLiteStore) ListBillsBySummary(ctx context.Context, summary string) ([]models.Bill, error) {
	return s.queryBills(ctx, `SELECT `+billColumns+` FROM bills WHERE summary = ? ORDER BY id`, summary)
}

func (s *SQLiteStore) queryBills(ctx context.Context, query string, args ...any) ([]models.Bill, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SQLiteStore) UpdateBillSummary(ctx context.Context, billID, summary string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE bills SET summary = ? WHERE bill_id = ?`, summary, billID)
	if err != nil {
		return fmt.Errorf("error updating summary of %s: %w", billID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("bill %s not found", billID)
	}
	return nil
}

func (s *SQLiteStore) ListVotes(ctx context.Context) ([]models.Vote, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bill_id, vote_result, m_name, details FROM votes ORDER BY id`)
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

func (s *SQLiteStore) Close() {
	s.db.Close()
}

// CountRows returns the number of rows in table ("bills" or "votes").
func (s *SQLiteStore) CountRows(ctx context.Context, table string) (int, error) {
	if table != "bills" && table != "votes" {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n)
	return n, err
}
