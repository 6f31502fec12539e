package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"short_bot/logger"
	"short_bot/models"
)

// Journal records every run and its per-symbol outcomes.
type Journal struct {
	DB *sql.DB
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID        string
	StartedAt time.Time
	Aborted   bool
	Reason    string
	Symbols   int
	Protected int
	Critical  int
}

// Open creates the database file and schema if needed.
func Open(dbPath string) (*Journal, error) {
	logger.Debugf("Initializing journal at %s", dbPath)

	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening journal: %w", err)
	}
	// sqlite serialises writers anyway
	db.SetMaxOpenConns(1)

	query := `
    CREATE TABLE IF NOT EXISTS runs (
        id TEXT PRIMARY KEY,
        started_at DATETIME NOT NULL,
        aborted INTEGER NOT NULL,
        reason TEXT,
        symbols INTEGER NOT NULL,
        protected INTEGER NOT NULL,
        critical INTEGER NOT NULL
    );`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating runs table: %w", err)
	}

	query = `
    CREATE TABLE IF NOT EXISTS outcomes (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL REFERENCES runs(id),
        symbol TEXT NOT NULL,
        status TEXT NOT NULL,
        quantity REAL NOT NULL,
        entry_price REAL NOT NULL,
        entry_order_id INTEGER,
        stop_loss_price REAL,
        stop_loss_attempts INTEGER NOT NULL,
        take_profit_price REAL,
        take_profit_attempts INTEGER NOT NULL,
        reason TEXT
    );`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating outcomes table: %w", err)
	}

	return &Journal{DB: db}, nil
}

// RecordRun stores a run and its outcomes in one transaction. runErr is the
// preflight abort, if any.
func (j *Journal) RecordRun(runID string, startedAt time.Time, outcomes []models.OrderOutcome, runErr error) (err error) {
	tx, err := j.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin journal transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	reason := ""
	if runErr != nil {
		reason = runErr.Error()
	}
	protected, critical := 0, 0
	for _, out := range outcomes {
		if out.Protected() {
			protected++
		}
		if out.Status.Severity() == models.SeverityCritical {
			critical++
		}
	}

	_, err = tx.Exec(`INSERT INTO runs (id, started_at, aborted, reason, symbols, protected, critical) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, startedAt.UTC(), runErr != nil, reason, len(outcomes), protected, critical)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", runID, err)
	}

	stmt, err := tx.Prepare(`
        INSERT INTO outcomes (run_id, symbol, status, quantity, entry_price, entry_order_id,
            stop_loss_price, stop_loss_attempts, take_profit_price, take_profit_attempts, reason)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for _, out := range outcomes {
		var entryID sql.NullInt64
		if out.Entry != nil {
			entryID = sql.NullInt64{Int64: out.Entry.OrderID, Valid: true}
		}
		_, err = stmt.Exec(runID, out.Symbol, string(out.Status), out.Quantity, out.EntryPrice, entryID,
			legPrice(out.StopLoss), out.StopLoss.Attempts, legPrice(out.TakeProfit), out.TakeProfit.Attempts, out.Reason())
		if err != nil {
			return fmt.Errorf("failed to insert outcome for %s: %w", out.Symbol, err)
		}
	}

	return tx.Commit()
}

func legPrice(leg models.LegResult) sql.NullFloat64 {
	if !leg.Placed {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: leg.FinalPrice, Valid: true}
}

// Run fetches a stored run summary.
func (j *Journal) Run(runID string) (*RunSummary, error) {
	row := j.DB.QueryRow(`SELECT id, started_at, aborted, reason, symbols, protected, critical FROM runs WHERE id = ?`, runID)

	var s RunSummary
	var reason sql.NullString
	err := row.Scan(&s.ID, &s.StartedAt, &s.Aborted, &reason, &s.Symbols, &s.Protected, &s.Critical)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no run found with id %s", runID)
		}
		return nil, fmt.Errorf("error fetching run %s: %w", runID, err)
	}
	s.Reason = reason.String
	return &s, nil
}

// OutcomeStatuses returns symbol → status for a run, in insertion order.
func (j *Journal) OutcomeStatuses(runID string) ([][2]string, error) {
	rows, err := j.DB.Query(`SELECT symbol, status FROM outcomes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var symbol, status string
		if err := rows.Scan(&symbol, &status); err != nil {
			return nil, err
		}
		out = append(out, [2]string{symbol, status})
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	return j.DB.Close()
}
