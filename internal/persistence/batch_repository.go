package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IliaW/program-scraper/internal/model"
	jsoniter "github.com/json-iterator/go"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scrape_runs (
		run_id VARCHAR(36) NOT NULL PRIMARY KEY,
		keywords TEXT NOT NULL,
		scrape_mechanism VARCHAR(32) NOT NULL,
		started_at VARCHAR(64) NOT NULL,
		finished_at VARCHAR(64) NOT NULL,
		summary_count INTEGER NOT NULL,
		record_count INTEGER NOT NULL,
		failure_count INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS program_records (
		run_id VARCHAR(36) NOT NULL,
		position INTEGER NOT NULL,
		keyword VARCHAR(255) NOT NULL,
		program_name TEXT NOT NULL,
		university TEXT NOT NULL,
		faculty TEXT NOT NULL,
		program_type TEXT NOT NULL,
		tuition_cost TEXT NOT NULL,
		detail_url TEXT NOT NULL,
		raw_text TEXT NOT NULL,
		scraped_at VARCHAR(64) NOT NULL,
		PRIMARY KEY (run_id, position)
	)`,
}

// BatchRepository stores scrape runs and their records. Queries use "?" placeholders, which both
// the mysql and the sqlite drivers accept.
type BatchRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func NewBatchRepository(db *sql.DB, log *slog.Logger) *BatchRepository {
	return &BatchRepository{db: db, log: log}
}

// Migrate creates the tables if they do not exist yet.
func (r *BatchRepository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Save writes the run row and all of its records in one transaction.
func (r *BatchRepository) Save(ctx context.Context, batch *model.ScrapeBatch) error {
	keywords, err := jsoniter.MarshalToString(batch.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO scrape_runs (run_id, keywords, scrape_mechanism, started_at, finished_at,
		summary_count, record_count, failure_count) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		batch.RunID,
		keywords,
		batch.Mechanism,
		batch.StartedAt.Format(time.RFC3339Nano),
		batch.FinishedAt.Format(time.RFC3339Nano),
		batch.SummaryCount,
		len(batch.Records),
		len(batch.Failures))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", batch.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO program_records (run_id, position, `+
		strings.Join(model.RecordColumns, ", ")+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare record insert: %w", err)
	}
	defer stmt.Close()
	for i := range batch.Records {
		args := []any{batch.RunID, i}
		for _, v := range batch.Records[i].Row() {
			args = append(args, v)
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.log.Info("scrape batch saved to db.", slog.String("run_id", batch.RunID), slog.Int("records", len(batch.Records)))

	return nil
}

// ListByRun is the read path for a stored run. It returns the records in their original order.
func (r *BatchRepository) ListByRun(ctx context.Context, runID string) ([]model.ProgramRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+strings.Join(model.RecordColumns, ", ")+`
		FROM program_records WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []model.ProgramRecord
	for rows.Next() {
		var rec model.ProgramRecord
		var scrapedAt string
		err = rows.Scan(&rec.Keyword, &rec.ProgramName, &rec.University, &rec.Faculty, &rec.ProgramType,
			&rec.TuitionCost, &rec.DetailURL, &rec.RawText, &scrapedAt)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if rec.ScrapedAt, err = time.Parse(time.RFC3339, scrapedAt); err != nil {
			return nil, fmt.Errorf("parse scraped_at %q: %w", scrapedAt, err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
