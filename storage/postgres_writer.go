package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"review-harvester/models"
)

// PostgresWriter persists output rows to PostgreSQL, tagged with a run id.
type PostgresWriter struct {
	db    *sql.DB
	runID uuid.UUID
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string, runID uuid.UUID) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db, runID: runID}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS reviews (
			id                     SERIAL PRIMARY KEY,
			run_id                 UUID         NOT NULL,
			src_row_index          INTEGER      NOT NULL,
			firm_id                TEXT         NOT NULL DEFAULT '',
			org_name               TEXT         NOT NULL DEFAULT '',
			listing_url            TEXT         NOT NULL,
			rating_reviews         INTEGER,
			review_id              TEXT         NOT NULL DEFAULT '',
			review_date            TEXT,
			review_rating          TEXT,
			reviewer_name          TEXT,
			reviewer_total_reviews INTEGER,
			review_text            TEXT         NOT NULL DEFAULT '',
			error                  TEXT         NOT NULL DEFAULT '',
			created_at             TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			UNIQUE (listing_url, review_id)
		);

		CREATE INDEX IF NOT EXISTS idx_reviews_run     ON reviews(run_id);
		CREATE INDEX IF NOT EXISTS idx_reviews_src_row ON reviews(src_row_index);
	`)
	return err
}

// Append batch-inserts rows. Rows already stored for the same listing and
// review id are skipped.
func (pw *PostgresWriter) Append(rows []models.OutputRow) error {
	const batchSize = 50
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := pw.insertBatch(rows[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (pw *PostgresWriter) EntityDone(int) error { return nil }

const reviewColumns = 13

func (pw *PostgresWriter) insertBatch(batch []models.OutputRow) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*reviewColumns)

	for idx, r := range batch {
		base := idx * reviewColumns
		ph := make([]string, reviewColumns)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")

		rv := r.Review
		valueArgs = append(valueArgs,
			pw.runID.String(), r.SrcRowIndex, r.FirmID, r.OrgName, r.ListingURL,
			nullInt(r.RatingReviews), rv.ID, nullString(rv.Date), nullString(rv.Rating),
			nullString(rv.ReviewerName), nullInt(rv.ReviewerTotalReviews), rv.Text, r.Error)
	}

	query := fmt.Sprintf(`
		INSERT INTO reviews (run_id, src_row_index, firm_id, org_name, listing_url,
			rating_reviews, review_id, review_date, review_rating,
			reviewer_name, reviewer_total_reviews, review_text, error)
		VALUES %s
		ON CONFLICT (listing_url, review_id) DO NOTHING
	`, strings.Join(valueStrings, ","))

	_, err := pw.db.Exec(query, valueArgs...)
	if err != nil {
		return fmt.Errorf("postgres: insert batch: %w", err)
	}
	return nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// CountForRun returns how many rows the given run stored.
func (pw *PostgresWriter) CountForRun() (int, error) {
	var n int
	err := pw.db.QueryRow(`SELECT COUNT(*) FROM reviews WHERE run_id = $1`, pw.runID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count: %w", err)
	}
	return n, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
