package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/complaintops/copilot/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// which also gives ResolveReview its read-modify-write exclusivity.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string. ulid.Make's entropy source is
// safe for concurrent use, so simultaneous creations get distinct ids.
func newULID() string {
	return ulid.Make().String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Reviews ---

func (s *SQLiteStore) CreateReview(ctx context.Context, r *models.ReviewRecord) error {
	if r.ID == "" {
		r.ID = newULID()
	}
	now := time.Now().UTC()
	r.Status = models.ReviewStatusPending
	r.CreatedAt = now
	r.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create review: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO review_records (review_id, status, masked_text, category, category_confidence, urgency, urgency_confidence, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Status), r.MaskedText, r.Category, r.CategoryConfidence,
		r.Urgency, r.UrgencyConfidence, r.Notes, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create review: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO review_audit (review_id, status, notes, created_at) VALUES (?, ?, ?, ?)`,
		r.ID, string(r.Status), r.Notes, now,
	)
	if err != nil {
		return fmt.Errorf("audit review creation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create review: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetReview(ctx context.Context, id string) (*models.ReviewRecord, error) {
	return getReviewTx(ctx, s.db, id)
}

// querier covers both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getReviewTx(ctx context.Context, q querier, id string) (*models.ReviewRecord, error) {
	r := &models.ReviewRecord{}
	var status string
	err := q.QueryRowContext(ctx,
		`SELECT review_id, status, masked_text, category, category_confidence, urgency, urgency_confidence, notes, created_at, updated_at
		FROM review_records WHERE review_id = ?`, id,
	).Scan(&r.ID, &status, &r.MaskedText, &r.Category, &r.CategoryConfidence,
		&r.Urgency, &r.UrgencyConfidence, &r.Notes, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	r.Status = models.ReviewStatus(status)
	return r, nil
}

func (s *SQLiteStore) ListReviews(ctx context.Context, filter ReviewListFilter) ([]*models.ReviewRecord, error) {
	query := `SELECT review_id, status, masked_text, category, category_confidence, urgency, urgency_confidence, notes, created_at, updated_at
		FROM review_records`
	var args []any
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reviews []*models.ReviewRecord
	for rows.Next() {
		r := &models.ReviewRecord{}
		var status string
		if err := rows.Scan(&r.ID, &status, &r.MaskedText, &r.Category, &r.CategoryConfidence,
			&r.Urgency, &r.UrgencyConfidence, &r.Notes, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		r.Status = models.ReviewStatus(status)
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func (s *SQLiteStore) ResolveReview(ctx context.Context, id string, status models.ReviewStatus, notes string) (*models.ReviewRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin resolve review: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	r, err := getReviewTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if r.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, r.Status)
	}

	now := time.Now().UTC()
	// Resolution must land strictly after creation, even on coarse clocks.
	if !now.After(r.CreatedAt) {
		now = r.CreatedAt.Add(time.Nanosecond)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE review_records SET status = ?, notes = ?, updated_at = ? WHERE review_id = ?`,
		string(status), notes, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve review: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO review_audit (review_id, status, notes, created_at) VALUES (?, ?, ?, ?)`,
		id, string(status), notes, now,
	)
	if err != nil {
		return nil, fmt.Errorf("audit review resolution: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit resolve review: %w", err)
	}

	r.Status = status
	r.Notes = notes
	r.UpdatedAt = now
	return r, nil
}

func (s *SQLiteStore) ListAuditEntries(ctx context.Context, reviewID string) ([]*models.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT audit_id, review_id, status, notes, created_at
		FROM review_audit WHERE review_id = ? ORDER BY audit_id`, reviewID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*models.AuditEntry
	for rows.Next() {
		e := &models.AuditEntry{}
		var status string
		if err := rows.Scan(&e.Seq, &e.ReviewID, &status, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Status = models.ReviewStatus(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- SOP chunks ---

// PutSOPChunks replaces all chunks for a document. Re-ingesting a
// document never leaves stale chunks behind.
func (s *SQLiteStore) PutSOPChunks(ctx context.Context, docName string, chunks []*models.SOPChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put chunks: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM sop_chunks WHERE doc_name = ?", docName); err != nil {
		return fmt.Errorf("clear chunks for %s: %w", docName, err)
	}

	for _, c := range chunks {
		if c.ChunkID == "" {
			c.ChunkID = newULID()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sop_chunks (chunk_id, doc_name, source, category, text, ordinal)
			VALUES (?, ?, ?, ?, ?, ?)`,
			c.ChunkID, c.DocName, c.Source, c.Category, c.Text, c.Ordinal,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put chunks: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListSOPChunks(ctx context.Context, category string) ([]*models.SOPChunk, error) {
	query := `SELECT chunk_id, doc_name, source, category, text, ordinal FROM sop_chunks`
	var args []any
	if category != "" {
		// Uncategorized chunks apply to every category.
		query += " WHERE category = ? OR category = ''"
		args = append(args, category)
	}
	query += " ORDER BY doc_name, ordinal"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sop chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []*models.SOPChunk
	for rows.Next() {
		c := &models.SOPChunk{}
		if err := rows.Scan(&c.ChunkID, &c.DocName, &c.Source, &c.Category, &c.Text, &c.Ordinal); err != nil {
			return nil, fmt.Errorf("scan sop chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
