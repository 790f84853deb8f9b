package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dshills/tribunal/internal/review"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when no session matches an ID.
var ErrNotFound = errors.New("session not found")

const (
	bucketRaw      = "raw"
	bucketMustFix  = "must_fix"
	bucketShould   = "should_fix"
	bucketRefactor = "refactor"
)

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; the session loop is the only writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Open creates the store and applies migrations.
func Open(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
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
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count); err != nil {
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

// lensRow is the persisted part of a LensResult; findings live in their own
// table.
type lensRow struct {
	Lens     review.Lens   `json:"lens"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"durationNs"`
}

// SaveRound writes the round and all its findings in one transaction.
func (s *SQLiteStore) SaveRound(ctx context.Context, st *review.State, r *review.Round) error {
	if r.Verdict == nil {
		return fmt.Errorf("save round %d: round has no verdict", r.Number)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, repo, source, target, provider, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		st.ID, st.Repo, st.Source, st.Target, st.Provider, st.Model, st.CreatedAt.UTC(), now,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	lenses := make([]lensRow, len(r.Results))
	for i, res := range r.Results {
		lenses[i] = lensRow{Lens: res.Lens, Error: res.Error, Duration: res.Duration}
	}
	lensJSON, err := json.Marshal(lenses)
	if err != nil {
		return fmt.Errorf("marshal lenses: %w", err)
	}
	degradations := r.Verdict.Degradations
	if degradations == nil {
		degradations = []string{}
	}
	degJSON, err := json.Marshal(degradations)
	if err != nil {
		return fmt.Errorf("marshal degradations: %w", err)
	}

	roundID := ulid.Make().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO rounds (id, session_id, number, kind, input, decision, summary, lenses, degradations, duplicates_removed, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		roundID, st.ID, r.Number, string(r.Kind), r.Input, string(r.Verdict.Decision), r.Verdict.ExecutiveSummary,
		string(lensJSON), string(degJSON), r.Verdict.DuplicatesRemoved, r.StartedAt.UTC(), r.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert round %d: %w", r.Number, err)
	}

	insert := func(bucket string, findings []review.Finding) error {
		for i, f := range findings {
			var start, end sql.NullInt64
			if f.Lines != nil {
				start = sql.NullInt64{Int64: int64(f.Lines.Start), Valid: true}
				end = sql.NullInt64{Int64: int64(f.Lines.End), Valid: true}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO findings (id, round_id, bucket, position, finding_id, lens, severity, category, title, path, line_start, line_end, description, suggested_fix)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				ulid.Make().String(), roundID, bucket, i, f.ID, string(f.Lens), string(f.Severity), string(f.Category),
				f.Title, f.Path, start, end, f.Description, f.SuggestedFix,
			)
			if err != nil {
				return fmt.Errorf("insert finding: %w", err)
			}
		}
		return nil
	}

	var raw []review.Finding
	for _, res := range r.Results {
		raw = append(raw, res.Findings...)
	}
	for _, b := range []struct {
		name     string
		findings []review.Finding
	}{
		{bucketRaw, raw},
		{bucketMustFix, r.Verdict.MustFix},
		{bucketShould, r.Verdict.ShouldFix},
		{bucketRefactor, r.Verdict.RefactorOpportunities},
	} {
		if err := insert(b.name, b.findings); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit round %d: %w", r.Number, err)
	}
	return nil
}

// ListSessions returns the most recently updated sessions first.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	query := `SELECT s.id, s.repo, s.source, s.target, s.provider, s.model, s.created_at, s.updated_at,
		(SELECT COUNT(*) FROM rounds r WHERE r.session_id = s.id),
		COALESCE((SELECT r.decision FROM rounds r WHERE r.session_id = s.id ORDER BY r.number DESC LIMIT 1), '')
		FROM sessions s ORDER BY s.updated_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		var decision string
		if err := rows.Scan(&sum.ID, &sum.Repo, &sum.Source, &sum.Target, &sum.Provider, &sum.Model,
			&sum.CreatedAt, &sum.UpdatedAt, &sum.Rounds, &decision); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.LastDecision = review.Decision(decision)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// GetSession loads a session and all of its rounds.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*review.State, error) {
	fullID, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}

	st := &review.State{}
	err = s.db.QueryRowContext(ctx,
		`SELECT id, repo, source, target, provider, model, created_at FROM sessions WHERE id = ?`, fullID,
	).Scan(&st.ID, &st.Repo, &st.Source, &st.Target, &st.Provider, &st.Model, &st.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	rounds, err := s.loadRounds(ctx, fullID)
	if err != nil {
		return nil, err
	}
	st.Rounds = rounds
	return st, nil
}

func (s *SQLiteStore) resolveID(ctx context.Context, id string) (string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions WHERE id = ? OR id LIKE ? || '%' LIMIT 2`, id, id)
	if err != nil {
		return "", fmt.Errorf("find session: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var got string
		if err := rows.Scan(&got); err != nil {
			return "", fmt.Errorf("scan session id: %w", err)
		}
		if got == id {
			return got, nil
		}
		ids = append(ids, got)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("session ID prefix %q is ambiguous", id)
	}
}

func (s *SQLiteStore) loadRounds(ctx context.Context, sessionID string) ([]*review.Round, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, number, kind, input, decision, summary, lenses, degradations, duplicates_removed, started_at, finished_at
		FROM rounds WHERE session_id = ? ORDER BY number`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}

	rounds, ids, lensRows, err := scanRounds(rows)
	if cerr := rows.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}

	// Findings are read after the round cursor is closed: the store holds a
	// single connection.
	for i, r := range rounds {
		buckets, err := s.loadFindings(ctx, ids[i])
		if err != nil {
			return nil, err
		}
		r.Verdict.MustFix = buckets[bucketMustFix]
		r.Verdict.ShouldFix = buckets[bucketShould]
		r.Verdict.RefactorOpportunities = buckets[bucketRefactor]

		byLens := make(map[review.Lens][]review.Finding)
		for _, f := range buckets[bucketRaw] {
			byLens[f.Lens] = append(byLens[f.Lens], f)
		}
		for _, lr := range lensRows[i] {
			r.Results = append(r.Results, review.LensResult{
				Lens:     lr.Lens,
				Error:    lr.Error,
				Duration: lr.Duration,
				Findings: byLens[lr.Lens],
			})
		}
	}
	return rounds, nil
}

func (s *SQLiteStore) loadFindings(ctx context.Context, roundID string) (map[string][]review.Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT bucket, finding_id, lens, severity, category, title, path, line_start, line_end, description, suggested_fix
		FROM findings WHERE round_id = ? ORDER BY bucket, position`, roundID)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := map[string][]review.Finding{
		bucketMustFix:  {},
		bucketShould:   {},
		bucketRefactor: {},
	}
	for rows.Next() {
		var (
			bucket, lens, severity, category string
			start, end                       sql.NullInt64
			f                                review.Finding
		)
		if err := rows.Scan(&bucket, &f.ID, &lens, &severity, &category, &f.Title, &f.Path,
			&start, &end, &f.Description, &f.SuggestedFix); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		f.Lens = review.Lens(lens)
		f.Severity = review.Severity(severity)
		f.Category = review.Category(category)
		if start.Valid {
			f.Lines = &review.LineRange{Start: int(start.Int64), End: int(end.Int64)}
		}
		out[bucket] = append(out[bucket], f)
	}
	return out, rows.Err()
}

// rowScanner is the part of *sql.Rows scanRounds reads from.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanRounds reads round rows without their findings. It returns the round
// IDs and stored lens results alongside, in the same order.
func scanRounds(rows rowScanner) (rounds []*review.Round, ids []string, lensRows [][]lensRow, err error) {
	for rows.Next() {
		var (
			roundID, kind, decision, lensJSON, degJSON string
			r                                          review.Round
			v                                          review.Verdict
		)
		if err := rows.Scan(&roundID, &r.Number, &kind, &r.Input, &decision, &v.ExecutiveSummary,
			&lensJSON, &degJSON, &v.DuplicatesRemoved, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, nil, nil, fmt.Errorf("scan round: %w", err)
		}
		r.Kind = review.RoundKind(kind)
		v.Decision = review.Decision(decision)

		var lenses []lensRow
		if err := json.Unmarshal([]byte(lensJSON), &lenses); err != nil {
			return nil, nil, nil, fmt.Errorf("decode lenses of round %d: %w", r.Number, err)
		}
		if err := json.Unmarshal([]byte(degJSON), &v.Degradations); err != nil {
			return nil, nil, nil, fmt.Errorf("decode degradations of round %d: %w", r.Number, err)
		}
		if len(v.Degradations) == 0 {
			v.Degradations = nil
		}
		r.Verdict = &v
		rounds = append(rounds, &r)
		ids = append(ids, roundID)
		lensRows = append(lensRows, lenses)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate rounds: %w", err)
	}
	return rounds, ids, lensRows, nil
}
