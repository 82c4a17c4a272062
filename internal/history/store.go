package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"petscan/internal/config"
	"petscan/internal/scan"
)

const entryColumns = "id, session_id, generation, mode, source, outcome, candidate_count, best_pet_id, best_pet_name, best_similarity, message, error_message, image_bytes, submitted_at, resolved_at, latency_ms"

// Entry is one recorded attempt.
type Entry struct {
	ID             string        `json:"id"`
	SessionID      string        `json:"session_id,omitempty"`
	Generation     uint64        `json:"generation"`
	Mode           string        `json:"mode"`
	Source         string        `json:"source"`
	Outcome        string        `json:"outcome"`
	CandidateCount int           `json:"candidate_count"`
	BestPetID      int64         `json:"best_pet_id,omitempty"`
	BestPetName    string        `json:"best_pet_name,omitempty"`
	BestSimilarity float64       `json:"best_similarity,omitempty"`
	Message        string        `json:"message,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	ImageBytes     int           `json:"image_bytes"`
	SubmittedAt    time.Time     `json:"submitted_at"`
	ResolvedAt     time.Time     `json:"resolved_at,omitempty"`
	Latency        time.Duration `json:"latency"`
}

// Filter narrows List results.
type Filter struct {
	Limit     int
	SessionID string
	Outcome   string
}

// Store manages the attempt ledger backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryPath())
}

// OpenPath opens the database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Record stores a resolved attempt. Recording the same attempt twice keeps the
// later row.
func (s *Store) Record(ctx context.Context, att scan.Attempt) error {
	if strings.TrimSpace(att.ID) == "" {
		return errors.New("attempt id is empty")
	}
	entry := entryFromAttempt(att)

	var latency any
	if !entry.ResolvedAt.IsZero() {
		latency = entry.Latency.Milliseconds()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO attempts (`+entryColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		nullableString(entry.SessionID),
		int64(entry.Generation),
		entry.Mode,
		entry.Source,
		entry.Outcome,
		entry.CandidateCount,
		nullableInt(entry.BestPetID),
		nullableString(entry.BestPetName),
		nullableFloat(entry.BestSimilarity, entry.CandidateCount > 0),
		nullableString(entry.Message),
		nullableString(entry.ErrorMessage),
		entry.ImageBytes,
		formatTime(entry.SubmittedAt),
		nullableTime(entry.ResolvedAt),
		latency,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// List returns recorded attempts, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM attempts`
	var (
		clauses []string
		args    []any
	)
	if filter.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, filter.Outcome)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY submitted_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Stats returns a count of attempts grouped by outcome label.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(1) FROM attempts GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("history stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		stats[outcome] = count
	}
	return stats, rows.Err()
}

// Prune deletes attempts submitted before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attempts WHERE submitted_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune attempts: %w", err)
	}
	return res.RowsAffected()
}

func entryFromAttempt(att scan.Attempt) Entry {
	entry := Entry{
		ID:          att.ID,
		SessionID:   att.SessionID,
		Generation:  att.Generation,
		Mode:        string(att.Mode),
		Source:      string(att.Source),
		Outcome:     att.Label(),
		ImageBytes:  len(att.Image.Data),
		SubmittedAt: att.SubmittedAt,
		ResolvedAt:  att.ResolvedAt,
	}
	if !att.ResolvedAt.IsZero() && !att.SubmittedAt.IsZero() {
		entry.Latency = att.ResolvedAt.Sub(att.SubmittedAt)
	}
	switch out := att.Outcome.(type) {
	case scan.Matched:
		entry.CandidateCount = len(out.Candidates)
		entry.Message = out.Message
		if len(out.Candidates) > 0 {
			best := out.Best()
			entry.BestPetID = best.PetID
			entry.BestPetName = best.Name
			entry.BestSimilarity = best.Similarity
		}
	case scan.Empty:
		entry.Message = out.Message
	case scan.Failed:
		if out.Err != nil {
			entry.ErrorMessage = out.Err.Error()
		}
	}
	return entry
}
