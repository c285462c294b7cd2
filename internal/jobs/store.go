package jobs

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ErrNotFound is returned when a job id has no matching row.
var ErrNotFound = errors.New("jobs: not found")

// Store persists batch job rows to PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to the jobs database at connStr and applies any pending
// migrations.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("jobs: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("jobs: ping: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("jobs: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return err
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`).Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for i := current + 1; i < len(entries); i++ {
		data, readErr := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if readErr != nil {
			return fmt.Errorf("read migration %d: %w", i, readErr)
		}
		if _, execErr := db.Exec(string(data)); execErr != nil {
			return fmt.Errorf("migration %d: %w", i, execErr)
		}
		if _, execErr := db.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, i); execErr != nil {
			return fmt.Errorf("migration %d record: %w", i, execErr)
		}
	}
	return nil
}

// Close closes the database pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new processing job row.
func (s *Store) Create(id, username, voice, speed string) error {
	_, err := s.db.Exec(
		`INSERT INTO jobs (id, status, username, voice, speed) VALUES ($1, $2, $3, $4, $5)`,
		id, StatusProcessing, username, voice, speed,
	)
	return err
}

// MarkCompleted sets a job's status to completed with its output path.
func (s *Store) MarkCompleted(id, filePath string) error {
	_, err := s.db.Exec(
		`UPDATE jobs SET status = $1, file_path = $2 WHERE id = $3`,
		StatusCompleted, filePath, id,
	)
	return err
}

// MarkError sets a job's status to error with a message.
func (s *Store) MarkError(id, message string) error {
	_, err := s.db.Exec(
		`UPDATE jobs SET status = $1, error_message = $2 WHERE id = $3`,
		StatusError, message, id,
	)
	return err
}

// Get fetches a job by id.
func (s *Store) Get(id string) (*Job, error) {
	var j Job
	var status string
	err := s.db.QueryRow(
		`SELECT id, status, error_message, file_path, created_at, last_accessed_at, username, voice, speed
		 FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &status, &j.ErrorMessage, &j.FilePath, &j.CreatedAt, &j.LastAccessedAt, &j.Username, &j.Voice, &j.Speed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	j.Status = Status(status)
	return &j, nil
}

// TouchAccessed updates last_accessed_at to now, called whenever a
// completed job's audio is successfully served.
func (s *Store) TouchAccessed(id string) error {
	_, err := s.db.Exec(`UPDATE jobs SET last_accessed_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	return err
}

// SweepExpired deletes rows whose last_accessed_at is older than maxAge and
// returns how many rows were deleted along with the file paths associated
// with those rows (a job that never completed has no file_path), so the
// caller can unlink them after a storage-root containment check.
func (s *Store) SweepExpired(maxAge time.Duration) (count int, paths []string, err error) {
	rows, err := s.db.Query(
		`DELETE FROM jobs WHERE last_accessed_at < $1 RETURNING file_path`,
		time.Now().UTC().Add(-maxAge),
	)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p sql.NullString
		if err := rows.Scan(&p); err != nil {
			return 0, nil, err
		}
		count++
		if p.Valid && p.String != "" {
			paths = append(paths, p.String)
		}
	}
	return count, paths, rows.Err()
}
