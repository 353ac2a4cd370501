package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/fidelity/compat"
	"github.com/hazyhaar/fidelity/tolerance"
)

// ErrNotFound is returned when a run or profile does not exist.
var ErrNotFound = errors.New("store: not found")

// Schema for the runs and profiles tables. Open applies it automatically.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_name TEXT NOT NULL,
	doc_type TEXT NOT NULL,
	profile TEXT NOT NULL,
	passed INTEGER NOT NULL,
	survival_rate REAL NOT NULL,
	report_json TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_doc ON runs(doc_name);

CREATE TABLE IF NOT EXISTS profiles (
	name TEXT PRIMARY KEY,
	record_json TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Run is one persisted analysis outcome. Report holds the full
// compatibility report; the scalar columns exist for listing without
// decoding it.
type Run struct {
	ID           int64                       `json:"id"`
	DocName      string                      `json:"doc_name"`
	DocType      string                      `json:"doc_type"`
	Profile      string                      `json:"profile"`
	Passed       bool                        `json:"passed"`
	SurvivalRate float64                     `json:"survival_rate"`
	Report       *compat.CompatibilityReport `json:"report,omitempty"`
	CreatedAt    time.Time                   `json:"created_at"`
}

// Store wraps the database with typed accessors.
type Store struct {
	db *sql.DB
}

// New wraps an opened database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveRun persists a run and returns its id.
func (s *Store) SaveRun(r *Run) (int64, error) {
	report, err := json.Marshal(r.Report)
	if err != nil {
		return 0, fmt.Errorf("store: encode report: %w", err)
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO runs (doc_name, doc_type, profile, passed, survival_rate, report_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.DocName, r.DocType, r.Profile, boolInt(r.Passed), r.SurvivalRate, string(report), created.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: run id: %w", err)
	}
	r.ID = id
	return id, nil
}

// ListRuns returns the most recent runs, newest first, without decoded
// reports.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, doc_name, doc_type, profile, passed, survival_rate, created_at
		 FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var passed int
		var created int64
		if err := rows.Scan(&r.ID, &r.DocName, &r.DocType, &r.Profile, &passed, &r.SurvivalRate, &created); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		r.Passed = passed != 0
		r.CreatedAt = time.Unix(created, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one run with its full report decoded.
func (s *Store) GetRun(id int64) (*Run, error) {
	var r Run
	var passed int
	var created int64
	var report string
	err := s.db.QueryRow(
		`SELECT id, doc_name, doc_type, profile, passed, survival_rate, report_json, created_at
		 FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.DocName, &r.DocType, &r.Profile, &passed, &r.SurvivalRate, &report, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run %d: %w", id, err)
	}
	r.Passed = passed != 0
	r.CreatedAt = time.Unix(created, 0)
	if report != "" && report != "null" {
		r.Report = &compat.CompatibilityReport{}
		if err := json.Unmarshal([]byte(report), r.Report); err != nil {
			return nil, fmt.Errorf("store: decode report for run %d: %w", id, err)
		}
	}
	return &r, nil
}

// PutProfile upserts a custom tolerance profile record.
func (s *Store) PutProfile(p *tolerance.Profile) error {
	data, err := tolerance.MarshalProfile(p)
	if err != nil {
		return fmt.Errorf("store: encode profile %q: %w", p.Name, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO profiles (name, record_json, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET record_json = excluded.record_json, updated_at = excluded.updated_at`,
		p.Name, string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: upsert profile %q: %w", p.Name, err)
	}
	return nil
}

// GetProfile returns one stored profile.
func (s *Store) GetProfile(name string) (*tolerance.Profile, error) {
	var record string
	err := s.db.QueryRow(`SELECT record_json FROM profiles WHERE name = ?`, name).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: profile %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get profile %q: %w", name, err)
	}
	return tolerance.UnmarshalProfile([]byte(record))
}

// LoadProfiles registers every stored profile into a tolerance registry.
// Records that no longer decode are skipped and reported.
func (s *Store) LoadProfiles(reg *tolerance.Config) (loaded int, errs []error) {
	rows, err := s.db.Query(`SELECT name, record_json FROM profiles ORDER BY name`)
	if err != nil {
		return 0, []error{fmt.Errorf("store: list profiles: %w", err)}
	}
	defer rows.Close()

	for rows.Next() {
		var name, record string
		if err := rows.Scan(&name, &record); err != nil {
			errs = append(errs, fmt.Errorf("store: scan profile: %w", err))
			continue
		}
		p, err := tolerance.UnmarshalProfile([]byte(record))
		if err != nil {
			errs = append(errs, fmt.Errorf("store: profile %q: %w", name, err))
			continue
		}
		if err := reg.AddProfile(p); err != nil {
			errs = append(errs, err)
			continue
		}
		loaded++
	}
	if err := rows.Err(); err != nil {
		errs = append(errs, err)
	}
	return loaded, errs
}

// DeleteProfile removes a stored profile.
func (s *Store) DeleteProfile(name string) error {
	res, err := s.db.Exec(`DELETE FROM profiles WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("store: delete profile %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete profile %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: profile %q", ErrNotFound, name)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
