package resultstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mashnoor/llm-ift/internal/types"
)

// Record is one persisted analysis outcome, keyed by design name.
type Record struct {
	Design    string             `json:"design"`
	Top       string             `json:"top_module"`
	Label     *bool              `json:"actual_label,omitempty"`
	Report    types.DesignReport `json:"report"`
	CreatedAt time.Time          `json:"created_at"`
}

// Correct reports whether the predicted verdict matches the ground-truth
// label, when one is present.
func (r Record) Correct() (bool, bool) {
	if r.Label == nil {
		return false, false
	}
	return r.Report.IsVulnerable == *r.Label, true
}

// Store persists analysis records. File-backed JSON by default; a Postgres
// DSN switches to a database-backed store with an LRU read cache.
type Store struct {
	path string
	db   *sql.DB

	loadOnce sync.Once
	mu       sync.RWMutex
	byDesign map[string]Record

	schemaOnce sync.Once
	schemaErr  error

	cache *lru.Cache[string, Record]
}

func New(path string) *Store {
	return &Store{path: path, byDesign: make(map[string]Record)}
}

func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, Record](1024)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, cache: cache}, nil
}

// NewFromEnv returns a Postgres store when RESULT_STORE_PG_DSN is set and
// reachable, falling back to the file store at path.
func NewFromEnv(path string) *Store {
	dsn := strings.TrimSpace(os.Getenv("RESULT_STORE_PG_DSN"))
	if dsn == "" {
		return New(path)
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		return New(path)
	}
	return s
}

func (s *Store) Close() error {
	if s != nil && s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS ift_reports (
				design      TEXT PRIMARY KEY,
				top_module  TEXT NOT NULL,
				payload     JSONB NOT NULL,
				created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
			)`)
	})
	return s.schemaErr
}

// Put stores or replaces the record for a design.
func (s *Store) Put(ctx context.Context, rec Record) error {
	if rec.Design == "" {
		return fmt.Errorf("resultstore: empty design name")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if s.db != nil {
		if err := s.ensureSchema(ctx); err != nil {
			return err
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO ift_reports (design, top_module, payload, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (design) DO UPDATE
			SET top_module = EXCLUDED.top_module,
			    payload    = EXCLUDED.payload,
			    created_at = EXCLUDED.created_at`,
			rec.Design, rec.Top, payload, rec.CreatedAt)
		if err != nil {
			return err
		}
		s.cache.Add(rec.Design, rec)
		return nil
	}

	s.ensureLoadedFile()
	s.mu.Lock()
	s.byDesign[rec.Design] = rec
	s.mu.Unlock()
	return s.saveFile()
}

// Get returns the record for a design.
func (s *Store) Get(ctx context.Context, design string) (Record, bool, error) {
	if s.db != nil {
		if rec, ok := s.cache.Get(design); ok {
			return rec, true, nil
		}
		if err := s.ensureSchema(ctx); err != nil {
			return Record{}, false, err
		}
		var payload []byte
		err := s.db.QueryRowContext(ctx,
			`SELECT payload FROM ift_reports WHERE design = $1`, design).Scan(&payload)
		if err == sql.ErrNoRows {
			return Record{}, false, nil
		}
		if err != nil {
			return Record{}, false, err
		}
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return Record{}, false, err
		}
		s.cache.Add(design, rec)
		return rec, true, nil
	}

	s.ensureLoadedFile()
	s.mu.RLock()
	rec, ok := s.byDesign[design]
	s.mu.RUnlock()
	return rec, ok, nil
}

// List returns all records sorted by design name.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	if s.db != nil {
		if err := s.ensureSchema(ctx); err != nil {
			return nil, err
		}
		rows, err := s.db.QueryContext(ctx, `SELECT payload FROM ift_reports ORDER BY design`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var out []Record
		for rows.Next() {
			var payload []byte
			if err := rows.Scan(&payload); err != nil {
				return nil, err
			}
			var rec Record
			if err := json.Unmarshal(payload, &rec); err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		return out, rows.Err()
	}

	s.ensureLoadedFile()
	s.mu.RLock()
	out := make([]Record, 0, len(s.byDesign))
	for _, rec := range s.byDesign {
		out = append(out, rec)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Design < out[j].Design })
	return out, nil
}

func (s *Store) ensureLoadedFile() {
	s.loadOnce.Do(func() {
		if s.path == "" {
			return
		}
		data, err := os.ReadFile(s.path)
		if err != nil {
			return
		}
		var recs []Record
		if err := json.Unmarshal(data, &recs); err != nil {
			return
		}
		s.mu.Lock()
		for _, rec := range recs {
			s.byDesign[rec.Design] = rec
		}
		s.mu.Unlock()
	})
}

func (s *Store) saveFile() error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	recs := make([]Record, 0, len(s.byDesign))
	for _, rec := range s.byDesign {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()
	sort.Slice(recs, func(i, j int) bool { return recs[i].Design < recs[j].Design })

	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, data, 0o644)
}
