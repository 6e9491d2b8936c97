// Package store handles SQLite persistence of problem catalogs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/verte-zerg/passplay/internal/catalog"
	"github.com/verte-zerg/passplay/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for catalog data.
type Store struct {
	db *sql.DB
}

// Summary describes a stored problem without its pass bodies.
type Summary struct {
	Key    string
	Title  string
	Passes int
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS problems (
			key TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS passes (
			problem_key TEXT NOT NULL,
			idx INTEGER NOT NULL,
			output TEXT NOT NULL,
			critique TEXT NOT NULL,
			clarity INTEGER NOT NULL,
			correctness INTEGER NOT NULL,
			structure INTEGER NOT NULL,
			errors INTEGER NOT NULL,
			PRIMARY KEY (problem_key, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_problems_position ON problems(position);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ImportCatalog replaces the stored catalog with cat in one transaction.
func (s *Store) ImportCatalog(ctx context.Context, cat *catalog.Catalog) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	for _, stmt := range []string{`DELETE FROM passes`, `DELETE FROM problems`} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	problemStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO problems (key, position, title, description) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := problemStmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	passStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO passes (problem_key, idx, output, critique, clarity, correctness, structure, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := passStmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()

	for pos, p := range cat.Problems() {
		if _, err = problemStmt.ExecContext(ctx, p.Key, pos, p.Title, p.Description); err != nil {
			return fmt.Errorf("failed to insert problem %q: %w", p.Key, err)
		}
		for idx, pass := range p.Passes {
			if _, err = passStmt.ExecContext(ctx, p.Key, idx, pass.Output, pass.Critique,
				pass.Scores.Clarity, pass.Scores.Correctness, pass.Scores.Structure, pass.Errors); err != nil {
				return fmt.Errorf("failed to insert pass %d of %q: %w", idx+1, p.Key, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

// LoadCatalog reads the stored catalog. An empty database yields an empty catalog.
func (s *Store) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	problems, err := s.loadProblems(ctx)
	if err != nil {
		return nil, err
	}
	if len(problems) == 0 {
		return catalog.Empty(), nil
	}
	if err := s.loadPasses(ctx, problems); err != nil {
		return nil, err
	}
	cat, err := catalog.New(problems)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored catalog: %w", err)
	}
	return cat, nil
}

func (s *Store) loadProblems(ctx context.Context) ([]model.Problem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, title, description FROM problems ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var problems []model.Problem
	for rows.Next() {
		var p model.Problem
		if err := rows.Scan(&p.Key, &p.Title, &p.Description); err != nil {
			return nil, err
		}
		problems = append(problems, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return problems, nil
}

func (s *Store) loadPasses(ctx context.Context, problems []model.Problem) error {
	index := make(map[string]int, len(problems))
	for i, p := range problems {
		index[p.Key] = i
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT problem_key, output, critique, clarity, correctness, structure, errors
		 FROM passes ORDER BY problem_key, idx ASC`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	for rows.Next() {
		var key string
		var pass model.Pass
		if err := rows.Scan(&key, &pass.Output, &pass.Critique,
			&pass.Scores.Clarity, &pass.Scores.Correctness, &pass.Scores.Structure, &pass.Errors); err != nil {
			return err
		}
		i, ok := index[key]
		if !ok {
			continue
		}
		problems[i].Passes = append(problems[i].Passes, pass)
	}
	return rows.Err()
}

// ListProblems returns stored problems in catalog order with their pass counts.
func (s *Store) ListProblems(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.key, p.title, COUNT(ps.idx)
		 FROM problems p
		 LEFT JOIN passes ps ON ps.problem_key = p.key
		 GROUP BY p.key, p.title, p.position
		 ORDER BY p.position ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.Key, &sum.Title, &sum.Passes); err != nil {
			return nil, err
		}
		result = append(result, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
