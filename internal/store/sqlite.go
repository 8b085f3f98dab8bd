package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dnaconverter/pkg/plugin"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"gopkg.in/yaml.v3"
)

const schema = `CREATE TABLE IF NOT EXISTS plugins (
	controller TEXT NOT NULL,
	position   INTEGER NOT NULL,
	id         TEXT NOT NULL,
	kind       TEXT NOT NULL,
	name       TEXT NOT NULL,
	pass       TEXT NOT NULL,
	settings   TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (controller, id)
)`

// SQLiteStore keeps the plugin lists of any number of controllers in one
// SQLite database, one row per plugin.
type SQLiteStore struct {
	db         *sql.DB
	controller string
}

// OpenSQLite opens (creating if needed) the database at path and returns a
// store for the named controller. Use ":memory:" for a throwaway database.
func OpenSQLite(path, controller string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, controller: controller}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, name, pass, settings FROM plugins WHERE controller = ? ORDER BY position`,
		s.controller)
	if err != nil {
		return nil, fmt.Errorf("failed to query plugins: %w", err)
	}
	defer rows.Close()

	doc := &Document{Controller: s.controller, Plugins: make([]Record, 0)}
	for rows.Next() {
		var rec Record
		var pass, settings string
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Name, &pass, &settings); err != nil {
			return nil, fmt.Errorf("failed to scan plugin: %w", err)
		}
		rec.Pass = plugin.ApplyPass(pass)
		if settings != "" {
			var node yaml.Node
			if err := yaml.Unmarshal([]byte(settings), &node); err != nil {
				return nil, fmt.Errorf("failed to decode settings of %s: %w", rec.Name, err)
			}
			// Unmarshal wraps the value in a document node.
			if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
				rec.Settings = node.Content[0]
			} else {
				rec.Settings = &node
			}
		}
		doc.Plugins = append(doc.Plugins, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read plugins: %w", err)
	}
	return doc, nil
}

// Save replaces the controller's rows in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, doc *Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM plugins WHERE controller = ?`, s.controller); err != nil {
		return fmt.Errorf("failed to clear plugins: %w", err)
	}

	now := time.Now().Unix()
	for i, rec := range doc.Plugins {
		settings := ""
		if rec.Settings != nil {
			data, err := yaml.Marshal(rec.Settings)
			if err != nil {
				return fmt.Errorf("failed to encode settings of %s: %w", rec.Name, err)
			}
			settings = string(data)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO plugins (controller, position, id, kind, name, pass, settings, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.controller, i, rec.ID, rec.Kind, rec.Name, string(rec.Pass), settings, now)
		if err != nil {
			return fmt.Errorf("failed to insert plugin %s: %w", rec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit plugins: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
