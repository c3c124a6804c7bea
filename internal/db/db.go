package db

import (
	"context"
	"database/sql"
	"embed"

	"github.com/go-faster/errors"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("db path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite has a single writer, and every ":memory:" connection is a
	// separate database.
	db.SetMaxOpenConns(1)

	if err := applySchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return errors.Wrap(err, "read schema")
	}

	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return errors.Wrap(err, "apply schema")
	}

	return nil
}
