package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/amirphl/rsicalc/internal/utils"
	"github.com/lib/pq"
)

// Migrate creates the database named in connStr if it doesn't exist and
// applies the schema file at schemaPath. connStr must be a postgres:// URL.
func Migrate(ctx context.Context, connStr, schemaPath string) error {
	utils.GetLogger().Println("Store | running database migrations")

	u, err := url.Parse(connStr)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return fmt.Errorf("database name not found in connection string")
	}

	admin := *u
	admin.Path = "/postgres"

	baseDB, err := sql.Open("postgres", admin.String())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer baseDB.Close()

	var exists bool
	err = baseDB.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}

	if !exists {
		utils.GetLogger().Printf("Store | creating database %s", dbName)
		_, err = baseDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName)))
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := ApplySchema(ctx, db, schemaPath); err != nil {
		return err
	}

	utils.GetLogger().Println("Store | database migrations completed")
	return nil
}

// ApplySchema executes the statements in the schema file one by one.
func ApplySchema(ctx context.Context, db *sql.DB, schemaPath string) error {
	schemaSQL, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", schemaPath, err)
	}

	for stmt := range strings.SplitSeq(string(schemaSQL), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %s: %w", stmt, err)
		}
	}
	return nil
}
