package db

import (
	"fmt"
)

const schemaVersion = 1

// runMigrations applies migrations for databases created by older builds
func (db *DB) runMigrations() error {
	var version int
	if err := db.conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	// Migration 1: early builds stored the login flag as "1"/"0"
	if version < 1 {
		if err := db.migration001NormalizeLoginFlag(); err != nil {
			return fmt.Errorf("migration 001: %w", err)
		}
	}

	if version < schemaVersion {
		if _, err := db.conn.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
			return fmt.Errorf("write user_version: %w", err)
		}
	}
	return nil
}

func (db *DB) migration001NormalizeLoginFlag() error {
	_, err := db.conn.Exec(`
		UPDATE kv
		SET value = CASE value WHEN '1' THEN 'true' ELSE 'false' END
		WHERE key = ? AND value IN ('1', '0')
	`, KeyLoggedIn)
	return err
}
