package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// dialect captures the SQL differences between the supported stores
type dialect struct {
	name   string
	driver string
	// dollar placeholders ($1, $2, ...) instead of ?
	dollar bool
}

var dialects = map[string]dialect{
	"sqlite":   {name: "sqlite", driver: "sqlite"},
	"mysql":    {name: "mysql", driver: "mysql"},
	"postgres": {name: "postgres", driver: "pgx", dollar: true},
}

// rebind rewrites ? placeholders for the dialect
func (d dialect) rebind(query string) string {
	if !d.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// upsert returns an insert that overwrites the row on key conflict
func (d dialect) upsert(table, key string, cols []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)

	var sets []string
	for _, c := range cols {
		if c == key {
			continue
		}
		if d.name == "mysql" {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", c, c))
		} else {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	if d.name == "mysql" {
		return d.rebind(insert + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", "))
	}
	return d.rebind(insert + fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET ", key) + strings.Join(sets, ", "))
}

// insertIfAbsent returns an insert that affects no rows when the key exists
func (d dialect) insertIfAbsent(table, key string, cols []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	if d.name == "mysql" {
		return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)
	}
	return d.rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO NOTHING",
		table, strings.Join(cols, ", "), placeholders, key))
}

// openDB opens the session database for driver (sqlite, mysql or postgres)
func openDB(driver, dsn string) (*sql.DB, dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, dialect{}, fmt.Errorf("unsupported store driver %q", driver)
	}

	switch driver {
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, d, fmt.Errorf("failed to create db directory: %w", err)
		}
	case "mysql":
		// Conditional updates rely on matched rather than changed row counts
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, d, fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ClientFoundRows = true
		cfg.ParseTime = true
		dsn = cfg.FormatDSN()
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, d, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite" {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}
	return db, d, nil
}
