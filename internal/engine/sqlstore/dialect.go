package sqlstore

import (
	"fmt"
	"strings"
)

// Dialect holds the SQL that differs between databases. Every collection is
// a table of (id, body) rows where body is the BSON-encoded record.
type Dialect struct {
	Name string
	// Driver is the database/sql driver name used by Open.
	Driver string

	createTable string
	orderBy     string
	placeholder func(n int) string
}

var (
	// Postgres stores bodies as BYTEA and keeps insertion order in a
	// BIGSERIAL column. It uses the pgx driver.
	Postgres = Dialect{
		Name:        "postgres",
		Driver:      "pgx",
		createTable: "CREATE TABLE IF NOT EXISTS %s (seq BIGSERIAL, id TEXT PRIMARY KEY, body BYTEA NOT NULL)",
		orderBy:     "seq",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}

	// PostgresPQ is Postgres over lib/pq.
	PostgresPQ = Dialect{
		Name:        "postgres",
		Driver:      "postgres",
		createTable: Postgres.createTable,
		orderBy:     Postgres.orderBy,
		placeholder: Postgres.placeholder,
	}

	// SQLite keeps insertion order through the implicit rowid.
	SQLite = Dialect{
		Name:        "sqlite",
		Driver:      "sqlite3",
		createTable: "CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, body BLOB NOT NULL)",
		orderBy:     "rowid",
		placeholder: func(int) string { return "?" },
	}
)

// DialectFor returns the dialect registered for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "pgx", "":
		return Postgres, nil
	case "postgres", "pq":
		return PostgresPQ, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported sql driver %q", driver)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d Dialect) createTableSQL(table string) string {
	return fmt.Sprintf(d.createTable, quoteIdent(table))
}

func (d Dialect) scanSQL(table string) string {
	return fmt.Sprintf("SELECT body FROM %s ORDER BY %s", quoteIdent(table), d.orderBy)
}

func (d Dialect) getSQL(table string) string {
	return fmt.Sprintf("SELECT body FROM %s WHERE id = %s", quoteIdent(table), d.placeholder(1))
}

func (d Dialect) insertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s (id, body) VALUES (%s, %s)", quoteIdent(table), d.placeholder(1), d.placeholder(2))
}

func (d Dialect) replaceSQL(table string) string {
	return fmt.Sprintf("UPDATE %s SET body = %s WHERE id = %s", quoteIdent(table), d.placeholder(1), d.placeholder(2))
}

func (d Dialect) deleteSQL(table string, n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", quoteIdent(table), strings.Join(marks, ", "))
}

func (d Dialect) dropSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(table))
}
