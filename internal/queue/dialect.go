package queue

import (
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/tiagogladstone/the-lost-archives/internal/config"
)

// dialect captures the per-backend differences. Everything else is shared SQL.
type dialect struct {
	name          string
	driverName    string
	goose         goose.Dialect
	migrationsDir string
	// claimLock is appended to the claim subquery.
	claimLock string
	// forUpdate locks rows read in read-modify-write transactions. SQLite
	// transactions are opened IMMEDIATE and need none.
	forUpdate string
	numbered  bool
}

var (
	sqliteDialect = dialect{
		name:          config.DriverSQLite,
		driverName:    "sqlite",
		goose:         goose.DialectSQLite3,
		migrationsDir: "migrations/sqlite",
	}
	postgresDialect = dialect{
		name:          config.DriverPostgres,
		driverName:    "postgres",
		goose:         goose.DialectPostgres,
		migrationsDir: "migrations/postgres",
		claimLock:     " FOR UPDATE SKIP LOCKED",
		forUpdate:     " FOR UPDATE",
		numbered:      true,
	}
)

func dialectFor(driver string) (dialect, bool) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case config.DriverSQLite, "":
		return sqliteDialect, true
	case config.DriverPostgres:
		return postgresDialect, true
	default:
		return dialect{}, false
	}
}

// rebind rewrites '?' placeholders into '$n' for numbered dialects. Queries in
// this package never contain literal question marks.
func (d dialect) rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
