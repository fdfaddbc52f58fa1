package store

import (
	"bufio"
	"database/sql"
	_ "embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

//go:embed schema_sqlite.sql
var schemaSQLite string

//go:embed schema_postgres.sql
var schemaPostgres string

// Dialect selects the relational engine beneath the store.
type Dialect string

const (
	// SQLite is the default engine: a file path or ":memory:".
	SQLite Dialect = "sqlite"

	// Postgres takes a pgx connection string.
	Postgres Dialect = "postgres"
)

// sqliteDriverName is mattn's driver with pragmas and REGEXP installed on
// every new connection.
const sqliteDriverName = "sqlite3_onemodel"

// sqlitePragmas are applied to every pooled connection; foreign_keys is
// per-connection state in SQLite.
var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for _, pragma := range sqlitePragmas {
				if _, err := conn.Exec(pragma, nil); err != nil {
					return fmt.Errorf("failed to execute %q: %w", pragma, err)
				}
			}
			return conn.RegisterFunc("regexp", regexpMatch, true)
		},
	})
}

// regexpCacheSize bounds the compiled patterns kept across queries. Search
// patterns come from users, so the least recently used are evicted.
const regexpCacheSize = 128

var regexpCache = mustRegexpCache(regexpCacheSize)

func mustRegexpCache(size int) *lru.Cache[string, *regexp.Regexp] {
	c, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		panic(err)
	}
	return c
}

// regexpMatch backs "x REGEXP y" in SQLite, which calls regexp(y, x).
func regexpMatch(pattern, s string) (bool, error) {
	if re, ok := regexpCache.Get(pattern); ok {
		return re.MatchString(s), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	regexpCache.Add(pattern, re)
	return re.MatchString(s), nil
}

// ParseDialect accepts "sqlite", "sqlite3", "postgres" and "postgresql".
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return "", fmt.Errorf("unknown database driver %q", name)
}

func (d Dialect) driverName() string {
	if d == Postgres {
		return "pgx"
	}
	return sqliteDriverName
}

func (d Dialect) schema() string {
	if d == Postgres {
		return schemaPostgres
	}
	return schemaSQLite
}

// rebind rewrites ? placeholders to $n for Postgres. Quoted literals are
// left alone.
func (d Dialect) rebind(query string) string {
	if d != Postgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// regexMatch returns a case-insensitive "column matches ?" predicate.
func (d Dialect) regexMatch(column string) string {
	if d == Postgres {
		return column + " ~* ?"
	}
	return column + " REGEXP ?"
}

// regexArg adapts a pattern for regexMatch's placeholder.
func (d Dialect) regexArg(pattern string) string {
	if d == Postgres {
		return pattern
	}
	return "(?i)" + pattern
}

// page renders LIMIT/OFFSET. SQLite needs a LIMIT before any OFFSET.
func (d Dialect) page(offset, limit int) string {
	var b strings.Builder
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	} else if offset > 0 && d == SQLite {
		b.WriteString(" LIMIT -1")
	}
	if offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", offset)
	}
	return b.String()
}

// splitStatements splits a DDL bundle into statements. A statement ends at
// a line ending in ';' unless it is inside a trigger body (BEGIN ... END;)
// or a dollar-quoted function body. Lines starting with "--" are dropped.
func splitStatements(bundle string) []string {
	var (
		statements []string
		current    strings.Builder
		inBody     bool
		inDollar   bool
	)
	scanner := bufio.NewScanner(strings.NewReader(bundle))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')

		if strings.Count(line, "$$")%2 == 1 {
			inDollar = !inDollar
		}
		upper := strings.ToUpper(trimmed)
		if !inDollar && upper == "BEGIN" {
			inBody = true
		}
		if inBody && (upper == "END;" || upper == "END") {
			inBody = false
		}
		if !inBody && !inDollar && strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSpace(current.String())
			statements = append(statements, stmt)
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		statements = append(statements, rest)
	}
	return statements
}
