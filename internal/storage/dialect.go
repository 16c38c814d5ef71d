package storage

import (
	"strconv"
	"strings"
)

// Dialect selects SQL driver and placeholder style.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) String() string { return string(d) }

// DriverName is the database/sql driver registered for d.
func (d Dialect) DriverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// Rebind rewrites ? placeholders to $n for postgres. Quoted strings are left
// untouched.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var (
		b       strings.Builder
		n       int
		inQuote bool
	)
	b.Grow(len(query) + 8)
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
