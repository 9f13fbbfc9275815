package database

import (
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"
)

// Excluded references the EXCLUDED pseudo-table in an upsert assignment
func Excluded(column string) any {
	return sqlbuilder.Raw(fmt.Sprintf("EXCLUDED.%s", column))
}

// IsUniqueViolation reports whether the error is a Postgres unique-constraint
// violation. Concurrent inserts of the same canonical pair key are expected
// and treated as already-processed.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
