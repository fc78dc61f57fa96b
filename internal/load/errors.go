package load

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes the loader branches on. Class 23 is integrity
// constraint violation.
const (
	codeForeignKeyViolation = "23503"
	integrityClass          = "23"
)

// isForeignKeyViolation reports whether err is a foreign-key constraint
// violation, the one recoverable store error: it means a referenced facility
// identifier is not in facility_profile yet.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}

// isConstraintViolation reports whether err is any integrity-constraint
// violation (foreign-key, check, unique, not-null). These abandon the batch
// but never the run; everything else is operational and fatal.
func isConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && len(pgErr.Code) >= 2 && pgErr.Code[:2] == integrityClass
}
