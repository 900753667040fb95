package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mini-erp/mini-erp/internal/shared"
)

// PostgreSQL SQLSTATE codes mapped onto the error taxonomy.
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
)

// Translate maps driver errors onto shared taxonomy errors. Unknown errors are returned unchanged.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeForeignKeyViolation:
		return shared.NewConstraintError(shared.ErrUnknownReference, pgErr.ConstraintName, pgErr.Detail)
	case codeUniqueViolation, codeCheckViolation, codeNotNullViolation:
		return shared.NewConstraintError(shared.ErrConstraintViolation, pgErr.ConstraintName, pgErr.Detail)
	}
	return err
}

// TranslateDelete maps errors of DELETE statements. A foreign key failure on
// delete means the row is still referenced, which is a constraint violation
// rather than a missing reference.
func TranslateDelete(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation {
		return shared.NewConstraintError(shared.ErrConstraintViolation, pgErr.ConstraintName, pgErr.Detail)
	}
	return Translate(err)
}

// IsConstraint reports whether err is a PostgreSQL error on the named constraint.
func IsConstraint(err error, name string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.ConstraintName == name
}

// IsNoRows reports whether err signals an empty result.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
