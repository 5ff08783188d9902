package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Error kinds. Compare with errors.Is.
var (
	ErrValidation          = errors.New("validation error")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientHolding = errors.New("insufficient holding")
	ErrSymbolTaken         = errors.New("symbol taken")
	ErrAmountTooSmall      = errors.New("amount too small")
	ErrPoolExhausted       = errors.New("pool exhausted")
	ErrStorage             = errors.New("storage failure")
)

// Error is a classified ledger failure with a reason safe to show users.
type Error struct {
	Kind   error
	Reason string
	// Minimum is the smallest viable amount for ErrAmountTooSmall, 0 if unknown.
	Minimum int64
	cause   error
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Is matches the error kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Retriable reports whether repeating the whole operation may succeed.
func (e *Error) Retriable() bool {
	return e.Kind == ErrStorage
}

// Fail builds an Error of the given kind.
func Fail(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// TooSmall builds an ErrAmountTooSmall error carrying the minimum viable amount.
func TooSmall(minimum int64, unit string) *Error {
	e := &Error{Kind: ErrAmountTooSmall, Minimum: minimum}
	if minimum > 0 {
		e.Reason = fmt.Sprintf("minimum is %d %s", minimum, unit)
	} else {
		e.Reason = "trade would yield less than one unit"
	}
	return e
}

// IsBusiness reports whether err is an expected, user-facing rejection.
func IsBusiness(err error) bool {
	var le *Error
	return errors.As(err, &le) && le.Kind != ErrStorage
}

// PostgreSQL SQLSTATE codes that abort a unit of work but are safe to retry.
var retriableCodes = map[string]string{
	"40001": "serialization failure",
	"40P01": "deadlock detected",
	"55P03": "lock timeout",
	"57014": "query canceled",
}

// classify maps driver and gorm errors into the ledger taxonomy. Already
// classified errors pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: ErrNotFound, Reason: "record not found", cause: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Kind: ErrSymbolTaken, Reason: "symbol already exists", cause: err}
	case errors.Is(err, gorm.ErrInvalidData):
		return &Error{Kind: ErrValidation, Reason: "record failed validation", cause: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return storageFailure(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &Error{Kind: ErrSymbolTaken, Reason: "symbol already exists", cause: err}
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && isSQLiteUnique(liteErr) {
		return &Error{Kind: ErrSymbolTaken, Reason: "symbol already exists", cause: err}
	}
	return storageFailure(err)
}

// Classify maps an error from a read-only query into the taxonomy.
func Classify(err error) error {
	return classify(err)
}

func isSQLiteUnique(err *sqlite.Error) bool {
	if err.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return err.Code() == sqlite3.SQLITE_CONSTRAINT && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func storageFailure(cause error) *Error {
	return &Error{Kind: ErrStorage, Reason: "temporary failure, please try again", cause: cause}
}

// StorageDetail describes the underlying storage failure for logs.
func StorageDetail(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if what, ok := retriableCodes[pgErr.Code]; ok {
			return what
		}
		return pgErr.Code
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY:
			return "database busy"
		case sqlite3.SQLITE_LOCKED:
			return "database table locked"
		}
		return fmt.Sprintf("sqlite code %d", liteErr.Code())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "deadline exceeded"
	}
	return "unclassified"
}
