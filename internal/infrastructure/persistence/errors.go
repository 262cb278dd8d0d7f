package persistence

import (
	"errors"
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"gorm.io/gorm"
)

// SQLSTATE codes that mean a transaction lost a race and may be retried
const (
	sqlStateLockNotAvailable     = "55P03"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// sqlStater is implemented by both pgconn.PgError and pq.Error
type sqlStater interface {
	SQLState() string
}

// translateError maps driver errors onto domain sentinels.
// The database must be opened with TranslateError so unique violations
// arrive as gorm.ErrDuplicatedKey on every dialect.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", shared.ErrDuplicateKey, err)
	}
	var st sqlStater
	if errors.As(err, &st) {
		switch st.SQLState() {
		case sqlStateLockNotAvailable, sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return fmt.Errorf("%w: %v", shared.ErrConcurrencyConflict, err)
		}
	}
	return err
}
