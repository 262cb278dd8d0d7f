// Package testutil holds fixtures shared by package and integration tests.
package testutil

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockDB is a gorm handle whose statements are answered by sqlmock
type MockDB struct {
	DB   *gorm.DB
	Mock sqlmock.Sqlmock
}

// NewMockDB creates a postgres-dialect GORM handle over sqlmock.
// The connection is closed on test cleanup.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create sqlmock")

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err, "Failed to open gorm over sqlmock")

	t.Cleanup(func() { _ = sqlDB.Close() })
	return &MockDB{DB: db, Mock: mock}
}

// ExpectationsWereMet asserts every queued sqlmock expectation ran.
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	assert.NoError(t, m.Mock.ExpectationsWereMet(), "Unfulfilled sqlmock expectations")
}

// Date parses a YYYY-MM-DD date in UTC and panics on malformed input.
func Date(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

// DatePtr is Date for optional fields such as expiry dates.
func DatePtr(s string) *time.Time {
	d := Date(s)
	return &d
}

// Qty is a whole-unit quantity.
func Qty(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// AssertQty compares decimals by value, ignoring exponent differences such as 5 vs 5.0000.
func AssertQty(t *testing.T, want int64, got decimal.Decimal, msgAndArgs ...any) bool {
	t.Helper()
	return assert.True(t, got.Equal(Qty(want)), append([]any{"want %d, got %s", want, got}, msgAndArgs...)...)
}
