package database

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcnair/stockfolio/internal/apperrors"
	"github.com/jmcnair/stockfolio/internal/models"
)

func promoteFixture(userID uuid.UUID) *models.Holding {
	return &models.Holding{
		UserID:       userID,
		Symbol:       "AAPL",
		Name:         "Apple Inc.",
		Quantity:     10,
		BuyPrice:     decimal.NewFromInt(100),
		CurrentPrice: decimal.NewFromInt(100),
		Invested:     decimal.NewFromInt(1000),
		CurrentValue: decimal.NewFromInt(1000),
		PurchaseDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPromoteWatchlistEntry_Success(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}
	userID := uuid.New()
	holding := promoteFixture(userID)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM watchlist").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO holdings").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	err = db.PromoteWatchlistEntry(userID, holding)
	require.NoError(t, err)

	assert.Equal(t, 7, holding.ID)
	assert.Equal(t, int64(1), holding.Version)
	assert.False(t, holding.LastUpdated.IsZero())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteWatchlistEntry_MissingEntryRollsBack(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM watchlist").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = db.PromoteWatchlistEntry(userID, promoteFixture(userID))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteWatchlistEntry_InsertFailureRollsBack(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM watchlist").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO holdings").WillReturnError(errors.New("insert failed"))
	mock.ExpectRollback()

	err = db.PromoteWatchlistEntry(userID, promoteFixture(userID))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create holding")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteIntoHolding_Success(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}
	userID := uuid.New()
	holding := promoteFixture(userID)
	holding.Version = 3

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE holdings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM watchlist").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = db.PromoteIntoHolding(userID, holding)
	require.NoError(t, err)

	assert.Equal(t, int64(4), holding.Version)
	assert.False(t, holding.LastUpdated.IsZero())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteIntoHolding_DeleteFailureRollsBack(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}
	userID := uuid.New()
	holding := promoteFixture(userID)
	holding.Version = 1

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE holdings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM watchlist").WillReturnError(errors.New("delete failed"))
	mock.ExpectRollback()

	err = db.PromoteIntoHolding(userID, holding)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to remove watchlist entry")
	// The averaged quantities roll back with the transaction.
	assert.Equal(t, int64(1), holding.Version)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteIntoHolding_MissingEntryRollsBack(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE holdings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM watchlist").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = db.PromoteIntoHolding(userID, promoteFixture(userID))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteIntoHolding_StaleVersionRollsBack(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE holdings").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err = db.PromoteIntoHolding(userID, promoteFixture(userID))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConcurrentModification)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteWatchlistEntry_BeginFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}
	userID := uuid.New()

	mock.ExpectBegin().WillReturnError(errors.New("begin failed"))

	err = db.PromoteWatchlistEntry(userID, promoteFixture(userID))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin transaction")

	require.NoError(t, mock.ExpectationsWereMet())
}
