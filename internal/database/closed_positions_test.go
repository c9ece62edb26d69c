package database

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcnair/stockfolio/internal/apperrors"
	"github.com/jmcnair/stockfolio/internal/models"
)

func newClosedPosition(userID uuid.UUID, symbol string, pl int64, closedDate time.Time) *models.ClosedPosition {
	return &models.ClosedPosition{
		UserID:        userID,
		Symbol:        symbol,
		Name:          symbol + " Inc.",
		Quantity:      5,
		BuyPrice:      decimal.NewFromInt(100),
		SellPrice:     decimal.NewFromInt(100 + pl/5),
		Invested:      decimal.NewFromInt(500),
		Realized:      decimal.NewFromInt(500 + pl),
		Pl:            decimal.NewFromInt(pl),
		PlPercent:     decimal.NewFromInt(pl / 5),
		PurchaseDate:  closedDate.AddDate(0, -1, 0),
		ClosedDate:    closedDate,
		HoldingPeriod: "1 month",
	}
}

func TestClosedPositionsRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("AppendClosedPosition and GetClosedPositions order newest first", func(t *testing.T) {
		testDB.TruncateAll(t)
		userID := createTestUser(t, testDB)

		older := newClosedPosition(userID, "AAPL", 100, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
		newer := newClosedPosition(userID, "AAPL", -50, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
		require.NoError(t, testDB.AppendClosedPosition(older))
		require.NoError(t, testDB.AppendClosedPosition(newer))

		history, err := testDB.GetClosedPositions(userID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, newer.ID, history[0].ID)
		assert.Equal(t, older.ID, history[1].ID)
	})

	t.Run("Same symbol can close many times", func(t *testing.T) {
		testDB.TruncateAll(t)
		userID := createTestUser(t, testDB)

		for i := 0; i < 3; i++ {
			closed := newClosedPosition(userID, "AAPL", 100, time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC))
			require.NoError(t, testDB.AppendClosedPosition(closed))
		}

		history, err := testDB.GetClosedPositions(userID)
		require.NoError(t, err)
		assert.Len(t, history, 3)
	})

	t.Run("DeleteClosedPosition is scoped to the owner", func(t *testing.T) {
		testDB.TruncateAll(t)
		owner := createTestUser(t, testDB)
		other := createTestUser(t, testDB)

		closed := newClosedPosition(owner, "AAPL", 100, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
		require.NoError(t, testDB.AppendClosedPosition(closed))

		err := testDB.DeleteClosedPosition(other, closed.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)

		require.NoError(t, testDB.DeleteClosedPosition(owner, closed.ID))
	})

	t.Run("RealizedPl sums history", func(t *testing.T) {
		testDB.TruncateAll(t)
		userID := createTestUser(t, testDB)

		require.NoError(t, testDB.AppendClosedPosition(newClosedPosition(userID, "AAPL", 100, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))))
		require.NoError(t, testDB.AppendClosedPosition(newClosedPosition(userID, "MSFT", -30, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC))))

		total, err := testDB.RealizedPl(userID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(70).Equal(total), "total = %s", total)
	})

	t.Run("RealizedPl is zero with no history", func(t *testing.T) {
		testDB.TruncateAll(t)
		userID := createTestUser(t, testDB)

		total, err := testDB.RealizedPl(userID)
		require.NoError(t, err)
		assert.True(t, total.IsZero())
	})
}
