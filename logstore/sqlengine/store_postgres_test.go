package sqlengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xef5000/UltimateLogger/logstore"
	"github.com/xef5000/UltimateLogger/logstore/sqlengine"
	. "github.com/xef5000/UltimateLogger/testutil/helper" //nolint:revive
	"github.com/xef5000/UltimateLogger/testutil/helper/postgreswrapper"
)

func givenStoredPostgresRecords(t *testing.T, store *sqlengine.Store, records ...logstore.Record) []int64 {
	t.Helper()

	results, err := store.InsertBatch(context.Background(), records)
	require.NoError(t, err, "error in arranging test data")

	ids := make([]int64, 0, len(results))
	for _, result := range results {
		require.NoError(t, result.Err, "error in arranging test data")
		ids = append(ids, result.ID)
	}

	return ids
}

func Test_Postgres_InsertBatch_Then_Records_Round_Trip(t *testing.T) {
	// setup
	ctx := context.Background()
	store := postgreswrapper.NewStore(t)

	// arrange
	ids := givenStoredPostgresRecords(t, store, FixtureOrderPlaced("A1", 12.5, "DE"), FixtureUserLogin("alice", 3))

	// act
	loaded, err := store.GetByID(ctx, ids[0])

	// assert
	require.NoError(t, err)
	assert.Greater(t, ids[1], ids[0])
	assert.Equal(t, sqlengine.DialectPostgres, store.Dialect())
	assert.Equal(t, FixtureTypeOrderPlaced, loaded.Type)
	assert.True(t, FakeClock.Equal(loaded.Timestamp))
	amount, found := loaded.Payload.Get("amount")
	assert.True(t, found)
	assert.Equal(t, "12.5", amount.String())
}

func Test_Postgres_QueryPage_Applies_Conditions_On_JSONB_Payload(t *testing.T) {
	// setup
	ctx := context.Background()
	store := postgreswrapper.NewStore(t)

	// arrange
	givenStoredPostgresRecords(t, store,
		FixtureOrderPlaced("A1", 50, "DE"),
		FixtureOrderPlaced("A2", 150, "DE"),
		FixtureOrderPlaced("A3", 250, "FR"),
		FixtureOrderPlaced("B1", 300, "US"),
		FixtureUserLogin("alice", 1),
	)

	tests := []struct {
		name     string
		filter   logstore.Filter
		expected []string
	}{
		{
			name:     "numeric comparison",
			filter:   logstore.BuildFilter().OfType(FixtureTypeOrderPlaced).Where("amount", logstore.GreaterThan, "100").Finalize(),
			expected: []string{"B1", "A3", "A2"},
		},
		{
			name: "and with or group",
			filter: logstore.BuildFilter().
				Where("amount", logstore.GreaterOrEqual, "150").
				OrWhere("country", logstore.Equal, "DE").
				OrWhere("country", logstore.Equal, "FR").
				Finalize(),
			expected: []string{"A3", "A2"},
		},
		{
			name:     "starts with",
			filter:   logstore.BuildFilter().Where("order_id", logstore.StartsWith, "A").Finalize(),
			expected: []string{"A3", "A2", "A1"},
		},
		{
			name:     "contains",
			filter:   logstore.BuildFilter().Where("country", logstore.Contains, "U").Finalize(),
			expected: []string{"B1"},
		},
		{
			name:     "bool rendered as text",
			filter:   logstore.BuildFilter().Where("gift", logstore.Equal, "false").Where("country", logstore.Equal, "US").Finalize(),
			expected: []string{"B1"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// act
			page, err := store.QueryPage(ctx, tc.filter, 10, 0)

			// assert
			require.NoError(t, err)
			orderIDs := make([]string, 0, len(page))
			for _, record := range page {
				orderID, _ := record.Payload.Get("order_id")
				orderIDs = append(orderIDs, orderID.String())
			}
			assert.Equal(t, tc.expected, orderIDs)
		})
	}
}

func Test_Postgres_QueryPage_Compares_Numeric_Text_Numerically(t *testing.T) {
	// setup
	ctx := context.Background()
	store := postgreswrapper.NewStore(t)

	textAmount := func(orderID, amount string) logstore.Record {
		return logstore.NewRecord(FixtureTypeOrderPlaced, logstore.NewPayload(
			logstore.StringField("order_id", orderID),
			logstore.StringField("amount", amount),
		))
	}

	// arrange
	givenStoredPostgresRecords(t, store,
		textAmount("S1", "42"),
		textAmount("S2", " 7 "),
		textAmount("S3", "1e2"),
		textAmount("S4", "abc"),
		textAmount("S5", "1-2"),
		FixtureOrderPlaced("N1", 12, "DE"),
	)
	filter := logstore.BuildFilter().Where("amount", logstore.GreaterThan, "10").Finalize()

	// act
	page, err := store.QueryPage(ctx, filter, 10, 0)

	// assert
	require.NoError(t, err)
	orderIDs := make([]string, 0, len(page))
	for _, record := range page {
		assert.True(t, filter.Matches(record))
		orderID, _ := record.Payload.Get("order_id")
		orderIDs = append(orderIDs, orderID.String())
	}
	assert.Equal(t, []string{"N1", "S3", "S1"}, orderIDs)
}

func Test_Postgres_DeleteExpired_Skips_Archived_Records(t *testing.T) {
	// setup
	ctx := context.Background()
	store := postgreswrapper.NewStore(t)
	now := FakeClock.Add(24 * time.Hour)

	// arrange
	ids := givenStoredPostgresRecords(t, store,
		FixtureExpiringRecord("note", now.Add(-time.Hour)),
		FixtureExpiringRecord("note", now.Add(-time.Hour)),
		FixtureExpiringRecord("note", now.Add(time.Hour)),
	)
	archived, archiveErr := store.SetArchived(ctx, ids[1], true, nil)
	require.NoError(t, archiveErr)
	require.True(t, archived)

	// act
	deleted, err := store.DeleteExpired(ctx, now)

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	types, typesErr := store.DistinctTypes(ctx)
	require.NoError(t, typesErr)
	assert.Equal(t, []string{"note"}, types)
}
