package logstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xef5000/UltimateLogger/logstore"
)

func Test_Record_IsExpired(t *testing.T) {
	// setup
	now := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name     string
		record   logstore.Record
		expected bool
	}{
		{name: "no expiry never expires", record: logstore.Record{}, expected: false},
		{name: "expiry in the past", record: logstore.Record{ExpiresAt: &past}, expected: true},
		{name: "expiry in the future", record: logstore.Record{ExpiresAt: &future}, expected: false},
		{name: "archived never expires", record: logstore.Record{Archived: true, ExpiresAt: &past}, expected: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.record.IsExpired(now))
		})
	}
}

func Test_ExpiryFor_When_Retention_Is_Disabled_Then_It_Is_Nil(t *testing.T) {
	// setup
	now := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)

	// act
	disabled := logstore.ExpiryFor(now, 0)
	enabled := logstore.ExpiryFor(now, 30*24*time.Hour)

	// assert
	assert.Nil(t, disabled)
	require.NotNil(t, enabled)
	assert.True(t, now.AddDate(0, 0, 30).Equal(*enabled))
}

func Test_Record_JSON_Uses_Epoch_Millis_And_Nested_Payload(t *testing.T) {
	// arrange
	timestamp := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	expiresAt := timestamp.Add(time.Hour)
	record := logstore.NewRecord("player_chat", logstore.NewPayload(logstore.StringField("message", "hi")))
	record.ID = 7
	record.Timestamp = timestamp
	record.ExpiresAt = &expiresAt

	// act
	data, err := record.MarshalJSON()
	require.NoError(t, err)

	var decoded logstore.Record
	decodeErr := decoded.UnmarshalJSON(data)

	// assert
	assert.JSONEq(t,
		`{"id":7,"log_type":"player_chat","timestamp":1714564800000,"is_archived":false,"expires_at":1714568400000,"data":{"message":"hi"}}`,
		string(data),
	)
	require.NoError(t, decodeErr)
	assert.Equal(t, record.ID, decoded.ID)
	assert.Equal(t, record.Type, decoded.Type)
	assert.True(t, timestamp.Equal(decoded.Timestamp))
	require.NotNil(t, decoded.ExpiresAt)
	assert.True(t, expiresAt.Equal(*decoded.ExpiresAt))
	assert.True(t, record.Payload.Equal(decoded.Payload))
}

func Test_Record_Clone_Shares_No_Memory(t *testing.T) {
	// arrange
	expiresAt := time.UnixMilli(1_700_000_000_000)
	original := logstore.NewRecord("chat", logstore.NewPayload(logstore.StringField("message", "hi")))
	original.ExpiresAt = &expiresAt

	// act
	cloned := original.Clone()
	cloned.Payload.Set("message", logstore.StringValue("changed"))
	*cloned.ExpiresAt = cloned.ExpiresAt.Add(time.Hour)

	// assert
	message, _ := original.Payload.Get("message")
	assert.Equal(t, "hi", message.String())
	assert.True(t, expiresAt.Equal(*original.ExpiresAt))
}
