package notify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xef5000/UltimateLogger/logstore"
	"github.com/xef5000/UltimateLogger/logstore/notify"
)

func Test_ParseWebhook(t *testing.T) {
	t.Run("parses a bare condition list", func(t *testing.T) {
		webhook, err := notify.ParseWebhook("order_placed", "http://hooks.local/a", "amount|>|100&country|=|DE")

		require.NoError(t, err)
		assert.Equal(t, "order_placed", webhook.Type)
		assert.Equal(t, "http://hooks.local/a", webhook.URL)
		require.Len(t, webhook.Conditions, 2)
		assert.Equal(t, logstore.GreaterThan, webhook.Conditions[0].Comparator)
		assert.False(t, webhook.Conditions[0].IsOr())
		assert.True(t, webhook.Conditions[1].IsOr())
	})

	t.Run("empty conditions match everything", func(t *testing.T) {
		webhook, err := notify.ParseWebhook("order_placed", "http://hooks.local/a", "")

		require.NoError(t, err)
		assert.Empty(t, webhook.Conditions)
	})

	t.Run("missing url", func(t *testing.T) {
		_, err := notify.ParseWebhook("order_placed", "", "")

		assert.ErrorIs(t, err, notify.ErrInvalidWebhook)
	})
}
