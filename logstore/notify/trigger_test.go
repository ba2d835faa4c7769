package notify_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xef5000/UltimateLogger/logstore"
	"github.com/xef5000/UltimateLogger/logstore/ingest"
	"github.com/xef5000/UltimateLogger/logstore/notify"
	. "github.com/xef5000/UltimateLogger/testutil/helper" //nolint:revive
)

type dispatchCall struct {
	url        string
	recordType string
	recordID   int64
	conditions int
}

type senderSpy struct {
	mu    sync.Mutex
	calls []dispatchCall
}

func (s *senderSpy) Dispatch(url, recordType string, record logstore.Record, conditions []logstore.Condition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, dispatchCall{url: url, recordType: recordType, recordID: record.ID, conditions: len(conditions)})
}

func (s *senderSpy) snapshot() []dispatchCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]dispatchCall(nil), s.calls...)
}

func publishPersisted(t *testing.T, publisher message.Publisher, record logstore.Record) {
	payload, err := record.MarshalJSON()
	require.NoError(t, err)

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(ingest.MetadataRecordID, strconv.FormatInt(record.ID, 10))
	msg.Metadata.Set(ingest.MetadataRecordType, record.Type)
	require.NoError(t, publisher.Publish(ingest.TopicPersistedRecords, msg))
}

func Test_Trigger_Run_DispatchesToEveryWebhookOfTheRecordType(t *testing.T) {
	// setup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	defer func() { _ = pubSub.Close() }()

	sender := &senderSpy{}
	webhooks := []notify.WebhookConfig{
		{Type: FixtureTypeOrderPlaced, URL: "http://hooks.local/orders"},
		{
			Type:       FixtureTypeOrderPlaced,
			URL:        "http://hooks.local/big-orders",
			Conditions: []logstore.Condition{logstore.Cond("amount", logstore.GreaterThan, "100")},
		},
		{Type: FixtureTypeUserLogin, URL: "http://hooks.local/logins"},
	}
	trigger, err := notify.NewTrigger(pubSub, sender, webhooks, nil)
	require.NoError(t, err)

	// arrange
	publishPersisted(t, pubSub, storedOrder(11, 250, "DE"))

	login := FixtureUserLogin("alice", 1)
	login.ID = 12
	login.Timestamp = FakeClock
	publishPersisted(t, pubSub, login)

	chat := logstore.NewRecord("player_chat", logstore.NewPayload())
	chat.ID = 13
	chat.Timestamp = FakeClock
	publishPersisted(t, pubSub, chat)

	// act
	go func() { _ = trigger.Run(ctx) }()

	// assert
	assert.Eventually(t, func() bool { return len(sender.snapshot()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []dispatchCall{
		{url: "http://hooks.local/orders", recordType: FixtureTypeOrderPlaced, recordID: 11, conditions: 0},
		{url: "http://hooks.local/big-orders", recordType: FixtureTypeOrderPlaced, recordID: 11, conditions: 1},
		{url: "http://hooks.local/logins", recordType: FixtureTypeUserLogin, recordID: 12, conditions: 0},
	}, sender.snapshot())
}

func Test_NewTrigger_RequiresSubscriberAndSender(t *testing.T) {
	_, err := notify.NewTrigger(nil, &senderSpy{}, nil, nil)

	assert.ErrorIs(t, err, notify.ErrMissingSubscriber)
}
