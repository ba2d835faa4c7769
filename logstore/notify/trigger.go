package notify

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/xef5000/UltimateLogger/logstore"
	"github.com/xef5000/UltimateLogger/logstore/ingest"
)

var ErrMissingSubscriber = errors.New("notify trigger requires a subscriber and a dispatcher")

const (
	logMsgTriggerStarted = "logstore operation: webhook trigger started"
	logMsgDecodeFailed   = "failed to decode persisted record"
	logAttrWebhooks      = "webhooks"
	logAttrMessageID     = "message_id"
)

// Sender is what the Trigger hands records to. *Dispatcher implements it.
type Sender interface {
	Dispatch(url, recordType string, record logstore.Record, conditions []logstore.Condition)
}

// Trigger feeds persisted records to the webhooks configured for their type.
type Trigger struct {
	subscriber message.Subscriber
	sender     Sender
	byType     map[string][]WebhookConfig
	logger     logstore.Logger
}

func NewTrigger(
	subscriber message.Subscriber,
	sender Sender,
	webhooks []WebhookConfig,
	logger logstore.Logger,
) (*Trigger, error) {
	if subscriber == nil || sender == nil {
		return nil, ErrMissingSubscriber
	}

	byType := make(map[string][]WebhookConfig)
	for _, webhook := range webhooks {
		byType[webhook.Type] = append(byType[webhook.Type], webhook)
	}

	return &Trigger{subscriber: subscriber, sender: sender, byType: byType, logger: logger}, nil
}

// Start subscribes to the persisted-records topic and consumes it on a new goroutine until ctx
// is cancelled or the subscriber closes. The subscription exists when Start returns, so records
// published afterwards are not missed. The returned channel is closed once consumption stopped.
func (t *Trigger) Start(ctx context.Context) (<-chan struct{}, error) {
	messages, err := t.subscriber.Subscribe(ctx, ingest.TopicPersistedRecords)
	if err != nil {
		return nil, err
	}

	if t.logger != nil {
		t.logger.Info(logMsgTriggerStarted, logAttrWebhooks, len(t.byType))
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		t.consume(ctx, messages)
	}()

	return stopped, nil
}

// Run is Start followed by waiting for consumption to stop.
func (t *Trigger) Run(ctx context.Context) error {
	stopped, err := t.Start(ctx)
	if err != nil {
		return err
	}

	<-stopped

	return nil
}

func (t *Trigger) consume(ctx context.Context, messages <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			t.handle(msg)
		}
	}
}

func (t *Trigger) handle(msg *message.Message) {
	defer msg.Ack()

	webhooks := t.byType[msg.Metadata.Get(ingest.MetadataRecordType)]
	if len(webhooks) == 0 {
		return
	}

	var record logstore.Record
	if err := record.UnmarshalJSON(msg.Payload); err != nil {
		if t.logger != nil {
			t.logger.Warn(logMsgDecodeFailed, logAttrMessageID, msg.UUID, logAttrError, err.Error())
		}

		return
	}

	for _, webhook := range webhooks {
		t.sender.Dispatch(webhook.URL, record.Type, record, webhook.Conditions)
	}
}
