package notify

import (
	"errors"

	"github.com/xef5000/UltimateLogger/logstore"
)

var ErrInvalidWebhook = errors.New("invalid webhook config")

// WebhookConfig binds a webhook URL to one record type. Conditions may be empty, which notifies on every record.
type WebhookConfig struct {
	Type       string
	URL        string
	Conditions []logstore.Condition
}

// ParseWebhook builds a WebhookConfig from its config-file form, where conditions are a bare
// condition list like "amount|>|100&country|=|DE".
func ParseWebhook(recordType, url, conditions string) (WebhookConfig, error) {
	if recordType == "" || url == "" {
		return WebhookConfig{}, errors.Join(ErrInvalidWebhook, errors.New("type and url are required"))
	}

	parsed, err := logstore.ParseConditions(conditions)
	if err != nil {
		return WebhookConfig{}, errors.Join(ErrInvalidWebhook, err)
	}

	return WebhookConfig{Type: recordType, URL: url, Conditions: parsed}, nil
}
