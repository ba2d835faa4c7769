package notify

import (
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"

	"github.com/xef5000/UltimateLogger/logstore"
)

const (
	embedUsername = "UltimateLogger"
	embedColor    = 5814783
)

type webhookMessage struct {
	Username string  `json:"username"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title     string       `json:"title"`
	Color     int          `json:"color"`
	Fields    []embedField `json:"fields"`
	Footer    embedFooter  `json:"footer"`
	Timestamp string       `json:"timestamp"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedFooter struct {
	Text string `json:"text"`
}

// BuildEmbed renders the webhook body for one record, one inline field per payload entry in payload order.
func BuildEmbed(recordType string, record logstore.Record, sentAt time.Time) ([]byte, error) {
	fields := make([]embedField, 0, record.Payload.Len())
	for _, field := range record.Payload.Fields() {
		fields = append(fields, embedField{
			Name:   FormatKey(field.Key),
			Value:  "```" + field.Value.String() + "```",
			Inline: true,
		})
	}

	msg := webhookMessage{
		Username: embedUsername,
		Embeds: []embed{{
			Title:     "New Log: " + recordType,
			Color:     embedColor,
			Fields:    fields,
			Footer:    embedFooter{Text: "Log ID: " + strconv.FormatInt(record.ID, 10)},
			Timestamp: sentAt.UTC().Format(time.RFC3339Nano),
		}},
	}

	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(msg)
}

// FormatKey turns "player_name" into "Player Name".
func FormatKey(key string) string {
	words := strings.Split(key, "_")
	formatted := make([]string, 0, len(words))

	for _, word := range words {
		if word == "" {
			continue
		}

		first, size := utf8.DecodeRuneInString(word)
		formatted = append(formatted, string(unicode.ToUpper(first))+strings.ToLower(word[size:]))
	}

	return strings.Join(formatted, " ")
}
