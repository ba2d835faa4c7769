package logstore

import (
	"errors"

	jsoniter "github.com/json-iterator/go"
)

var recordJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// recordDocument is the JSON shape of a Record, shared by the HTTP API and the persisted-records topic.
// Times are epoch milliseconds, the same representation the storage table uses.
type recordDocument struct {
	ID        int64   `json:"id"`
	Type      string  `json:"log_type"`
	Timestamp int64   `json:"timestamp"`
	Archived  bool    `json:"is_archived"`
	ExpiresAt *int64  `json:"expires_at"`
	Data      Payload `json:"data"`
}

// MarshalJSON encodes the record with its payload as a nested flat object.
func (r Record) MarshalJSON() ([]byte, error) {
	doc := recordDocument{
		ID:        r.ID,
		Type:      r.Type,
		Timestamp: ToEpochMillis(r.Timestamp),
		Archived:  r.Archived,
		Data:      r.Payload,
	}

	if r.ExpiresAt != nil {
		expiresAt := ToEpochMillis(*r.ExpiresAt)
		doc.ExpiresAt = &expiresAt
	}

	return recordJSON.Marshal(doc)
}

// UnmarshalJSON decodes what MarshalJSON produced.
func (r *Record) UnmarshalJSON(data []byte) error {
	var doc recordDocument
	if err := recordJSON.Unmarshal(data, &doc); err != nil {
		return errors.Join(ErrInvalidPayloadJSON, err)
	}

	*r = Record{
		ID:        doc.ID,
		Type:      doc.Type,
		Timestamp: FromEpochMillis(doc.Timestamp),
		Archived:  doc.Archived,
		Payload:   doc.Data,
	}

	if doc.ExpiresAt != nil {
		expiresAt := FromEpochMillis(*doc.ExpiresAt)
		r.ExpiresAt = &expiresAt
	}

	return nil
}
