package logstore

import (
	"time"
)

// UnsetID is the id of a record that has not been persisted yet.
const UnsetID int64 = 0

// Record is one logged event.
//
// ID is assigned by the storage backend exactly once, Timestamp is set when the record
// is accepted for persistence. A nil ExpiresAt means the record never expires.
type Record struct {
	ID        int64
	Type      string
	Timestamp time.Time
	Archived  bool
	ExpiresAt *time.Time
	Payload   Payload
}

// NewRecord creates an unpersisted record of the given type.
func NewRecord(recordType string, payload Payload) Record {
	return Record{
		ID:      UnsetID,
		Type:    recordType,
		Payload: payload,
	}
}

func (r Record) IsPersisted() bool {
	return r.ID != UnsetID
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	cloned := r
	cloned.Payload = r.Payload.Clone()

	if r.ExpiresAt != nil {
		expiresAt := *r.ExpiresAt
		cloned.ExpiresAt = &expiresAt
	}

	return cloned
}

// IsExpired reports whether the retention sweep would delete r at the given time.
func (r Record) IsExpired(now time.Time) bool {
	return !r.Archived && r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// ExpiryFor returns the expiry of a record accepted at now, or nil when retention is disabled.
func ExpiryFor(now time.Time, retention time.Duration) *time.Time {
	if retention <= 0 {
		return nil
	}

	expiresAt := now.Add(retention)

	return &expiresAt
}

// ToEpochMillis converts t to the epoch milliseconds stored in the database.
func ToEpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromEpochMillis converts stored epoch milliseconds back to a UTC time.
func FromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
