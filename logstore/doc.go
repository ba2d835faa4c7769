// Package logstore provides the core types of the log store: records with an ordered,
// scalar-only payload, the AND/OR condition language shared by queries and notifications,
// and its compact text encoding.
//
// Key types:
//   - Record: one logged event (type, timestamp, archival/expiry state, payload)
//   - Payload: ordered key → Value mapping, encoded as a flat JSON object
//   - Condition: key + comparator + value + logical operator
//   - Filter: optional record type plus a list of conditions
//   - Definition: describes a capturable record type and its filterable parameters
//
// Common usage pattern:
//
//	filter := BuildFilter().
//		OfType("player_chat").
//		Where("message", Contains, "badword").
//		OrWhere("player_name", Equal, "Steve").
//		Finalize()
//
//	encoded := Serialize(filter) // "player_chat;message|contains|badword&player_name|=|Steve"
//
//	decoded, err := Deserialize(encoded)
//	if err != nil {
//		// handle error
//	}
//
//	matches := decoded.Matches(record)
package logstore
