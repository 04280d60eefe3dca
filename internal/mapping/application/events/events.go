package events

import "time"

// EditCommitted signals a committed (non-provisional) edit to a mapping
// record. Drag-continuous updates never publish it.
type EditCommitted struct {
	ProfileID    string    `json:"profile_id"`
	SubProfileID string    `json:"sub_profile_id"`
	RecordKey    int64     `json:"record_key"`
	Field        string    `json:"field"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// ConflictDetected signals that the duplicate-key scan flagged records.
type ConflictDetected struct {
	ProfileID    string   `json:"profile_id"`
	SubProfileID string   `json:"sub_profile_id"`
	SourceKeys   []string `json:"source_keys"`
}

// SyncFlushed signals one completed debounced push pass.
type SyncFlushed struct {
	ProfileID    string `json:"profile_id"`
	SubProfileID string `json:"sub_profile_id"`
	Pushed       int    `json:"pushed"`
	Buffered     int    `json:"buffered"`
	Failed       int    `json:"failed"`
}

// IdentityRemapped signals a creation identity collision resolved during
// reconciliation.
type IdentityRemapped struct {
	ProfileID    string `json:"profile_id"`
	SubProfileID string `json:"sub_profile_id"`
	OldKey       int64  `json:"old_key"`
	NewKey       int64  `json:"new_key"`
}
