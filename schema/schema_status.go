package schema

import "time"

// StoreStatus represents the status of the experiment store.
type StoreStatus struct {
	Backend          string           `json:"backend"`
	Database         string           `json:"database,omitempty"`
	Connected        bool             `json:"connected"`
	SchemaVersion    uint             `json:"schema_version"`
	TotalAccounts    int64            `json:"total_accounts"`
	TotalExperiments int64            `json:"total_experiments"`
	TotalAssignments int64            `json:"total_assignments"`
	TotalEvents      int64            `json:"total_events"`
	LastEventTime    time.Time        `json:"last_event_time"`
	OldestEventTime  time.Time        `json:"oldest_event_time"`
	TableSizes       map[string]int64 `json:"table_sizes"`
}
