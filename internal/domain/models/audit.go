package models

import "time"

// Audit statuses.
const (
	AuditSuccess = "success"
	AuditFailed  = "failed"
)

// AuditEntry records one user action.
type AuditEntry struct {
	ID        uint      `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Action    string    `json:"action"`
	Module    string    `json:"module"`
	Details   string    `json:"details"`
	IPAddress string    `json:"ip_address"`
	Status    string    `json:"status"`
}

// AuditFilter narrows an audit listing. Zero values match everything.
type AuditFilter struct {
	From   time.Time
	To     time.Time
	User   string
	Action string
}
