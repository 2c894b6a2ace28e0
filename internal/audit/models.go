package audit

import "time"

// Action names a credential lifecycle change.
type Action string

const (
	ActionCredentialAwarded Action = "credential_awarded"
	ActionCredentialRevoked Action = "credential_revoked"
	ActionCredentialDeleted Action = "credential_deleted"
)

// Event is emitted by the ledger after a change commits. It is
// transport-agnostic so log and Kafka sinks can share it.
type Event struct {
	Action         Action    `json:"action"`
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id,omitempty"`
	Username       string    `json:"username"`
	CredentialID   int64     `json:"credential_id"`
	CredentialUUID string    `json:"credential_uuid"`
	DefinitionKind string    `json:"definition_kind"`
	DefinitionID   int64     `json:"definition_id"`
	Status         string    `json:"status"`
}

// Key partitions events so one credential's history stays ordered.
func (e Event) Key() string {
	return e.CredentialUUID
}
