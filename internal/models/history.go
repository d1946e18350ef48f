package models

import "time"

// StatusHistory is one immutable audit row. ID is the monotonic sequence used
// to break ties between rows written within the same timestamp.
type StatusHistory struct {
	ID        int64     `json:"id"`
	ParentID  string    `json:"parentId"`
	Status    string    `json:"status"`
	Notes     *string   `json:"notes,omitempty"`
	ChangedBy *string   `json:"changedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// StatusChange describes one committed status mutation. It is handed to the
// notifier after the transaction that produced it commits.
type StatusChange struct {
	Kind            string    `json:"kind"`
	EntityID        string    `json:"entityId"`
	ParentID        string    `json:"parentId"`
	ParentName      string    `json:"parentName"`
	CompanyName     string    `json:"companyName"`
	RecipientUserID string    `json:"recipientUserId"`
	PreviousStatus  string    `json:"previousStatus"`
	CurrentStatus   string    `json:"currentStatus"`
	Note            *string   `json:"note,omitempty"`
	ActorID         *string   `json:"actorId,omitempty"`
	HistoryID       int64     `json:"historyId"`
	ChangedAt       time.Time `json:"changedAt"`
}
