package models

import "time"

// TrackedEntity is the kind-agnostic view of either tracked row.
type TrackedEntity struct {
	ID                 string    `json:"id"`
	Kind               string    `json:"kind"`
	ParentID           string    `json:"parentId"`
	CandidateProfileID string    `json:"candidateProfileId"`
	Status             string    `json:"status"`
	StatusLabel        string    `json:"statusLabel"`
	StatusColor        string    `json:"statusColor"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// StatusContext is the read-only data needed to word a status notification.
type StatusContext struct {
	ParentName      string `json:"parentName"`
	CompanyName     string `json:"companyName"`
	RecipientUserID string `json:"recipientUserId"`
}
