package models

import "time"

// JobAlert is a saved search delivered on a fixed cadence.
type JobAlert struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Keywords   string     `json:"keywords"`
	Location   string     `json:"location"`
	Frequency  string     `json:"frequency"`
	IsActive   bool       `json:"isActive"`
	LastSentAt *time.Time `json:"lastSentAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// JobMatch is a job returned by the alert search.
type JobMatch struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	CompanyName string    `json:"companyName"`
	Location    string    `json:"location"`
	PostedAt    time.Time `json:"postedAt"`
}
