package models

// Contact is how a user can be reached by the delivery channels.
type Contact struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone,omitempty"`
}
