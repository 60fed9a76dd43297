package dto

import "github.com/noah-isme/backoffice-api/internal/models"

// UserSummary is the directory view of a user for form dropdowns.
type UserSummary struct {
	ID       string          `json:"id"`
	FullName string          `json:"full_name"`
	Role     models.UserRole `json:"role"`
}

// FormData aggregates every dropdown source a back-office form needs, loaded
// in one round trip.
type FormData struct {
	Stores     []models.Store    `json:"stores"`
	Categories []models.Category `json:"categories"`
	Suppliers  []models.Supplier `json:"suppliers"`
	Users      []UserSummary     `json:"users"`
	Warnings   []string          `json:"warnings,omitempty"`
}
