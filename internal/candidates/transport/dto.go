package transport

import "github.com/google/uuid"

// RegisterProfileRequest contains data for registering a candidate profile.
type RegisterProfileRequest struct {
	DisplayName     string   `json:"displayName" validate:"required,min=1,max=120"`
	Phone           string   `json:"phone,omitempty" validate:"omitempty,max=32"`
	Regions         []string `json:"regions" validate:"required,min=1,dive,min=1,max=80"`
	Specializations []string `json:"specializations,omitempty" validate:"omitempty,dive,min=1,max=80"`
}

// UpdateProfileRequest contains partial profile updates.
type UpdateProfileRequest struct {
	DisplayName     *string  `json:"displayName,omitempty" validate:"omitempty,min=1,max=120"`
	Phone           *string  `json:"phone,omitempty" validate:"omitempty,max=32"`
	Active          *bool    `json:"active,omitempty"`
	Regions         []string `json:"regions,omitempty" validate:"omitempty,min=1,dive,min=1,max=80"`
	Specializations []string `json:"specializations,omitempty" validate:"omitempty,dive,min=1,max=80"`
}

// ProfileResponse represents a candidate profile in API responses.
type ProfileResponse struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"userId"`
	DisplayName     string    `json:"displayName"`
	Phone           string    `json:"phone,omitempty"`
	Verified        bool      `json:"verified"`
	Active          bool      `json:"active"`
	Regions         []string  `json:"regions"`
	Specializations []string  `json:"specializations,omitempty"`
	Rating          float64   `json:"rating"`
	TotalDeals      int64     `json:"totalDeals"`
	TotalValuations int64     `json:"totalValuations"`
	TotalBookings   int64     `json:"totalBookings"`
	CompletedCount  int64     `json:"completedCount"`
	CreatedAt       string    `json:"createdAt"`
	UpdatedAt       string    `json:"updatedAt"`
}
