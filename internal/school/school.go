package school

import "time"

type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateSchoolRequest struct {
	Name      string  `json:"name" validate:"required"`
	City      string  `json:"city" validate:"required"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type UpdateSchoolRequest struct {
	Name     *string `json:"name,omitempty"`
	City     *string `json:"city,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}
