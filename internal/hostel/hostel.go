package hostel

import "time"

type Hostel struct {
	ID           string    `json:"id"`
	SchoolID     string    `json:"schoolId"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Address      string    `json:"address"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	PricePerYear int       `json:"pricePerYear"` // pesewas
	RoomType     string    `json:"roomType"`     // single, shared, self-contained
	GenderPolicy string    `json:"genderPolicy"` // male, female, mixed
	Amenities    []string  `json:"amenities"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Contact carries the manager details that sit behind the subscription gate.
type Contact struct {
	HostelID     string `json:"hostelId"`
	ManagerName  string `json:"managerName"`
	ManagerPhone string `json:"managerPhone"`
	ManagerEmail string `json:"managerEmail"`
}

// WithDistance decorates a listing with the distance in kilometers from the
// caller's supplied coordinates.
type WithDistance struct {
	Hostel
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

type Filter struct {
	SchoolID     string
	Query        string
	MinPrice     int
	MaxPrice     int
	RoomType     string
	GenderPolicy string
	Amenities    []string
	Latitude     *float64
	Longitude    *float64
	Limit        int
	Offset       int
}

type CreateHostelRequest struct {
	SchoolID     string   `json:"schoolId" validate:"required"`
	Name         string   `json:"name" validate:"required"`
	Description  string   `json:"description"`
	Address      string   `json:"address"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	PricePerYear int      `json:"pricePerYear" validate:"required"`
	RoomType     string   `json:"roomType"`
	GenderPolicy string   `json:"genderPolicy"`
	Amenities    []string `json:"amenities"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	ManagerName  string   `json:"managerName"`
	ManagerPhone string   `json:"managerPhone"`
	ManagerEmail string   `json:"managerEmail"`
}

type UpdateHostelRequest struct {
	Name         *string  `json:"name,omitempty"`
	Description  *string  `json:"description,omitempty"`
	Address      *string  `json:"address,omitempty"`
	PricePerYear *int     `json:"pricePerYear,omitempty"`
	RoomType     *string  `json:"roomType,omitempty"`
	GenderPolicy *string  `json:"genderPolicy,omitempty"`
	Amenities    []string `json:"amenities,omitempty"`
	ImageURL     *string  `json:"imageUrl,omitempty"`
	IsActive     *bool    `json:"isActive,omitempty"`
}

type ShareResponse struct {
	HostelID     string `json:"hostelId"`
	ShareURL     string `json:"shareUrl"`
	QrCodeBase64 string `json:"qrCode"`
}
