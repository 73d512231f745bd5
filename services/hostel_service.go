package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"uniLodgeAPI/internal/hostel"
	"uniLodgeAPI/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skip2/go-qrcode"
)

var (
	ErrHostelNotFound = errors.New("hostel not found")
	ErrCompareSize    = errors.New("comparison requires between 2 and 4 hostels")
)

const maxCompareHostels = 4

type HostelService struct {
	db *pgxpool.Pool
}

func NewHostelService(db *pgxpool.Pool) *HostelService {
	return &HostelService{db: db}
}

const hostelColumns = `
	h.id, h.school_id, h.name, h.description, h.address, h.latitude, h.longitude,
	h.price_per_year, h.room_type, h.gender_policy,
	COALESCE(h.amenities, '{}'), COALESCE(h.image_url, ''), h.is_active, h.created_at, h.updated_at`

// List applies the filter in SQL and, when caller coordinates are present,
// decorates and sorts the page nearest-first.
func (s *HostelService) List(ctx context.Context, filter *hostel.Filter) ([]*hostel.WithDistance, error) {
	query := `SELECT ` + hostelColumns + ` FROM hostels h WHERE h.is_active = TRUE`
	args := []any{}

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.SchoolID != "" {
		query += ` AND h.school_id = ` + arg(filter.SchoolID)
	}
	if filter.Query != "" {
		p := arg("%" + filter.Query + "%")
		query += ` AND (h.name ILIKE ` + p + ` OR h.address ILIKE ` + p + ` OR h.description ILIKE ` + p + `)`
	}
	if filter.MinPrice > 0 {
		query += ` AND h.price_per_year >= ` + arg(filter.MinPrice)
	}
	if filter.MaxPrice > 0 {
		query += ` AND h.price_per_year <= ` + arg(filter.MaxPrice)
	}
	if filter.RoomType != "" {
		query += ` AND h.room_type = ` + arg(filter.RoomType)
	}
	if filter.GenderPolicy != "" {
		query += ` AND h.gender_policy = ` + arg(filter.GenderPolicy)
	}
	if len(filter.Amenities) > 0 {
		query += ` AND h.amenities @> ` + arg(filter.Amenities)
	}

	query += ` ORDER BY h.created_at DESC`

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query += ` LIMIT ` + arg(limit) + ` OFFSET ` + arg(filter.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hostels: %w", err)
	}
	defer rows.Close()

	var hostels []*hostel.WithDistance
	for rows.Next() {
		h := &hostel.WithDistance{}
		if err := scanHostel(rows, &h.Hostel); err != nil {
			return nil, err
		}
		hostels = append(hostels, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hostels: %w", err)
	}

	if filter.Latitude != nil && filter.Longitude != nil {
		for _, h := range hostels {
			d := utils.HaversineKm(*filter.Latitude, *filter.Longitude, h.Latitude, h.Longitude)
			h.DistanceKm = &d
		}
		sort.SliceStable(hostels, func(i, j int) bool {
			return *hostels[i].DistanceKm < *hostels[j].DistanceKm
		})
	}

	return hostels, nil
}

func (s *HostelService) GetByID(ctx context.Context, id string) (*hostel.Hostel, error) {
	h := &hostel.Hostel{}
	row := s.db.QueryRow(ctx, `SELECT `+hostelColumns+` FROM hostels h WHERE h.id = $1`, id)
	if err := scanHostel(row, h); err != nil {
		return nil, err
	}
	return h, nil
}

// GetContact returns the manager details. The route serving this sits
// behind the subscription gate.
func (s *HostelService) GetContact(ctx context.Context, id string) (*hostel.Contact, error) {
	c := &hostel.Contact{HostelID: id}
	err := s.db.QueryRow(ctx, `
	SELECT COALESCE(manager_name, ''), COALESCE(manager_phone, ''), COALESCE(manager_email, '')
	FROM hostels WHERE id = $1`, id).
		Scan(&c.ManagerName, &c.ManagerPhone, &c.ManagerEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHostelNotFound
		}
		return nil, fmt.Errorf("failed to get hostel contact: %w", err)
	}
	return c, nil
}

// Compare fetches up to four hostels side by side, preserving request order.
func (s *HostelService) Compare(ctx context.Context, ids []string) ([]*hostel.Hostel, error) {
	if len(ids) < 2 || len(ids) > maxCompareHostels {
		return nil, ErrCompareSize
	}

	rows, err := s.db.Query(ctx, `SELECT `+hostelColumns+` FROM hostels h WHERE h.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query hostels for comparison: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*hostel.Hostel, len(ids))
	for rows.Next() {
		h := &hostel.Hostel{}
		if err := scanHostel(rows, h); err != nil {
			return nil, err
		}
		byID[h.ID] = h
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hostels: %w", err)
	}

	var ordered []*hostel.Hostel
	for _, id := range ids {
		if h, ok := byID[id]; ok {
			ordered = append(ordered, h)
		}
	}
	return ordered, nil
}

func (s *HostelService) AddFavorite(ctx context.Context, userID, hostelID string) error {
	_, err := s.db.Exec(ctx, `
	INSERT INTO favorites (user_id, hostel_id, created_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (user_id, hostel_id) DO NOTHING`, userID, hostelID)
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

func (s *HostelService) RemoveFavorite(ctx context.Context, userID, hostelID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND hostel_id = $2`, userID, hostelID)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

func (s *HostelService) GetFavorites(ctx context.Context, userID string) ([]*hostel.Hostel, error) {
	rows, err := s.db.Query(ctx, `
	SELECT `+hostelColumns+`
	FROM hostels h
	JOIN favorites f ON f.hostel_id = h.id
	WHERE f.user_id = $1
	ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	var hostels []*hostel.Hostel
	for rows.Next() {
		h := &hostel.Hostel{}
		if err := scanHostel(rows, h); err != nil {
			return nil, err
		}
		hostels = append(hostels, h)
	}
	return hostels, rows.Err()
}

// ShareQR builds a deep-link QR for a listing, PNG encoded as base64.
func (s *HostelService) ShareQR(ctx context.Context, id string) (*hostel.ShareResponse, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	base := os.Getenv("APP_PUBLIC_URL")
	if base == "" {
		base = "https://unilodge.app"
	}
	shareURL := fmt.Sprintf("%s/hostels/%s", strings.TrimRight(base, "/"), id)

	pngBytes, err := qrcode.Encode(shareURL, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR png: %w", err)
	}

	return &hostel.ShareResponse{
		HostelID:     id,
		ShareURL:     shareURL,
		QrCodeBase64: base64.StdEncoding.EncodeToString(pngBytes),
	}, nil
}

func (s *HostelService) Create(ctx context.Context, req *hostel.CreateHostelRequest) (*hostel.Hostel, error) {
	h := &hostel.Hostel{
		ID:           uuid.New().String(),
		SchoolID:     req.SchoolID,
		Name:         req.Name,
		Description:  req.Description,
		Address:      req.Address,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		PricePerYear: req.PricePerYear,
		RoomType:     req.RoomType,
		GenderPolicy: req.GenderPolicy,
		Amenities:    req.Amenities,
		ImageURL:     req.ImageURL,
		IsActive:     true,
	}

	err := s.db.QueryRow(ctx, `
	INSERT INTO hostels (id, school_id, name, description, address, latitude, longitude,
	                     price_per_year, room_type, gender_policy, amenities, image_url,
	                     manager_name, manager_phone, manager_email, is_active, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, TRUE, NOW(), NOW())
	RETURNING created_at, updated_at`,
		h.ID, h.SchoolID, h.Name, h.Description, h.Address, h.Latitude, h.Longitude,
		h.PricePerYear, h.RoomType, h.GenderPolicy, h.Amenities, h.ImageURL,
		req.ManagerName, req.ManagerPhone, req.ManagerEmail).
		Scan(&h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create hostel: %w", err)
	}
	return h, nil
}

func (s *HostelService) Update(ctx context.Context, id string, req *hostel.UpdateHostelRequest) (*hostel.Hostel, error) {
	query := `
	UPDATE hostels
	SET name = COALESCE($2, name),
	    description = COALESCE($3, description),
	    address = COALESCE($4, address),
	    price_per_year = COALESCE($5, price_per_year),
	    room_type = COALESCE($6, room_type),
	    gender_policy = COALESCE($7, gender_policy),
	    amenities = COALESCE($8, amenities),
	    image_url = COALESCE($9, image_url),
	    is_active = COALESCE($10, is_active),
	    updated_at = NOW()
	WHERE id = $1
	`
	tag, err := s.db.Exec(ctx, query, id, req.Name, req.Description, req.Address,
		req.PricePerYear, req.RoomType, req.GenderPolicy, req.Amenities, req.ImageURL, req.IsActive)
	if err != nil {
		return nil, fmt.Errorf("failed to update hostel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrHostelNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *HostelService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM hostels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete hostel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrHostelNotFound
	}
	return nil
}

func scanHostel(row pgx.Row, h *hostel.Hostel) error {
	err := row.Scan(
		&h.ID,
		&h.SchoolID,
		&h.Name,
		&h.Description,
		&h.Address,
		&h.Latitude,
		&h.Longitude,
		&h.PricePerYear,
		&h.RoomType,
		&h.GenderPolicy,
		&h.Amenities,
		&h.ImageURL,
		&h.IsActive,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrHostelNotFound
		}
		return fmt.Errorf("failed to scan hostel: %w", err)
	}
	return nil
}
