package services

import (
	"context"
	"errors"
	"fmt"

	"uniLodgeAPI/internal/school"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSchoolNotFound = errors.New("school not found")

type SchoolService struct {
	db *pgxpool.Pool
}

func NewSchoolService(db *pgxpool.Pool) *SchoolService {
	return &SchoolService{db: db}
}

func (s *SchoolService) List(ctx context.Context) ([]*school.School, error) {
	rows, err := s.db.Query(ctx, `
	SELECT id, name, city, latitude, longitude, is_active, created_at, updated_at
	FROM schools WHERE is_active = TRUE ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query schools: %w", err)
	}
	defer rows.Close()

	var schools []*school.School
	for rows.Next() {
		sc := &school.School{}
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.City, &sc.Latitude, &sc.Longitude, &sc.IsActive, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan school: %w", err)
		}
		schools = append(schools, sc)
	}
	return schools, rows.Err()
}

func (s *SchoolService) GetByID(ctx context.Context, id string) (*school.School, error) {
	sc := &school.School{}
	err := s.db.QueryRow(ctx, `
	SELECT id, name, city, latitude, longitude, is_active, created_at, updated_at
	FROM schools WHERE id = $1`, id).
		Scan(&sc.ID, &sc.Name, &sc.City, &sc.Latitude, &sc.Longitude, &sc.IsActive, &sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSchoolNotFound
		}
		return nil, fmt.Errorf("failed to get school: %w", err)
	}
	return sc, nil
}

func (s *SchoolService) Create(ctx context.Context, req *school.CreateSchoolRequest) (*school.School, error) {
	sc := &school.School{
		ID:        uuid.New().String(),
		Name:      req.Name,
		City:      req.City,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		IsActive:  true,
	}

	err := s.db.QueryRow(ctx, `
	INSERT INTO schools (id, name, city, latitude, longitude, is_active, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
	RETURNING created_at, updated_at`,
		sc.ID, sc.Name, sc.City, sc.Latitude, sc.Longitude).
		Scan(&sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create school: %w", err)
	}
	return sc, nil
}

func (s *SchoolService) Update(ctx context.Context, id string, req *school.UpdateSchoolRequest) (*school.School, error) {
	tag, err := s.db.Exec(ctx, `
	UPDATE schools
	SET name = COALESCE($2, name),
	    city = COALESCE($3, city),
	    is_active = COALESCE($4, is_active),
	    updated_at = NOW()
	WHERE id = $1`, id, req.Name, req.City, req.IsActive)
	if err != nil {
		return nil, fmt.Errorf("failed to update school: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrSchoolNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *SchoolService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM schools WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete school: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSchoolNotFound
	}
	return nil
}
