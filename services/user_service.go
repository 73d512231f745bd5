package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"uniLodgeAPI/internal/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

type UserService struct {
	db *pgxpool.Pool
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	u := &user.User{
		ID:        uuid.New().String(),
		ClerkID:   req.ClerkID,
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		ImageURL:  req.ImageURL,
		Role:      user.RoleUser,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	query := `
	INSERT INTO users (id, clerk_id, email, username, first_name, last_name, image_url, role, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING id, clerk_id, email, username, first_name, last_name, image_url, role, email_verified, created_at, updated_at
	`

	err := s.db.QueryRow(
		ctx,
		query,
		u.ID,
		u.ClerkID,
		u.Email,
		u.Username,
		u.FirstName,
		u.LastName,
		u.ImageURL,
		u.Role,
		u.CreatedAt,
		u.UpdatedAt,
	).Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.ImageURL,
		&u.Role,
		&u.EmailVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	query := `
	SELECT id, clerk_id, email, username, first_name, last_name,
	       COALESCE(image_url, ''), COALESCE(phone, ''), role, email_verified, school_id, created_at, updated_at
	FROM users
	WHERE clerk_id = $1
	`

	u := &user.User{}
	err := s.db.QueryRow(ctx, query, clerkID).Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.ImageURL,
		&u.Phone,
		&u.Role,
		&u.EmailVerified,
		&u.SchoolID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

// IsAdmin resolves the caller's role from the profile row. The access gate
// falls back to the session metadata claim when this lookup fails.
func (s *UserService) IsAdmin(ctx context.Context, clerkID string) (bool, error) {
	var role string
	err := s.db.QueryRow(ctx, `SELECT role FROM users WHERE clerk_id = $1`, clerkID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("failed to resolve role: %w", err)
	}
	return role == user.RoleAdmin, nil
}

func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	query := `
	UPDATE users
	SET username = COALESCE(NULLIF($2, ''), username),
	    first_name = COALESCE(NULLIF($3, ''), first_name),
	    last_name = COALESCE(NULLIF($4, ''), last_name),
	    phone = COALESCE(NULLIF($5, ''), phone),
	    image_url = COALESCE(NULLIF($6, ''), image_url),
	    school_id = COALESCE($7, school_id),
	    updated_at = NOW()
	WHERE clerk_id = $1
	`

	tag, err := s.db.Exec(ctx, query, clerkID, req.Username, req.FirstName, req.LastName, req.Phone, req.ImageURL, req.SchoolID)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}

	return s.GetUserByClerkID(ctx, clerkID)
}

func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *UserService) UpdateEmailVerification(ctx context.Context, clerkID string, verified bool) error {
	_, err := s.db.Exec(ctx, `UPDATE users SET email_verified = $2, updated_at = NOW() WHERE clerk_id = $1`, clerkID, verified)
	if err != nil {
		return fmt.Errorf("failed to update email verification: %w", err)
	}
	return nil
}

// RegisterDevice upserts a push token for the user. Tokens are keyed on the
// token string so re-registration from the same device just refreshes it.
func (s *UserService) RegisterDevice(ctx context.Context, clerkID string, req *user.RegisterDeviceRequest) error {
	u, err := s.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO device_tokens (user_id, token, platform, added_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (token) DO UPDATE SET user_id = $1, platform = $3, added_at = NOW()
	`
	if _, err := s.db.Exec(ctx, query, u.ID, req.Token, req.Platform); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

func (s *UserService) GetDeviceTokens(ctx context.Context, userID string) ([]user.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id, token, COALESCE(platform, ''), added_at FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []user.DeviceToken
	for rows.Next() {
		var t user.DeviceToken
		if err := rows.Scan(&t.UserID, &t.Token, &t.Platform, &t.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
