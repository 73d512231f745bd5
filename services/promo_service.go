package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"uniLodgeAPI/internal/promo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PromoService struct {
	db *pgxpool.Pool
}

func NewPromoService(db *pgxpool.Pool) *PromoService {
	return &PromoService{db: db}
}

func (s *PromoService) GetByCode(ctx context.Context, code string) (*promo.PromoCode, error) {
	p := &promo.PromoCode{}
	err := s.db.QueryRow(ctx, `
	SELECT id, code, discount_type, discount_value, max_uses, used_count, valid_from, valid_until, is_active, created_at
	FROM promo_codes WHERE UPPER(code) = UPPER($1)`, code).
		Scan(&p.ID, &p.Code, &p.DiscountType, &p.DiscountValue, &p.MaxUses, &p.UsedCount, &p.ValidFrom, &p.ValidUntil, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}
	return p, nil
}

// ApplyToAmount validates the code and returns the discounted amount in
// pesewas alongside the code itself so usage can be recorded later.
func (s *PromoService) ApplyToAmount(ctx context.Context, code string, amount int) (int, *promo.PromoCode, error) {
	p, err := s.GetByCode(ctx, code)
	if err != nil {
		return 0, nil, err
	}
	if err := p.Validate(time.Now()); err != nil {
		return 0, nil, err
	}
	return p.Apply(amount), p, nil
}

// RecordUsage ties a redemption to the payment it discounted and bumps the
// use counter in one transaction.
func (s *PromoService) RecordUsage(ctx context.Context, promoID, paymentID, subscriptionID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
	INSERT INTO promo_code_usages (id, promo_code_id, payment_id, subscription_id, created_at)
	VALUES ($1, $2, $3, $4, NOW())`, uuid.New().String(), promoID, paymentID, subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to record promo usage: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE promo_codes SET used_count = used_count + 1 WHERE id = $1`, promoID)
	if err != nil {
		return fmt.Errorf("failed to increment promo usage: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PromoService) Create(ctx context.Context, req *promo.CreatePromoCodeRequest) (*promo.PromoCode, error) {
	if req.DiscountType != promo.DiscountPercentage && req.DiscountType != promo.DiscountFixed {
		return nil, fmt.Errorf("invalid discount type %q", req.DiscountType)
	}

	p := &promo.PromoCode{
		ID:            uuid.New().String(),
		Code:          strings.ToUpper(req.Code),
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		MaxUses:       req.MaxUses,
		ValidFrom:     req.ValidFrom,
		ValidUntil:    req.ValidUntil,
		IsActive:      true,
	}

	err := s.db.QueryRow(ctx, `
	INSERT INTO promo_codes (id, code, discount_type, discount_value, max_uses, used_count, valid_from, valid_until, is_active, created_at)
	VALUES ($1, $2, $3, $4, $5, 0, $6, $7, TRUE, NOW())
	RETURNING created_at`,
		p.ID, p.Code, p.DiscountType, p.DiscountValue, p.MaxUses, p.ValidFrom, p.ValidUntil).
		Scan(&p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create promo code: %w", err)
	}
	return p, nil
}

func (s *PromoService) List(ctx context.Context) ([]*promo.PromoCode, error) {
	rows, err := s.db.Query(ctx, `
	SELECT id, code, discount_type, discount_value, max_uses, used_count, valid_from, valid_until, is_active, created_at
	FROM promo_codes ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list promo codes: %w", err)
	}
	defer rows.Close()

	var codes []*promo.PromoCode
	for rows.Next() {
		p := &promo.PromoCode{}
		if err := rows.Scan(&p.ID, &p.Code, &p.DiscountType, &p.DiscountValue, &p.MaxUses, &p.UsedCount, &p.ValidFrom, &p.ValidUntil, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan promo code: %w", err)
		}
		codes = append(codes, p)
	}
	return codes, rows.Err()
}

func (s *PromoService) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE promo_codes SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update promo code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return promo.ErrNotFound
	}
	return nil
}

func (s *PromoService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM promo_codes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete promo code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return promo.ErrNotFound
	}
	return nil
}
