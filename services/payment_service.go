package services

import (
	"context"
	"errors"
	"fmt"

	"uniLodgeAPI/internal/payment"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrPaymentNotFound = errors.New("payment not found")

type PaymentService struct {
	db *pgxpool.Pool
}

func NewPaymentService(db *pgxpool.Pool) *PaymentService {
	return &PaymentService{db: db}
}

// Create inserts a pending payment row before the gateway redirect; the
// provider reference is attached once Paystack issues one.
func (s *PaymentService) Create(ctx context.Context, subscriptionID, userID string, amount int, promoCode *string) (*payment.Payment, error) {
	p := &payment.Payment{
		ID:             uuid.New().String(),
		SubscriptionID: subscriptionID,
		UserID:         userID,
		Amount:         amount,
		Status:         payment.StatusPending,
		PromoCode:      promoCode,
	}

	query := `
	INSERT INTO payments (id, subscription_id, user_id, amount, status, promo_code, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	RETURNING created_at, updated_at
	`
	err := s.db.QueryRow(ctx, query, p.ID, p.SubscriptionID, p.UserID, p.Amount, p.Status, p.PromoCode).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	return p, nil
}

// SetProviderRef stores the gateway's transaction reference on the row.
func (s *PaymentService) SetProviderRef(ctx context.Context, id, reference string) error {
	tag, err := s.db.Exec(ctx, `UPDATE payments SET provider_ref = $2, updated_at = NOW() WHERE id = $1`, id, reference)
	if err != nil {
		return fmt.Errorf("failed to set provider reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (s *PaymentService) GetByID(ctx context.Context, id string) (*payment.Payment, error) {
	return s.scanOne(s.db.QueryRow(ctx, `
	SELECT id, subscription_id, user_id, amount, status, provider_ref, promo_code, created_at, updated_at
	FROM payments WHERE id = $1`, id))
}

func (s *PaymentService) GetByProviderRef(ctx context.Context, reference string) (*payment.Payment, error) {
	return s.scanOne(s.db.QueryRow(ctx, `
	SELECT id, subscription_id, user_id, amount, status, provider_ref, promo_code, created_at, updated_at
	FROM payments WHERE provider_ref = $1`, reference))
}

// UpdateStatus marks a payment success or failed. The write is an
// unconditional set, mirroring the subscription activation: replays of the
// same signal converge rather than error.
func (s *PaymentService) UpdateStatus(ctx context.Context, id, status string) error {
	tag, err := s.db.Exec(ctx, `UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (s *PaymentService) ListBySubscription(ctx context.Context, subscriptionID string) ([]*payment.Payment, error) {
	rows, err := s.db.Query(ctx, `
	SELECT id, subscription_id, user_id, amount, status, provider_ref, promo_code, created_at, updated_at
	FROM payments WHERE subscription_id = $1 ORDER BY created_at DESC`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*payment.Payment
	for rows.Next() {
		p := &payment.Payment{}
		if err := rows.Scan(&p.ID, &p.SubscriptionID, &p.UserID, &p.Amount, &p.Status, &p.ProviderRef, &p.PromoCode, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (s *PaymentService) scanOne(row pgx.Row) (*payment.Payment, error) {
	p := &payment.Payment{}
	err := row.Scan(&p.ID, &p.SubscriptionID, &p.UserID, &p.Amount, &p.Status, &p.ProviderRef, &p.PromoCode, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return p, nil
}
