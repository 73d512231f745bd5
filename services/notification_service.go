package services

import (
	"context"
	"log"

	"uniLodgeAPI/internal/user"
)

// PushProvider abstracts the FCM client so the service can run without
// push credentials (local dev, tests).
type PushProvider interface {
	SendPush(ctx context.Context, tokens []user.DeviceToken, title, body string, data map[string]any) error
}

type NotificationService struct {
	userService  *UserService
	pushProvider PushProvider
}

func NewNotificationService(userService *UserService) *NotificationService {
	return &NotificationService{userService: userService}
}

func (s *NotificationService) SetPushProvider(p PushProvider) {
	s.pushProvider = p
}

// SendPaymentSuccess pushes a confirmation after a subscription activates.
// Best effort: reconciliation never fails because a push did.
func (s *NotificationService) SendPaymentSuccess(ctx context.Context, userID, planCode string) {
	if s.pushProvider == nil {
		return
	}

	tokens, err := s.userService.GetDeviceTokens(ctx, userID)
	if err != nil {
		log.Printf("Failed to load device tokens for user %s: %v", userID, err)
		return
	}

	err = s.pushProvider.SendPush(ctx, tokens,
		"Subscription active",
		"Your payment went through. Hostel contact details are now unlocked.",
		map[string]any{"type": "payment_success", "plan": planCode})
	if err != nil {
		log.Printf("Failed to send payment push to user %s: %v", userID, err)
	}
}

// SendSubscriptionExpiring warns users whose access window is closing.
// Called by the expiry sweeper.
func (s *NotificationService) SendSubscriptionExpiring(ctx context.Context, userID string, daysLeft int) {
	if s.pushProvider == nil {
		return
	}

	tokens, err := s.userService.GetDeviceTokens(ctx, userID)
	if err != nil {
		log.Printf("Failed to load device tokens for user %s: %v", userID, err)
		return
	}

	body := "Your subscription expires soon. Renew to keep access to hostel contacts."
	err = s.pushProvider.SendPush(ctx, tokens, "Subscription expiring", body,
		map[string]any{"type": "subscription_expiring", "daysLeft": daysLeft})
	if err != nil {
		log.Printf("Failed to send expiry push to user %s: %v", userID, err)
	}
}
