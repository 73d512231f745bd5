package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"uniLodgeAPI/internal/subscription"
	"uniLodgeAPI/middleware"
	"uniLodgeAPI/services"

	"github.com/gorilla/mux"
)

type SubscriptionHandler struct {
	subscriptionService *services.SubscriptionService
	userService         *services.UserService
	gate                *middleware.AccessGate
}

func NewSubscriptionHandler(subscriptionService *services.SubscriptionService, userService *services.UserService, gate *middleware.AccessGate) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
		userService:         userService,
		gate:                gate,
	}
}

// GetPlans is public so the paywall page can render prices before login.
func (h *SubscriptionHandler) GetPlans(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"plans": subscription.Plans})
}

// CreateSubscription opens a pending subscription for the chosen plan. The
// client follows up with a payment initialization against it.
func (h *SubscriptionHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req subscription.CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if subscription.PlanByCode(req.PlanCode) == nil {
		respondWithError(w, http.StatusBadRequest, "Unknown plan code")
		return
	}

	profile, err := h.userService.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	// One entitling subscription at a time. A lapsed active row (expiry in
	// the past) does not block a repurchase.
	if existing, err := h.subscriptionService.LatestActiveForUser(ctx, profile.ID); err == nil && existing.Entitles(time.Now()) {
		respondWithError(w, http.StatusConflict, "An active subscription already exists")
		return
	}

	sub, err := h.subscriptionService.Create(ctx, profile.ID, req.PlanCode)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to create subscription")
		return
	}

	respondWithJSON(w, http.StatusCreated, sub)
}

// GetMySubscription returns the caller's newest active subscription along
// with whether it currently entitles access.
func (h *SubscriptionHandler) GetMySubscription(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	sub, err := h.subscriptionService.LatestActiveForClerkID(ctx, clerkID)
	if err != nil {
		if errors.Is(err, services.ErrSubscriptionNotFound) {
			respondWithJSON(w, http.StatusOK, map[string]interface{}{
				"subscription": nil,
				"entitled":     false,
			})
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to get subscription")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"subscription": sub,
		"entitled":     sub.Entitles(time.Now()),
	})
}

// Dashboard backs the page the payment callback lands on. It sits behind the
// auth gate, so a browser arriving without a session is bounced to login and
// returned here afterwards.
func (h *SubscriptionHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	profile, err := h.userService.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	var current *subscription.Subscription
	if sub, err := h.subscriptionService.LatestActiveForClerkID(ctx, clerkID); err == nil {
		current = sub
	} else if !errors.Is(err, services.ErrSubscriptionNotFound) {
		respondWithError(w, http.StatusInternalServerError, "Failed to load subscription")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user":         profile,
		"subscription": current,
		"entitled":     current.Entitles(time.Now()),
		"payment":      r.URL.Query().Get("payment"),
	})
}

func (h *SubscriptionHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	profile, err := h.userService.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	id := mux.Vars(r)["id"]
	sub, err := h.subscriptionService.Cancel(ctx, id, profile.ID)
	if err != nil {
		if errors.Is(err, services.ErrSubscriptionNotFound) {
			respondWithError(w, http.StatusNotFound, "Subscription not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to cancel subscription")
		return
	}

	// The gate must stop honoring the cached active snapshot immediately.
	h.gate.InvalidateSubscription(clerkID)

	respondWithJSON(w, http.StatusOK, sub)
}
