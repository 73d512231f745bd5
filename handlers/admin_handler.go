package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"uniLodgeAPI/internal/hostel"
	"uniLodgeAPI/internal/promo"
	"uniLodgeAPI/internal/school"
	"uniLodgeAPI/internal/subscription"
	"uniLodgeAPI/services"

	"github.com/gorilla/mux"
)

// AdminHandler serves the back-office: hostel and school CRUD, promo code
// management, and manual subscription corrections. Every route it handles
// sits behind the admin gate.
type AdminHandler struct {
	hostelService       *services.HostelService
	schoolService       *services.SchoolService
	promoService        *services.PromoService
	subscriptionService *services.SubscriptionService
	paymentService      *services.PaymentService
}

func NewAdminHandler(hostelService *services.HostelService, schoolService *services.SchoolService,
	promoService *services.PromoService, subscriptionService *services.SubscriptionService,
	paymentService *services.PaymentService) *AdminHandler {

	return &AdminHandler{
		hostelService:       hostelService,
		schoolService:       schoolService,
		promoService:        promoService,
		subscriptionService: subscriptionService,
		paymentService:      paymentService,
	}
}

func (h *AdminHandler) CreateHostel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req hostel.CreateHostelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.SchoolID == "" {
		respondWithError(w, http.StatusBadRequest, "name and school_id are required")
		return
	}

	created, err := h.hostelService.Create(ctx, &req)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to create hostel")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) UpdateHostel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req hostel.UpdateHostelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.hostelService.Update(ctx, mux.Vars(r)["id"], &req)
	if err != nil {
		if errors.Is(err, services.ErrHostelNotFound) {
			respondWithError(w, http.StatusNotFound, "Hostel not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to update hostel")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) DeleteHostel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.hostelService.Delete(ctx, mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, services.ErrHostelNotFound) {
			respondWithError(w, http.StatusNotFound, "Hostel not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to delete hostel")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Hostel deleted successfully"})
}

func (h *AdminHandler) CreateSchool(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req school.CreateSchoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "name is required")
		return
	}

	created, err := h.schoolService.Create(ctx, &req)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to create school")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) UpdateSchool(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req school.UpdateSchoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.schoolService.Update(ctx, mux.Vars(r)["id"], &req)
	if err != nil {
		if errors.Is(err, services.ErrSchoolNotFound) {
			respondWithError(w, http.StatusNotFound, "School not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to update school")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) DeleteSchool(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.schoolService.Delete(ctx, mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, services.ErrSchoolNotFound) {
			respondWithError(w, http.StatusNotFound, "School not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to delete school")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "School deleted successfully"})
}

func (h *AdminHandler) CreatePromoCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req promo.CreatePromoCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.promoService.Create(ctx, &req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) ListPromoCodes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	codes, err := h.promoService.List(ctx)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list promo codes")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"promo_codes": codes,
		"count":       len(codes),
	})
}

func (h *AdminHandler) SetPromoCodeActive(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req struct {
		IsActive bool `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.promoService.SetActive(ctx, mux.Vars(r)["id"], req.IsActive); err != nil {
		if errors.Is(err, promo.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Promo code not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to update promo code")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Promo code updated successfully"})
}

func (h *AdminHandler) DeletePromoCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.promoService.Delete(ctx, mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, promo.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Promo code not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to delete promo code")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Promo code deleted successfully"})
}

func (h *AdminHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit, err := intQuery(r.URL.Query().Get("limit"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := intQuery(r.URL.Query().Get("offset"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	subs, err := h.subscriptionService.List(ctx, limit, offset)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list subscriptions")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"subscriptions": subs,
		"count":         len(subs),
	})
}

// ListSubscriptionPayments shows the payment trail for one subscription,
// which is usually the first thing support looks at before a manual status
// correction.
func (h *AdminHandler) ListSubscriptionPayments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	subscriptionID := mux.Vars(r)["id"]
	if _, err := h.subscriptionService.GetByID(ctx, subscriptionID); err != nil {
		if errors.Is(err, services.ErrSubscriptionNotFound) {
			respondWithError(w, http.StatusNotFound, "Subscription not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to load subscription")
		return
	}

	payments, err := h.paymentService.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list payments")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"payments": payments,
		"count":    len(payments),
	})
}

// UpdateSubscriptionStatus is the manual correction path. An admin can flip
// any row to any status and set or clear its expiry; a later activation will
// then run through the same unconditional write as everyone else.
func (h *AdminHandler) UpdateSubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req subscription.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch req.Status {
	case subscription.StatusPending, subscription.StatusActive, subscription.StatusExpired, subscription.StatusCancelled:
	default:
		respondWithError(w, http.StatusBadRequest, "Unknown status")
		return
	}

	updated, err := h.subscriptionService.UpdateStatus(ctx, mux.Vars(r)["id"], req.Status, req.ExpiresAt)
	if err != nil {
		if errors.Is(err, services.ErrSubscriptionNotFound) {
			respondWithError(w, http.StatusNotFound, "Subscription not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to update subscription")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}
