package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"uniLodgeAPI/internal/hostel"
	"uniLodgeAPI/middleware"
	"uniLodgeAPI/services"

	"github.com/gorilla/mux"
)

type HostelHandler struct {
	hostelService *services.HostelService
	userService   *services.UserService
}

func NewHostelHandler(hostelService *services.HostelService, userService *services.UserService) *HostelHandler {
	return &HostelHandler{
		hostelService: hostelService,
		userService:   userService,
	}
}

// ListHostels is the main discovery endpoint. All filters are optional query
// parameters; distance sorting kicks in when both lat and lng are present.
func (h *HostelHandler) ListHostels(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filter, err := filterFromQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	hostels, err := h.hostelService.List(ctx, filter)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list hostels")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"hostels": hostels,
		"count":   len(hostels),
	})
}

func (h *HostelHandler) GetHostel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := mux.Vars(r)["id"]

	found, err := h.hostelService.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrHostelNotFound) {
			respondWithError(w, http.StatusNotFound, "Hostel not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to get hostel")
		return
	}

	respondWithJSON(w, http.StatusOK, found)
}

// GetContact returns the manager's phone and contact details. The route sits
// behind the subscription gate; this handler never checks entitlement itself.
func (h *HostelHandler) GetContact(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := mux.Vars(r)["id"]

	contact, err := h.hostelService.GetContact(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrHostelNotFound) {
			respondWithError(w, http.StatusNotFound, "Hostel not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to get hostel contact")
		return
	}

	respondWithJSON(w, http.StatusOK, contact)
}

func (h *HostelHandler) CompareHostels(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req struct {
		HostelIDs []string `json:"hostel_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	hostels, err := h.hostelService.Compare(ctx, req.HostelIDs)
	if err != nil {
		if errors.Is(err, services.ErrCompareSize) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to compare hostels")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"hostels": hostels})
}

func (h *HostelHandler) ShareHostel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := mux.Vars(r)["id"]

	share, err := h.hostelService.ShareQR(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrHostelNotFound) {
			respondWithError(w, http.StatusNotFound, "Hostel not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to generate share code")
		return
	}

	respondWithJSON(w, http.StatusOK, share)
}

func (h *HostelHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
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

	hostelID := mux.Vars(r)["id"]
	if err := h.hostelService.AddFavorite(ctx, profile.ID, hostelID); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to add favorite")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{"message": "Hostel added to favorites"})
}

func (h *HostelHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
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

	hostelID := mux.Vars(r)["id"]
	if err := h.hostelService.RemoveFavorite(ctx, profile.ID, hostelID); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to remove favorite")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Hostel removed from favorites"})
}

func (h *HostelHandler) GetFavorites(w http.ResponseWriter, r *http.Request) {
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

	favorites, err := h.hostelService.GetFavorites(ctx, profile.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get favorites")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"hostels": favorites,
		"count":   len(favorites),
	})
}

func filterFromQuery(r *http.Request) (*hostel.Filter, error) {
	q := r.URL.Query()
	filter := &hostel.Filter{
		SchoolID:     q.Get("school_id"),
		Query:        q.Get("q"),
		RoomType:     q.Get("room_type"),
		GenderPolicy: q.Get("gender"),
	}

	if amenities := q.Get("amenities"); amenities != "" {
		for _, a := range strings.Split(amenities, ",") {
			if a = strings.TrimSpace(a); a != "" {
				filter.Amenities = append(filter.Amenities, a)
			}
		}
	}

	var err error
	if filter.MinPrice, err = intQuery(q.Get("min_price")); err != nil {
		return nil, errors.New("invalid min_price")
	}
	if filter.MaxPrice, err = intQuery(q.Get("max_price")); err != nil {
		return nil, errors.New("invalid max_price")
	}
	if filter.Limit, err = intQuery(q.Get("limit")); err != nil {
		return nil, errors.New("invalid limit")
	}
	if filter.Offset, err = intQuery(q.Get("offset")); err != nil {
		return nil, errors.New("invalid offset")
	}

	lat, lng := q.Get("lat"), q.Get("lng")
	if (lat == "") != (lng == "") {
		return nil, errors.New("lat and lng must be provided together")
	}
	if lat != "" {
		latF, err := strconv.ParseFloat(lat, 64)
		if err != nil {
			return nil, errors.New("invalid lat")
		}
		lngF, err := strconv.ParseFloat(lng, 64)
		if err != nil {
			return nil, errors.New("invalid lng")
		}
		filter.Latitude = &latF
		filter.Longitude = &lngF
	}

	return filter, nil
}

func intQuery(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
