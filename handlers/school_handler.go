package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"uniLodgeAPI/services"

	"github.com/gorilla/mux"
)

type SchoolHandler struct {
	schoolService *services.SchoolService
}

func NewSchoolHandler(schoolService *services.SchoolService) *SchoolHandler {
	return &SchoolHandler{
		schoolService: schoolService,
	}
}

// ListSchools is public: the app needs the campus picker before login.
func (h *SchoolHandler) ListSchools(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	schools, err := h.schoolService.List(ctx)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list schools")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"schools": schools,
		"count":   len(schools),
	})
}

func (h *SchoolHandler) GetSchool(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := mux.Vars(r)["id"]

	found, err := h.schoolService.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrSchoolNotFound) {
			respondWithError(w, http.StatusNotFound, "School not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to get school")
		return
	}

	respondWithJSON(w, http.StatusOK, found)
}
