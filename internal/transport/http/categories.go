package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tawhid126/hotelhub/internal/app"
	"github.com/tawhid126/hotelhub/internal/domain"
)

// AdminCategoryService is the minimal interface needed for category
// configuration endpoints.
type AdminCategoryService interface {
	CreateCategory(ctx context.Context, in app.CreateCategoryInput) (domain.RoomCategory, error)
	ListCategories(ctx context.Context, hotelID string) ([]domain.RoomCategory, error)
}

// HandleAdminCategories returns an HTTP handler for creating and listing
// room categories.
func HandleAdminCategories(svc AdminCategoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cats, err := svc.ListCategories(r.Context(), r.URL.Query().Get("hotel_id"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			resp := make([]categoryResponse, 0, len(cats))
			for _, cat := range cats {
				resp = append(resp, categoryResponseFrom(cat))
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)

		case http.MethodPost:
			var req createCategoryRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}

			cat, err := svc.CreateCategory(r.Context(), app.CreateCategoryInput{
				HotelID:    req.HotelID,
				Name:       req.Name,
				TotalRooms: req.TotalRooms,
			})
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrHotelIDRequired):
					writeError(w, http.StatusBadRequest, codeHotelIDRequired, err.Error())
				case errors.Is(err, domain.ErrCategoryNameRequired):
					writeError(w, http.StatusBadRequest, codeCategoryNameRequired, err.Error())
				case errors.Is(err, domain.ErrInvalidCapacity):
					writeError(w, http.StatusBadRequest, codeInvalidCapacity, err.Error())
				case errors.Is(err, domain.ErrCategoryExists):
					writeError(w, http.StatusConflict, codeCategoryExists, err.Error())
				default:
					writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				}
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(categoryResponseFrom(cat))

		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

type createCategoryRequest struct {
	HotelID    string `json:"hotel_id"`
	Name       string `json:"name"`
	TotalRooms int    `json:"total_rooms"`
}

type categoryResponse struct {
	ID         string `json:"id"`
	HotelID    string `json:"hotel_id"`
	Name       string `json:"name"`
	TotalRooms int    `json:"total_rooms"`
	Retired    bool   `json:"retired"`
}

func categoryResponseFrom(cat domain.RoomCategory) categoryResponse {
	return categoryResponse{
		ID:         cat.ID,
		HotelID:    cat.HotelID,
		Name:       cat.Name,
		TotalRooms: cat.TotalRooms,
		Retired:    cat.Retired,
	}
}
