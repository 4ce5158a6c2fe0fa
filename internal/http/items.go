package httpserver

import (
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/media-catalog/internal/auth"
	"github.com/Clark-Hu/media-catalog/internal/catalog"
	"github.com/Clark-Hu/media-catalog/internal/domain"
)

type itemCreateRequest struct {
	Title       string `json:"title" validate:"max=200"`
	Description string `json:"description" validate:"max=5000"`
	Publisher   string `json:"publisher" validate:"max=500"`
	Producer    string `json:"producer" validate:"max=500"`
	Genre       string `json:"genre" validate:"max=500"`
	AgeRating   string `json:"ageRating" validate:"max=500"`
	ContentType string `json:"contentType" validate:"omitempty,max=200"`
}

type itemUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Publisher   *string `json:"publisher" validate:"omitempty,max=500"`
	Producer    *string `json:"producer" validate:"omitempty,max=500"`
	Genre       *string `json:"genre" validate:"omitempty,max=500"`
	AgeRating   *string `json:"ageRating" validate:"omitempty,max=500"`
}

type commentRequest struct {
	Text string `json:"text" validate:"required"`
}

type rateRequest struct {
	Score *float64 `json:"score" validate:"required"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	payload, hit, err := s.catalog.ListItems(r.Context(), catalog.ListParams{
		Search: strings.TrimSpace(query.Get("search")),
		Genre:  strings.TrimSpace(query.Get("genre")),
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondCached(w, payload, hit)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	payload, hit, err := s.catalog.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondCached(w, payload, hit)
}

func (s *Server) handleListOwned(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	items, err := s.catalog.ListOwned(r.Context(), actor)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemCreateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	actor, _ := auth.ActorFrom(r.Context())
	result, err := s.catalog.CreateItem(r.Context(), actor, catalog.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Publisher:   req.Publisher,
		Producer:    req.Producer,
		Genre:       req.Genre,
		AgeRating:   req.AgeRating,
		ContentType: req.ContentType,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/videos/"+result.ID)
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleFinalizeItem(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	if _, err := s.catalog.FinalizeItem(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req itemUpdateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	actor, _ := auth.ActorFrom(r.Context())
	view, err := s.catalog.UpdateItem(r.Context(), actor, chi.URLParam(r, "id"), catalog.UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		Publisher:   req.Publisher,
		Producer:    req.Producer,
		Genre:       req.Genre,
		AgeRating:   req.AgeRating,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	if err := s.catalog.DeleteItem(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	actor, _ := auth.ActorFrom(r.Context())
	comment, err := s.catalog.AddComment(r.Context(), actor, chi.URLParam(r, "id"), req.Text)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, comment)
}

func (s *Server) handleRateItem(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	score, err := scoreFromBody(*req.Score)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	actor, _ := auth.ActorFrom(r.Context())
	result, err := s.catalog.RateItem(r.Context(), actor, chi.URLParam(r, "id"), score)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// scoreFromBody rounds a JSON score to the nearest star and pins it to
// [MinScore, MaxScore] before the int conversion.
func scoreFromBody(raw float64) (int, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, domain.Invalid("score", "must be a number")
	}
	raw = math.Max(domain.MinScore, math.Min(domain.MaxScore, math.Round(raw)))
	return int(raw), nil
}
