// internal/catalog/handler.go
package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bookwise/internal/auth"
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// HandleAddBook creates a catalog record. The acting identity must match the
// owner declared in the payload.
func (h *Handler) HandleAddBook(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.Identity(r.Context())
	if !ok {
		http.Error(w, "unauthorized access", http.StatusUnauthorized)
		return
	}

	var req struct {
		OwnerEmail  string `json:"owner_email"`
		Title       string `json:"title"`
		Author      string `json:"author"`
		Category    string `json:"category"`
		Image       string `json:"image"`
		Description string `json:"description"`
		Rating      int    `json:"rating"`
		Quantity    int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.OwnerEmail != caller {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if req.Quantity < 0 {
		http.Error(w, "quantity must not be negative", http.StatusBadRequest)
		return
	}

	book := &Book{
		ID:          uuid.New(),
		OwnerEmail:  req.OwnerEmail,
		Title:       req.Title,
		Author:      req.Author,
		Category:    req.Category,
		Image:       req.Image,
		Description: req.Description,
		Rating:      req.Rating,
		Quantity:    req.Quantity,
	}
	if err := h.store.Insert(r.Context(), book); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(book)
}

func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid book ID", http.StatusBadRequest)
		return
	}

	book, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(book)
}
