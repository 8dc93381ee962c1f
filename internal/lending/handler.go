// internal/lending/handler.go
package lending

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bookwise/internal/auth"
)

// dateLayout is the wire format for the expected return date.
const dateLayout = "2006-01-02"

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// HandleBorrow lends the book in the URL to the authenticated caller.
func (h *Handler) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.Identity(r.Context())
	if !ok {
		http.Error(w, "unauthorized access", http.StatusUnauthorized)
		return
	}
	bookID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid book ID", http.StatusBadRequest)
		return
	}

	var req struct {
		ReturnDate string `json:"return_date"`
		Name       string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	returnDate, err := time.Parse(dateLayout, req.ReturnDate)
	if err != nil {
		http.Error(w, "invalid return date", http.StatusBadRequest)
		return
	}

	loan, err := h.service.Borrow(r.Context(), bookID, caller, returnDate, req.Name)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(loan)
}

// HandleReturn gives the caller's copy of the book back.
func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.Identity(r.Context())
	if !ok {
		http.Error(w, "unauthorized access", http.StatusUnauthorized)
		return
	}
	bookID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid book ID", http.StatusBadRequest)
		return
	}

	if err := h.service.Return(r.Context(), bookID, caller); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// HandleListBorrowed lists the caller's loans joined with book details.
func (h *Handler) HandleListBorrowed(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.Identity(r.Context())
	if !ok {
		http.Error(w, "unauthorized access", http.StatusUnauthorized)
		return
	}

	borrowed, err := h.service.ListBorrowed(r.Context(), caller)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	json.NewEncoder(w).Encode(borrowed)
}

// HandleEditBook replaces the book's editable fields, owner-gated.
func (h *Handler) HandleEditBook(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.Identity(r.Context())
	if !ok {
		http.Error(w, "unauthorized access", http.StatusUnauthorized)
		return
	}
	bookID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid book ID", http.StatusBadRequest)
		return
	}

	var fields BookFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	book, err := h.service.EditBook(r.Context(), bookID, caller, fields)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	json.NewEncoder(w).Encode(book)
}

// HandleDeleteBook deletes the book, owner-gated. The owner email in the
// URL must match the authenticated caller, mirroring the edit check.
func (h *Handler) HandleDeleteBook(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.Identity(r.Context())
	if !ok {
		http.Error(w, "unauthorized access", http.StatusUnauthorized)
		return
	}
	if chi.URLParam(r, "email") != caller {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	bookID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid book ID", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteBook(r.Context(), bookID, caller); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrAlreadyBorrowed):
		return http.StatusBadRequest
	case errors.Is(err, ErrBorrowLimitExceeded), errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrOutOfStock), errors.Is(err, ErrBookLoanedOut):
		return http.StatusConflict
	case errors.Is(err, ErrBookNotFound), errors.Is(err, ErrLoanNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
