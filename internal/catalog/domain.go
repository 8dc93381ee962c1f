// internal/catalog/domain.go
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Book represents a catalog record. Identity and descriptive metadata are
// owned by the catalog owner; Quantity is mutated only by the borrowing
// engine (one copy per borrow/return) or by owner edits.
type Book struct {
	ID          uuid.UUID `json:"id" db:"id"`
	OwnerEmail  string    `json:"owner_email" db:"owner_email"`
	Title       string    `json:"title" db:"title"`
	Author      string    `json:"author" db:"author"`
	Category    string    `json:"category" db:"category"`
	Image       string    `json:"image,omitempty" db:"image"`
	Description string    `json:"description,omitempty" db:"description"`
	Rating      int       `json:"rating" db:"rating"`
	Quantity    int       `json:"quantity" db:"quantity"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
