// internal/lending/domain.go
package lending

import (
	"bookwise/internal/catalog"
	"bookwise/internal/loans"
)

// BorrowedBook is a loan joined with the catalog record it references.
type BorrowedBook struct {
	Loan *loans.Loan   `json:"loan"`
	Book *catalog.Book `json:"book"`
}

// BookFields carries the owner-editable fields of a book.
type BookFields struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Category    string `json:"category"`
	Image       string `json:"image"`
	Description string `json:"description"`
	Rating      int    `json:"rating"`
	Quantity    int    `json:"quantity"`
}
