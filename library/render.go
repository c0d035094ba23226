package library

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// FormatBook formats a book for lists.
func FormatBook(b *Book) string {
	return fmt.Sprintf("[%d] %s by %s | Available: %d/%d", b.ID, b.Title, b.Author, b.AvailableCopies, b.TotalCopies)
}

// FormatMember formats a member for lists.
func FormatMember(m *Member) string {
	return fmt.Sprintf("[%d] %s", m.ID, m.Name)
}

// FormatLoan formats an issued book for lists.
func FormatLoan(v LoanView) string {
	return fmt.Sprintf("Member: %s (ID: %d) => Book: %s (ID: %d)", v.Member.Name, v.Member.ID, v.Book.Title, v.Book.ID)
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// WriteJSON writes v to w as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := jsonAPI.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
