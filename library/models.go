package library

// Book represents a catalog entry and its current availability.
// AvailableCopies is always derived from the active loans held by the store.
type Book struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
}

// Member represents a registered library member.
type Member struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Loan is one active borrowing. It has no identity beyond the pair.
type Loan struct {
	MemberID int64 `json:"member_id"`
	BookID   int64 `json:"book_id"`
}

// LoanView is a loan resolved against the current members and books.
type LoanView struct {
	Member *Member `json:"member"`
	Book   *Book   `json:"book"`
}
