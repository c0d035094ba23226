package library

// Store holds the three collections behind a Catalog.
//
// Implementations assign ids from a monotonically increasing counter per
// entity type starting at 1, return books and members in insertion order,
// and compute Book.AvailableCopies from their loan records. Lookups of
// unknown ids return an error wrapping ErrNotFound. Stores do no validation
// of their own; the Catalog checks every precondition before mutating.
type Store interface {
	InsertBook(title, author string, totalCopies int) (int64, error)
	InsertMember(name string) (int64, error)

	Book(id int64) (*Book, error)
	Member(id int64) (*Member, error)
	Books() ([]*Book, error)
	Members() ([]*Member, error)

	HasLoan(memberID, bookID int64) (bool, error)
	InsertLoan(memberID, bookID int64) error
	// DeleteLoan removes the first loan matching the pair and reports
	// whether one existed.
	DeleteLoan(memberID, bookID int64) (bool, error)
	Loans() ([]Loan, error)

	Close() error
}
