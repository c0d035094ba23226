package library

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	opAddBook    = "add_book"
	opAddMember  = "add_member"
	opBorrowBook = "borrow_book"
	opReturnBook = "return_book"
)

// Catalog is the circulation service: books, members and active loans.
//
// Every mutating operation reports its outcome as a Result instead of an
// error, so a caller only needs to inspect Result.OK and print the message.
// Queries return an error only when the underlying store fails.
type Catalog struct {
	// mu covers the read-validate-mutate sequence of each operation.
	mu sync.Mutex

	id      uuid.UUID
	store   Store
	log     *zap.Logger
	metrics *Metrics
}

// NewCatalog wraps store. A nil logger disables logging.
func NewCatalog(store Store, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.New()
	c := &Catalog{
		id:    id,
		store: store,
		log:   log.With(zap.String("catalog_id", id.String())),
	}
	c.metrics = newMetrics(c.countLoans)
	return c
}

// NewMemoryCatalog returns a catalog backed by a fresh MemoryStore.
func NewMemoryCatalog(log *zap.Logger) *Catalog {
	return NewCatalog(NewMemoryStore(), log)
}

// NewSQLiteCatalog returns a catalog backed by a fresh in-memory SQLite database.
func NewSQLiteCatalog(log *zap.Logger) (*Catalog, error) {
	db, err := NewDatabase()
	if err != nil {
		return nil, err
	}
	return NewCatalog(db, log), nil
}

// ID identifies this catalog in logs.
func (c *Catalog) ID() uuid.UUID { return c.id }

// Metrics exposes the catalog's operation counters.
func (c *Catalog) Metrics() *Metrics { return c.metrics }

// Close releases the underlying store.
func (c *Catalog) Close() error { return c.store.Close() }

// ------------------ Books ------------------

// AddBook registers a title with totalCopies copies, all initially available.
func (c *Catalog) AddBook(title, author string, totalCopies int) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if totalCopies <= 0 {
		err := fmt.Errorf("total copies %d: %w", totalCopies, ErrValidation)
		return c.finish(opAddBook, failed(err, "Total copies must be positive."))
	}

	id, err := c.store.InsertBook(title, author, totalCopies)
	if err != nil {
		return c.finish(opAddBook, c.internal(err))
	}
	return c.finish(opAddBook, succeeded(id, fmt.Sprintf("Book added with ID %d", id)),
		zap.String("title", title), zap.Int("copies", totalCopies))
}

// ListBooks returns every book in insertion order.
func (c *Catalog) ListBooks() ([]*Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Books()
}

// SearchBooks returns the books whose title or author contains keyword,
// ignoring case. The sequence filters lazily over the books present at call
// time and can be ranged over any number of times.
func (c *Catalog) SearchBooks(keyword string) (iter.Seq[*Book], error) {
	books, err := c.ListBooks()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(keyword)
	return func(yield func(*Book) bool) {
		for _, b := range books {
			if !matches(b, needle) {
				continue
			}
			if !yield(b) {
				return
			}
		}
	}, nil
}

func matches(b *Book, needle string) bool {
	return strings.Contains(strings.ToLower(b.Title), needle) ||
		strings.Contains(strings.ToLower(b.Author), needle)
}

// ------------------ Members ------------------

// AddMember registers a member under the trimmed name.
func (c *Catalog) AddMember(name string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		err := fmt.Errorf("empty member name: %w", ErrValidation)
		return c.finish(opAddMember, failed(err, "Member name cannot be empty."))
	}

	id, err := c.store.InsertMember(name)
	if err != nil {
		return c.finish(opAddMember, c.internal(err))
	}
	return c.finish(opAddMember, succeeded(id, fmt.Sprintf("Member added with ID %d", id)),
		zap.String("name", name))
}

// ListMembers returns every member in insertion order.
func (c *Catalog) ListMembers() ([]*Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Members()
}

// ------------------ Circulation ------------------

// BorrowBook issues one copy of a book to a member.
//
// Checks run in this order and the first failure wins: the member exists,
// the book exists, a copy is available, the member does not already hold
// this book. Nothing changes unless every check passes.
func (c *Catalog) BorrowBook(memberID, bookID int64) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	fields := []zap.Field{zap.Int64("member_id", memberID), zap.Int64("book_id", bookID)}

	if _, err := c.store.Member(memberID); err != nil {
		return c.finish(opBorrowBook, c.lookupFailure(err, "Member not found."), fields...)
	}

	book, err := c.store.Book(bookID)
	if err != nil {
		return c.finish(opBorrowBook, c.lookupFailure(err, "Book not found."), fields...)
	}

	if book.AvailableCopies <= 0 {
		err := fmt.Errorf("book %d has no copies available: %w", bookID, ErrState)
		return c.finish(opBorrowBook, failed(err, "No copies available for this book."), fields...)
	}

	held, err := c.store.HasLoan(memberID, bookID)
	if err != nil {
		return c.finish(opBorrowBook, c.internal(err), fields...)
	}
	if held {
		err := fmt.Errorf("member %d already holds book %d: %w", memberID, bookID, ErrConflict)
		return c.finish(opBorrowBook, failed(err, "Member has already borrowed this book."), fields...)
	}

	if err := c.store.InsertLoan(memberID, bookID); err != nil {
		return c.finish(opBorrowBook, c.internal(err), fields...)
	}
	return c.finish(opBorrowBook, succeeded(0, "Book issued successfully."), fields...)
}

// ReturnBook ends one active loan for the pair. If several records for the
// same pair ever exist, only the oldest is removed per call.
func (c *Catalog) ReturnBook(memberID, bookID int64) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	fields := []zap.Field{zap.Int64("member_id", memberID), zap.Int64("book_id", bookID)}

	removed, err := c.store.DeleteLoan(memberID, bookID)
	if err != nil {
		return c.finish(opReturnBook, c.internal(err), fields...)
	}
	if !removed {
		err := fmt.Errorf("member %d book %d: %w", memberID, bookID, ErrNoSuchLoan)
		return c.finish(opReturnBook, failed(err, "No such loan record found."), fields...)
	}
	return c.finish(opReturnBook, succeeded(0, "Book returned successfully."), fields...)
}

// ListLoans resolves every active loan against the current members and books.
func (c *Catalog) ListLoans() ([]LoanView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	loans, err := c.store.Loans()
	if err != nil {
		return nil, err
	}

	views := make([]LoanView, 0, len(loans))
	for _, l := range loans {
		member, err := c.store.Member(l.MemberID)
		if err != nil {
			return nil, fmt.Errorf("resolve loan member: %w", err)
		}
		book, err := c.store.Book(l.BookID)
		if err != nil {
			return nil, fmt.Errorf("resolve loan book: %w", err)
		}
		views = append(views, LoanView{Member: member, Book: book})
	}
	return views, nil
}

// ------------------ Helpers ------------------

func (c *Catalog) countLoans() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	loans, err := c.store.Loans()
	if err != nil {
		c.log.Error("Count active loans", zap.Error(err))
		return 0
	}
	return float64(len(loans))
}

func (c *Catalog) lookupFailure(err error, message string) Result {
	if errors.Is(err, ErrNotFound) {
		return failed(err, message)
	}
	return c.internal(err)
}

func (c *Catalog) internal(err error) Result {
	return failed(err, "Internal error: "+err.Error())
}

// finish records the outcome of an operation and hands the result back.
func (c *Catalog) finish(operation string, r Result, fields ...zap.Field) Result {
	c.metrics.observe(operation, r)

	fields = append(fields, zap.String("operation", operation))
	switch kind := outcome(r); kind {
	case "success":
		if r.ID != 0 {
			fields = append(fields, zap.Int64("id", r.ID))
		}
		c.log.Info("Operation succeeded", fields...)
	case "error":
		c.log.Error("Operation failed", append(fields, zap.Error(r.Err))...)
	default:
		c.log.Debug("Operation rejected", append(fields, zap.String("reason", kind), zap.Error(r.Err))...)
	}
	return r
}
