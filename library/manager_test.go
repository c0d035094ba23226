package library

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// backends lists every Store the catalog must behave identically on.
var backends = []struct {
	name string
	open func(t *testing.T) Store
}{
	{"memory", func(t *testing.T) Store { return NewMemoryStore() }},
	{"sqlite", func(t *testing.T) Store { return tempDB(t) }},
}

func newCatalog(t *testing.T, store Store) *Catalog {
	t.Helper()
	c := NewCatalog(store, zaptest.NewLogger(t))
	t.Cleanup(func() { c.Close() })
	return c
}

// forEachBackend runs fn once per Store implementation.
func forEachBackend(t *testing.T, fn func(t *testing.T, c *Catalog)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, newCatalog(t, b.open(t)))
		})
	}
}

func mustBook(t *testing.T, c *Catalog, id int64) *Book {
	t.Helper()
	b, err := c.store.Book(id)
	require.NoError(t, err)
	return b
}

func TestCirculationScenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Catalog) {
		res := c.AddBook("Dune", "Herbert", 2)
		require.True(t, res.OK)
		assert.Equal(t, int64(1), res.ID)
		assert.Equal(t, "Book added with ID 1", res.Message)
		assert.Equal(t, 2, mustBook(t, c, 1).AvailableCopies)

		res = c.AddMember("Alice")
		require.True(t, res.OK)
		assert.Equal(t, int64(1), res.ID)
		assert.Equal(t, "Member added with ID 1", res.Message)

		res = c.BorrowBook(1, 1)
		require.True(t, res.OK)
		assert.Equal(t, "Book issued successfully.", res.Message)
		assert.Equal(t, 1, mustBook(t, c, 1).AvailableCopies)

		res = c.BorrowBook(1, 1)
		assert.False(t, res.OK)
		assert.ErrorIs(t, res.Err, ErrConflict)
		assert.Equal(t, "Member has already borrowed this book.", res.Message)
		assert.Equal(t, 1, mustBook(t, c, 1).AvailableCopies)

		res = c.ReturnBook(1, 1)
		require.True(t, res.OK)
		assert.Equal(t, "Book returned successfully.", res.Message)
		assert.Equal(t, 2, mustBook(t, c, 1).AvailableCopies)

		loans, err := c.ListLoans()
		require.NoError(t, err)
		assert.Empty(t, loans)

		res = c.ReturnBook(1, 1)
		assert.False(t, res.OK)
		assert.Equal(t, "No such loan record found.", res.Message)
		assert.ErrorIs(t, res.Err, ErrState)
		assert.ErrorIs(t, res.Err, ErrNotFound)
	})
}

func TestAddBookRejectsNonPositiveCopies(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Catalog) {
		for _, copies := range []int{0, -1, -100} {
			res := c.AddBook("Dune", "Herbert", copies)
			assert.False(t, res.OK)
			assert.ErrorIs(t, res.Err, ErrValidation)
			assert.Equal(t, "Total copies must be positive.", res.Message)
		}

		books, err := c.ListBooks()
		require.NoError(t, err)
		assert.Empty(t, books)

		// rejected calls do not consume ids
		assert.Equal(t, int64(1), c.AddBook("Dune", "Herbert", 1).ID)
	})
}

func TestAddMemberTrimsAndRejectsBlankNames(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Catalog) {
		for _, name := range []string{"", "   ", "\t\n"} {
			res := c.AddMember(name)
			assert.False(t, res.OK)
			assert.ErrorIs(t, res.Err, ErrValidation)
			assert.Equal(t, "Member name cannot be empty.", res.Message)
		}

		members, err := c.ListMembers()
		require.NoError(t, err)
		assert.Empty(t, members)

		res := c.AddMember("  Bob  ")
		require.True(t, res.OK)
		members, err = c.ListMembers()
		require.NoError(t, err)
		require.Len(t, members, 1)
		assert.Equal(t, "Bob", members[0].Name)
	})
}

func TestSequentialIDsAndInsertionOrder(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Catalog) {
		titles := []string{"Dune", "Emma", "Ulysses"}
		for i, title := range titles {
			assert.Equal(t, int64(i+1), c.AddBook(title, "Someone", 1).ID)
		}
		assert.Equal(t, int64(1), c.AddMember("Alice").ID)
		assert.Equal(t, int64(2), c.AddMember("Bob").ID)

		books, err := c.ListBooks()
		require.NoError(t, err)
		var got []string
		for _, b := range books {
			got = append(got, b.Title)
		}
		assert.Equal(t, titles, got)
	})
}

func TestBorrowValidationOrder(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Catalog) {
		c.AddBook("Dune", "Herbert", 1)
		c.AddMember("Alice")
		c.AddMember("Bob")
		require.True(t, c.BorrowBook(1, 1).OK)

		tests := []struct {
			name     string
			memberID int64
			bookID   int64
			kind     error
			message  string
		}{
			{"unknown member wins over unknown book", 9, 9, ErrNotFound, "Member not found."},
			{"unknown book", 2, 9, ErrNotFound, "Book not found."},
			{"no copies left", 2, 1, ErrState, "No copies available for this book."},
			// availability is checked before the duplicate loan
			{"holder with no copies left", 1, 1, ErrState, "No copies available for this book."},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				res := c.BorrowBook(tt.memberID, tt.bookID)
				assert.False(t, res.OK)
				assert.ErrorIs(t, res.Err, tt.kind)
				assert.Equal(t, tt.message, res.Message)
				assert.Equal(t, 0, mustBook(t, c, 1).AvailableCopies)
			})
		}

		loans, err := c.ListLoans()
		require.NoError(t, err)
		assert.Len(t, loans, 1)
	})
}

func TestReturnUnknownPairChangesNothing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Catalog) {
		c.AddBook("Dune", "Herbert", 3)
		c.AddBook("Emma", "Austen", 1)
		c.AddMember("Alice")
		c.AddMember("Bob")
		require.True(t, c.BorrowBook(1, 1).OK)

		for _, pair := range [][2]int64{{2, 1}, {1, 2}, {7, 7}} {
			res := c.ReturnBook(pair[0], pair[1])
			assert.False(t, res.OK)
			assert.ErrorIs(t, res.Err, ErrNoSuchLoan)
		}
		assert.Equal(t, 2, mustBook(t, c, 1).AvailableCopies)
		assert.Equal(t, 1, mustBook(t, c, 2).AvailableCopies)
	})
}

func TestReturnRemovesOneDuplicateRecord(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			c := newCatalog(t, store)
			c.AddBook("Dune", "Herbert", 3)
			c.AddMember("Alice")

			// duplicates can only be planted below the catalog
			require.NoError(t, store.InsertLoan(1, 1))
			require.NoError(t, store.InsertLoan(1, 1))
			assert.Equal(t, 1, mustBook(t, c, 1).AvailableCopies)
			assert.Equal(t, 2.0, testutil.ToFloat64(c.Metrics().activeLoans))

			require.True(t, c.ReturnBook(1, 1).OK)
			loans, err := c.ListLoans()
			require.NoError(t, err)
			assert.Len(t, loans, 1)
			assert.Equal(t, 2, mustBook(t, c, 1).AvailableCopies)
			assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics().activeLoans))
		})
	}
}

func TestSearchBooks(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Catalog) {
		c.AddBook("Dune", "Frank Herbert", 1)
		c.AddBook("Children of Dune", "Frank Herbert", 1)
		c.AddBook("Emma", "Jane Austen", 1)

		titles := func(keyword string) []string {
			seq, err := c.SearchBooks(keyword)
			require.NoError(t, err)
			var out []string
			for b := range seq {
				out = append(out, b.Title)
			}
			return out
		}

		assert.Equal(t, []string{"Dune", "Children of Dune"}, titles("dUNe"))
		assert.Equal(t, []string{"Emma"}, titles("AUSTEN"))
		assert.Empty(t, titles("tolkien"))
		assert.Len(t, titles(""), 3)
	})
}

func TestSearchBooksIsRestartable(t *testing.T) {
	c := newCatalog(t, NewMemoryStore())
	c.AddBook("Dune", "Herbert", 1)
	c.AddBook("Emma", "Austen", 1)

	seq, err := c.SearchBooks("e")
	require.NoError(t, err)
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Len(t, first, 2)
	assert.Equal(t, first, second)

	// early exit stops the iteration
	n := 0
	for range seq {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestListLoansResolvesLiveRecords(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Catalog) {
		c.AddBook("Dune", "Herbert", 2)
		c.AddBook("Emma", "Austen", 1)
		c.AddMember("Alice")
		c.AddMember("Bob")
		require.True(t, c.BorrowBook(2, 2).OK)
		require.True(t, c.BorrowBook(1, 1).OK)
		require.True(t, c.BorrowBook(2, 1).OK)

		loans, err := c.ListLoans()
		require.NoError(t, err)
		require.Len(t, loans, 3)

		var got []string
		for _, l := range loans {
			got = append(got, fmt.Sprintf("%s:%s", l.Member.Name, l.Book.Title))
		}
		assert.Equal(t, []string{"Bob:Emma", "Alice:Dune", "Bob:Dune"}, got)
		// the resolved book reflects every loan, not the state at borrow time
		assert.Equal(t, 0, loans[1].Book.AvailableCopies)
	})
}

func TestIndependentCatalogs(t *testing.T) {
	a := newCatalog(t, NewMemoryStore())
	b := newCatalog(t, NewMemoryStore())

	a.AddBook("Dune", "Herbert", 1)
	assert.Equal(t, int64(1), b.AddBook("Emma", "Austen", 1).ID)
	assert.NotEqual(t, a.ID(), b.ID())

	books, err := b.ListBooks()
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Emma", books[0].Title)
}

func TestAvailabilityInvariantHolds(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Catalog) {
		rng := rand.New(rand.NewPCG(7, 11))
		for i := 0; i < 4; i++ {
			c.AddBook(fmt.Sprintf("Book %d", i), "Author", 1+rng.IntN(3))
			c.AddMember(fmt.Sprintf("Member %d", i))
		}

		for step := 0; step < 300; step++ {
			memberID := int64(1 + rng.IntN(5))
			bookID := int64(1 + rng.IntN(5))
			if rng.IntN(2) == 0 {
				c.BorrowBook(memberID, bookID)
			} else {
				c.ReturnBook(memberID, bookID)
			}

			loans, err := c.store.Loans()
			require.NoError(t, err)
			lent := map[int64]int{}
			seen := map[Loan]bool{}
			for _, l := range loans {
				lent[l.BookID]++
				require.False(t, seen[l], "duplicate active loan %+v", l)
				seen[l] = true
			}

			books, err := c.ListBooks()
			require.NoError(t, err)
			for _, b := range books {
				require.GreaterOrEqual(t, b.AvailableCopies, 0)
				require.LessOrEqual(t, b.AvailableCopies, b.TotalCopies)
				require.Equal(t, b.TotalCopies-lent[b.ID], b.AvailableCopies)
			}
		}
	})
}

func TestOperationMetrics(t *testing.T) {
	c := newCatalog(t, NewMemoryStore())
	c.AddBook("Dune", "Herbert", 1)
	c.AddBook("Dune", "Herbert", 0)
	c.AddMember("Alice")
	c.BorrowBook(1, 1)
	c.BorrowBook(1, 1)
	c.BorrowBook(5, 1)

	ops := c.Metrics().operations
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(opAddBook, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(opAddBook, "validation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(opBorrowBook, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(opBorrowBook, "state")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(opBorrowBook, "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics().activeLoans))

	c.ReturnBook(1, 1)
	c.ReturnBook(1, 1)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.Metrics().activeLoans))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(opReturnBook, "state")))

	samples, err := c.Metrics().Snapshot()
	require.NoError(t, err)
	assert.Contains(t, samples, Sample{Name: "library_active_loans", Value: 0})
	assert.Contains(t, samples, Sample{Name: "library_operations_total", Labels: "operation=add_member,outcome=success", Value: 1})
}

func TestStoreFailuresBecomeInternalErrors(t *testing.T) {
	db := tempDB(t)
	c := newCatalog(t, db)
	c.AddBook("Dune", "Herbert", 1)
	c.AddMember("Alice")
	require.True(t, c.BorrowBook(1, 1).OK)
	require.NoError(t, db.Close())

	tests := []struct {
		operation string
		call      func() Result
	}{
		{opAddBook, func() Result { return c.AddBook("Emma", "Austen", 1) }},
		{opAddMember, func() Result { return c.AddMember("Bob") }},
		{opBorrowBook, func() Result { return c.BorrowBook(1, 1) }},
		{opReturnBook, func() Result { return c.ReturnBook(1, 1) }},
	}
	for _, tt := range tests {
		t.Run(tt.operation, func(t *testing.T) {
			res := tt.call()
			assert.False(t, res.OK)
			assert.Error(t, res.Err)
			assert.True(t, strings.HasPrefix(res.Message, "Internal error: "), res.Message)
			assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics().operations.WithLabelValues(tt.operation, "error")))
		})
	}

	_, err := c.ListBooks()
	assert.Error(t, err)
	_, err = c.ListMembers()
	assert.Error(t, err)
	_, err = c.ListLoans()
	assert.Error(t, err)
	_, err = c.SearchBooks("dune")
	assert.Error(t, err)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.Metrics().activeLoans))
}
