package library

import (
	"fmt"
	"slices"
)

// MemoryStore keeps the catalog in plain Go maps and slices.
type MemoryStore struct {
	books   map[int64]*Book
	members map[int64]*Member

	bookOrder   []int64
	memberOrder []int64

	loans []Loan
	// pairs indexes loans by (member, book) so duplicate checks stay O(1).
	pairs map[Loan]int

	nextBookID   int64
	nextMemberID int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books:   make(map[int64]*Book),
		members: make(map[int64]*Member),
		pairs:   make(map[Loan]int),
	}
}

func (s *MemoryStore) Close() error { return nil }

// ------------------ Books ------------------

func (s *MemoryStore) InsertBook(title, author string, totalCopies int) (int64, error) {
	s.nextBookID++
	id := s.nextBookID
	s.books[id] = &Book{ID: id, Title: title, Author: author, TotalCopies: totalCopies}
	s.bookOrder = append(s.bookOrder, id)
	return id, nil
}

func (s *MemoryStore) Book(id int64) (*Book, error) {
	b, ok := s.books[id]
	if !ok {
		return nil, fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	return s.withAvailability(b, s.lentCount(id)), nil
}

func (s *MemoryStore) Books() ([]*Book, error) {
	lent := make(map[int64]int, len(s.books))
	for _, l := range s.loans {
		lent[l.BookID]++
	}

	books := make([]*Book, 0, len(s.bookOrder))
	for _, id := range s.bookOrder {
		books = append(books, s.withAvailability(s.books[id], lent[id]))
	}
	return books, nil
}

// withAvailability returns a copy of b so callers never touch stored records.
func (s *MemoryStore) withAvailability(b *Book, lent int) *Book {
	cp := *b
	cp.AvailableCopies = b.TotalCopies - lent
	return &cp
}

func (s *MemoryStore) lentCount(bookID int64) int {
	n := 0
	for _, l := range s.loans {
		if l.BookID == bookID {
			n++
		}
	}
	return n
}

// ------------------ Members ------------------

func (s *MemoryStore) InsertMember(name string) (int64, error) {
	s.nextMemberID++
	id := s.nextMemberID
	s.members[id] = &Member{ID: id, Name: name}
	s.memberOrder = append(s.memberOrder, id)
	return id, nil
}

func (s *MemoryStore) Member(id int64) (*Member, error) {
	m, ok := s.members[id]
	if !ok {
		return nil, fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) Members() ([]*Member, error) {
	members := make([]*Member, 0, len(s.memberOrder))
	for _, id := range s.memberOrder {
		cp := *s.members[id]
		members = append(members, &cp)
	}
	return members, nil
}

// ------------------ Loans ------------------

func (s *MemoryStore) HasLoan(memberID, bookID int64) (bool, error) {
	return s.pairs[Loan{MemberID: memberID, BookID: bookID}] > 0, nil
}

func (s *MemoryStore) InsertLoan(memberID, bookID int64) error {
	l := Loan{MemberID: memberID, BookID: bookID}
	s.loans = append(s.loans, l)
	s.pairs[l]++
	return nil
}

func (s *MemoryStore) DeleteLoan(memberID, bookID int64) (bool, error) {
	l := Loan{MemberID: memberID, BookID: bookID}
	i := slices.Index(s.loans, l)
	if i < 0 {
		return false, nil
	}
	s.loans = slices.Delete(s.loans, i, i+1)
	if s.pairs[l]--; s.pairs[l] == 0 {
		delete(s.pairs, l)
	}
	return true, nil
}

func (s *MemoryStore) Loans() ([]Loan, error) {
	return slices.Clone(s.loans), nil
}
