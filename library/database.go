package library

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Database is a Store backed by a private in-memory SQLite database.
// Nothing is written to disk; the data lives as long as the Database.
type Database struct {
	db *sql.DB

	addBookStmt   *sql.Stmt
	addMemberStmt *sql.Stmt
	addLoanStmt   *sql.Stmt
}

// NewDatabase creates a fresh in-memory SQLite database, applies the schema
// and prepares common statements. Every call gets its own database.
func NewDatabase() (*Database, error) {
	// A named shared-cache memory database outlives individual connections,
	// so the pool is pinned to one connection that is never recycled.
	dsn := fmt.Sprintf("file:catalog-%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db}
	if err := database.prepareStatements(); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and drops the database.
func (d *Database) Close() error {
	for _, stmt := range []*sql.Stmt{d.addBookStmt, d.addMemberStmt, d.addLoanStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

func applySchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE members (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL
        );`,
		`CREATE TABLE books (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            total_copies INTEGER NOT NULL CHECK (total_copies > 0)
        );`,
		// seq keeps insertion order; the pair is deliberately not unique.
		`CREATE TABLE loans (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            member_id INTEGER NOT NULL REFERENCES members(id),
            book_id INTEGER NOT NULL REFERENCES books(id)
        );`,
		`CREATE INDEX idx_loans_pair ON loans(member_id, book_id);`,
		`CREATE INDEX idx_loans_book ON loans(book_id);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.addBookStmt, err = d.db.Prepare(`INSERT INTO books(title,author,total_copies) VALUES(?,?,?)`); err != nil {
		return err
	}
	if d.addMemberStmt, err = d.db.Prepare(`INSERT INTO members(name) VALUES(?)`); err != nil {
		return err
	}
	if d.addLoanStmt, err = d.db.Prepare(`INSERT INTO loans(member_id,book_id) VALUES(?,?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

// available copies are derived from the loans table, never stored.
const selectBooks = `
    SELECT b.id, b.title, b.author, b.total_copies,
           b.total_copies - (SELECT COUNT(*) FROM loans l WHERE l.book_id = b.id)
    FROM books b`

func (d *Database) InsertBook(title, author string, totalCopies int) (int64, error) {
	res, err := d.addBookStmt.Exec(title, author, totalCopies)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (d *Database) Book(id int64) (*Book, error) {
	var b Book
	err := d.db.QueryRow(selectBooks+` WHERE b.id=?`, id).
		Scan(&b.ID, &b.Title, &b.Author, &b.TotalCopies, &b.AvailableCopies)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (d *Database) Books() ([]*Book, error) {
	rows, err := d.db.Query(selectBooks + ` ORDER BY b.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []*Book{}
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.TotalCopies, &b.AvailableCopies); err != nil {
			return nil, err
		}
		books = append(books, &b)
	}
	return books, rows.Err()
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

func (d *Database) InsertMember(name string) (int64, error) {
	res, err := d.addMemberStmt.Exec(name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (d *Database) Member(id int64) (*Member, error) {
	var m Member
	err := d.db.QueryRow(`SELECT id,name FROM members WHERE id=?`, id).Scan(&m.ID, &m.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (d *Database) Members() ([]*Member, error) {
	rows, err := d.db.Query(`SELECT id,name FROM members ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []*Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, err
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// ---------------------------------------------------------------------------
// Loans
// ---------------------------------------------------------------------------

func (d *Database) HasLoan(memberID, bookID int64) (bool, error) {
	var exists bool
	err := d.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM loans WHERE member_id=? AND book_id=?)`, memberID, bookID).
		Scan(&exists)
	return exists, err
}

func (d *Database) InsertLoan(memberID, bookID int64) error {
	_, err := d.addLoanStmt.Exec(memberID, bookID)
	return err
}

// DeleteLoan removes only the oldest matching row.
func (d *Database) DeleteLoan(memberID, bookID int64) (bool, error) {
	res, err := d.db.Exec(`
        DELETE FROM loans WHERE seq = (
            SELECT seq FROM loans WHERE member_id=? AND book_id=? ORDER BY seq LIMIT 1
        )`, memberID, bookID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *Database) Loans() ([]Loan, error) {
	rows, err := d.db.Query(`SELECT member_id, book_id FROM loans ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []Loan
	for rows.Next() {
		var l Loan
		if err := rows.Scan(&l.MemberID, &l.BookID); err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}
