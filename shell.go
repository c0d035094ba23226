package main

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"library-catalog/library"
)

// maxLineLength caps a single input line; longer lines still fail the scan.
const maxLineLength = 1 << 20

// console is the terminal the menu talks to.
type console struct {
	sc  *bufio.Scanner
	out io.Writer

	// interactive turns on the menu banner and input prompts.
	interactive bool
	// json renders listings as JSON arrays instead of text lines.
	json bool
}

func newConsole(in io.Reader, out io.Writer) *console {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	return &console{sc: sc, out: out}
}

// runShell serves menu choices until the user exits or input ends.
func runShell(con *console, mgr *library.Catalog) error {
	for {
		if con.interactive {
			printMenu(con)
		}
		choice, ok := con.prompt("Enter your choice: ")
		if !ok {
			return con.sc.Err()
		}

		switch strings.TrimSpace(choice) {
		case "1":
			handleAddBook(con, mgr)
		case "2":
			handleAddMember(con, mgr)
		case "3":
			handleListBooks(con, mgr)
		case "4":
			handleListMembers(con, mgr)
		case "5":
			handleSearchBooks(con, mgr)
		case "6":
			handleIssue(con, mgr)
		case "7":
			handleReturn(con, mgr)
		case "8":
			handleListLoans(con, mgr)
		case "9":
			handleStats(con, mgr)
		case "0":
			con.println("Exiting... Goodbye!")
			return nil
		default:
			con.println("Invalid choice. Please try again.")
		}
	}
}

func printMenu(con *console) {
	con.println("\n========== Library Management System ==========")
	con.println("1. Add Book")
	con.println("2. Add Member")
	con.println("3. List Books")
	con.println("4. List Members")
	con.println("5. Search Books")
	con.println("6. Issue Book")
	con.println("7. Return Book")
	con.println("8. View Issued Books")
	con.println("9. Statistics")
	con.println("0. Exit")
	con.println("===============================================")
}

func handleAddBook(con *console, mgr *library.Catalog) {
	title, ok := con.prompt("Enter book title: ")
	if !ok {
		return
	}
	author, ok := con.prompt("Enter author name: ")
	if !ok {
		return
	}
	totalStr, ok := con.prompt("Enter total copies: ")
	if !ok {
		return
	}
	total, err := strconv.Atoi(strings.TrimSpace(totalStr))
	if err != nil {
		con.println("Total copies must be a number.")
		return
	}
	con.println(mgr.AddBook(title, author, total).Message)
}

func handleAddMember(con *console, mgr *library.Catalog) {
	name, ok := con.prompt("Enter member name: ")
	if !ok {
		return
	}
	con.println(mgr.AddMember(name).Message)
}

func handleListBooks(con *console, mgr *library.Catalog) {
	books, err := mgr.ListBooks()
	if err != nil {
		con.printf("Error: %v\n", err)
		return
	}
	if con.json {
		con.writeJSON(books)
		return
	}
	if len(books) == 0 {
		con.println("No books in the library.")
		return
	}
	con.println("\n--- Book List ---")
	for _, b := range books {
		con.println(library.FormatBook(b))
	}
}

func handleListMembers(con *console, mgr *library.Catalog) {
	members, err := mgr.ListMembers()
	if err != nil {
		con.printf("Error: %v\n", err)
		return
	}
	if con.json {
		con.writeJSON(members)
		return
	}
	if len(members) == 0 {
		con.println("No members registered.")
		return
	}
	con.println("\n--- Member List ---")
	for _, m := range members {
		con.println(library.FormatMember(m))
	}
}

func handleSearchBooks(con *console, mgr *library.Catalog) {
	keyword, ok := con.prompt("Enter title/author keyword to search: ")
	if !ok {
		return
	}
	results, err := mgr.SearchBooks(keyword)
	if err != nil {
		con.printf("Error: %v\n", err)
		return
	}
	if con.json {
		books := slices.Collect(results)
		if books == nil {
			books = []*library.Book{}
		}
		con.writeJSON(books)
		return
	}

	found := false
	for b := range results {
		if !found {
			con.println("\n--- Search Results ---")
			found = true
		}
		con.println(library.FormatBook(b))
	}
	if !found {
		con.println("No matching books found.")
	}
}

func handleIssue(con *console, mgr *library.Catalog) {
	memberID, bookID, ok := promptLoanPair(con)
	if !ok {
		return
	}
	con.println(mgr.BorrowBook(memberID, bookID).Message)
}

func handleReturn(con *console, mgr *library.Catalog) {
	memberID, bookID, ok := promptLoanPair(con)
	if !ok {
		return
	}
	con.println(mgr.ReturnBook(memberID, bookID).Message)
}

func handleListLoans(con *console, mgr *library.Catalog) {
	loans, err := mgr.ListLoans()
	if err != nil {
		con.printf("Error: %v\n", err)
		return
	}
	if con.json {
		con.writeJSON(loans)
		return
	}
	if len(loans) == 0 {
		con.println("No books are currently issued.")
		return
	}
	con.println("\n--- Issued Books ---")
	for _, l := range loans {
		con.println(library.FormatLoan(l))
	}
}

func handleStats(con *console, mgr *library.Catalog) {
	samples, err := mgr.Metrics().Snapshot()
	if err != nil {
		con.printf("Error: %v\n", err)
		return
	}
	if con.json {
		con.writeJSON(samples)
		return
	}
	con.println("\n--- Statistics ---")
	for _, sample := range samples {
		name := sample.Name
		if sample.Labels != "" {
			name += "{" + sample.Labels + "}"
		}
		con.printf("%-60s %g\n", name, sample.Value)
	}
}

// promptLoanPair reads a member id then a book id. Non-numeric input is
// reported here and never reaches the catalog.
func promptLoanPair(con *console) (memberID, bookID int64, ok bool) {
	memberID, ok = promptID(con, "Enter member ID: ")
	if !ok {
		return 0, 0, false
	}
	bookID, ok = promptID(con, "Enter book ID: ")
	if !ok {
		return 0, 0, false
	}
	return memberID, bookID, true
}

func promptID(con *console, label string) (int64, bool) {
	raw, ok := con.prompt(label)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		con.println("IDs must be numbers.")
		return 0, false
	}
	return id, true
}

func (con *console) prompt(label string) (string, bool) {
	if con.interactive {
		fmt.Fprint(con.out, label)
	}
	if !con.sc.Scan() {
		return "", false
	}
	return con.sc.Text(), true
}

func (con *console) writeJSON(v any) {
	if err := library.WriteJSON(con.out, v); err != nil {
		con.printf("Error: %v\n", err)
	}
}

func (con *console) println(line string) { fmt.Fprintln(con.out, line) }

func (con *console) printf(format string, args ...any) { fmt.Fprintf(con.out, format, args...) }
