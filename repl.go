package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"library-ledger/library"
)

// session is one run of the interactive loop.
type session struct {
	*app
	sc          *bufio.Scanner
	out         io.Writer
	interactive bool
}

func (a *app) repl(in io.Reader, out io.Writer, interactive bool) error {
	s := &session{app: a, sc: bufio.NewScanner(in), out: out, interactive: interactive}

	if interactive {
		fmt.Fprintln(out, "Welcome to the Library Ledger!")
		fmt.Fprintln(out, "Available commands:")
		fmt.Fprintln(out, "  Books: add book, get book, update copies, list books")
		fmt.Fprintln(out, "  Members: add member, get member, list members")
		fmt.Fprintln(out, "  Circulation: borrow, return, loans, overdue, stats")
		fmt.Fprintln(out, "  System: save, exit")
	}

	for {
		if interactive {
			fmt.Fprint(out, "\n> ")
		}
		if !s.sc.Scan() {
			break
		}
		cmd := strings.TrimSpace(s.sc.Text())

		var mutated bool
		switch cmd {
		case "":
			continue
		case "add book":
			mutated = s.handleAddBook()
		case "get book":
			s.handleGetBook()
		case "update copies":
			mutated = s.handleUpdateCopies()
		case "list books":
			s.handleListBooks()
		case "add member":
			mutated = s.handleAddMember()
		case "get member":
			s.handleGetMember()
		case "list members":
			s.handleListMembers()
		case "borrow":
			mutated = s.handleBorrow()
		case "return":
			mutated = s.handleReturn()
		case "loans":
			s.handleLoans()
		case "overdue":
			printOverdue(s.out, s.mgr.OverdueBooks())
		case "stats":
			printStatistics(s.out, s.mgr.Statistics())
		case "save":
			s.save()
		case "exit":
			fmt.Fprintln(out, "Goodbye!")
			return s.sc.Err()
		default:
			fmt.Fprintln(out, "Unknown command. Type one of the available commands listed above.")
		}

		if mutated && s.cfg.Autosave {
			s.save()
		}
	}
	return s.sc.Err()
}

func (s *session) prompt(label string) (string, bool) {
	if s.interactive {
		fmt.Fprint(s.out, label)
	}
	if !s.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.sc.Text()), true
}

func (s *session) promptInt(label string) (int64, bool) {
	raw, ok := s.prompt(label)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		fmt.Fprintf(s.out, "Invalid number: %s\n", raw)
		return 0, false
	}
	return n, true
}

func (s *session) save() {
	id, err := s.mgr.Save()
	if errors.Is(err, library.ErrNoDatabase) {
		return
	}
	if err != nil {
		fmt.Fprintf(s.out, "Error saving library: %v\n", err)
		return
	}
	s.logger.Debug("autosave complete", "snapshot_id", id.String())
}

func (s *session) handleAddBook() bool {
	title, ok := s.prompt("Title: ")
	if !ok {
		return false
	}
	author, ok := s.prompt("Author: ")
	if !ok {
		return false
	}
	isbn, ok := s.prompt("ISBN: ")
	if !ok {
		return false
	}
	copies, ok := s.promptInt("Copies: ")
	if !ok {
		return false
	}
	if copies < 0 {
		fmt.Fprintln(s.out, "Error: copies cannot be negative")
		return false
	}

	id := s.mgr.AddBook(title, author, isbn, uint(copies))
	fmt.Fprintf(s.out, "Added book ID %d with %d copies.\n", id, copies)
	return true
}

func (s *session) handleGetBook() {
	id, ok := s.promptInt("Book ID: ")
	if !ok {
		return
	}
	b, err := s.mgr.GetBook(library.BookID(id))
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	printBookHeader(s.out)
	fmt.Fprintln(s.out, library.PrettyBook(b))
}

func (s *session) handleUpdateCopies() bool {
	id, ok := s.promptInt("Book ID: ")
	if !ok {
		return false
	}
	total, ok := s.promptInt("New total copies: ")
	if !ok {
		return false
	}
	if total < 0 {
		fmt.Fprintln(s.out, "Error: copies cannot be negative")
		return false
	}
	if err := s.mgr.UpdateBookCopies(library.BookID(id), uint(total)); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return false
	}
	b, _ := s.mgr.GetBook(library.BookID(id))
	fmt.Fprintf(s.out, "Book %d now has %d copies (%d available).\n", b.ID, b.TotalCopies, b.AvailableCopies)
	return true
}

func (s *session) handleListBooks() {
	books := s.mgr.Books()
	if len(books) == 0 {
		fmt.Fprintln(s.out, "No books in library.")
		return
	}
	printBookHeader(s.out)
	for _, b := range books {
		fmt.Fprintln(s.out, library.PrettyBook(b))
	}
}

func printBookHeader(w io.Writer) {
	fmt.Fprintf(w, "%-5s %-30s %-25s %-15s %s\n", "ID", "Title", "Author", "ISBN", "Avail/Total")
	fmt.Fprintln(w, strings.Repeat("-", 92))
}

func (s *session) handleAddMember() bool {
	name, ok := s.prompt("Name: ")
	if !ok {
		return false
	}
	if name == "" {
		fmt.Fprintln(s.out, "Error: Name cannot be empty")
		return false
	}
	email, ok := s.prompt("Email: ")
	if !ok {
		return false
	}

	id := s.mgr.AddMember(name, email)
	fmt.Fprintf(s.out, "Added member '%s' with ID %d\n", name, id)
	return true
}

func (s *session) handleGetMember() {
	id, ok := s.promptInt("Member ID: ")
	if !ok {
		return
	}
	m, err := s.mgr.GetMember(library.MemberID(id))
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	printMemberHeader(s.out)
	fmt.Fprintln(s.out, library.PrettyMember(m))
}

func (s *session) handleListMembers() {
	members := s.mgr.Members()
	if len(members) == 0 {
		fmt.Fprintln(s.out, "No members registered.")
		return
	}
	printMemberHeader(s.out)
	for _, m := range members {
		fmt.Fprintln(s.out, library.PrettyMember(m))
	}
}

func printMemberHeader(w io.Writer) {
	fmt.Fprintf(w, "%-5s %-30s %-30s %s\n", "ID", "Name", "Email", "Joined")
	fmt.Fprintln(w, strings.Repeat("-", 78))
}

func (s *session) handleBorrow() bool {
	bookID, ok := s.promptInt("Book ID: ")
	if !ok {
		return false
	}
	memberID, ok := s.promptInt("Member ID: ")
	if !ok {
		return false
	}

	id, err := s.mgr.BorrowBook(library.BookID(bookID), library.MemberID(memberID))
	if err != nil {
		fmt.Fprintf(s.out, "Error borrowing book: %v\n", err)
		return false
	}
	rec, _ := s.mgr.GetBorrow(id)
	fmt.Fprintf(s.out, "Loan %d created, due %s\n", id, rec.DueDate.Format("2006-01-02"))
	return true
}

func (s *session) handleReturn() bool {
	id, ok := s.promptInt("Loan ID: ")
	if !ok {
		return false
	}
	if err := s.mgr.ReturnBook(library.BorrowID(id)); err != nil {
		fmt.Fprintf(s.out, "Error returning book: %v\n", err)
		return false
	}
	fmt.Fprintf(s.out, "Loan %d returned.\n", id)
	return true
}

func (s *session) handleLoans() {
	memberID, ok := s.promptInt("Member ID: ")
	if !ok {
		return
	}
	books := s.mgr.BooksBorrowedByMember(library.MemberID(memberID))
	if len(books) == 0 {
		fmt.Fprintf(s.out, "Member %d has no books on loan.\n", memberID)
		return
	}
	fmt.Fprintf(s.out, "Member %d has %d book(s) on loan:\n", memberID, len(books))
	for _, id := range books {
		b, err := s.mgr.GetBook(id)
		if err != nil {
			fmt.Fprintf(s.out, "  %d\n", id)
			continue
		}
		fmt.Fprintf(s.out, "  %d  %s by %s\n", b.ID, b.Title, b.Author)
	}
}
