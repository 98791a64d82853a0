package library

import "time"

// LoanPeriod is how long a copy may be kept before the loan is overdue.
const LoanPeriod = 14 * 24 * time.Hour

type (
	BookID   int64
	MemberID int64
	BorrowID int64
)

// Book represents a catalog entry and how many of its copies are on the shelf.
type Book struct {
	ID              BookID `json:"id" db:"id"`
	Title           string `json:"title" db:"title"`
	Author          string `json:"author" db:"author"`
	ISBN            string `json:"isbn" db:"isbn"`
	TotalCopies     uint   `json:"total_copies" db:"total_copies"`
	AvailableCopies uint   `json:"available_copies" db:"available_copies"`
}

// Member represents a registered library member.
type Member struct {
	ID       MemberID  `json:"id" db:"id"`
	Name     string    `json:"name" db:"name"`
	Email    string    `json:"email" db:"email"`
	JoinDate time.Time `json:"join_date" db:"join_date"`
}

// BorrowRecord is a single loan. ReturnDate is nil while the loan is
// outstanding and is written exactly once.
type BorrowRecord struct {
	ID         BorrowID   `json:"id"`
	BookID     BookID     `json:"book_id"`
	MemberID   MemberID   `json:"member_id"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
}

// Outstanding reports whether the copy has not been returned yet.
func (r BorrowRecord) Outstanding() bool { return r.ReturnDate == nil }

// OverdueAt reports whether the loan is outstanding and past due at now.
func (r BorrowRecord) OverdueAt(now time.Time) bool {
	return r.Outstanding() && r.DueDate.Before(now)
}

// OverdueLoan is one row of the overdue report.
type OverdueLoan struct {
	BorrowID BorrowID  `json:"borrow_id"`
	BookID   BookID    `json:"book_id"`
	MemberID MemberID  `json:"member_id"`
	DueDate  time.Time `json:"due_date"`
}

// Statistics summarises the library. TotalBooks and TotalMembers are
// collection sizes, not copy counts.
type Statistics struct {
	TotalBooks         int `json:"total_books"`
	TotalMembers       int `json:"total_members"`
	BooksInCirculation int `json:"books_in_circulation"`
	OverdueBooksCount  int `json:"overdue_books_count"`
}

// Snapshot is the complete library state for persistence. The Next* counters
// are carried explicitly so ids stay monotonic across restarts.
type Snapshot struct {
	Books        []Book         `json:"books"`
	Members      []Member       `json:"members"`
	Borrows      []BorrowRecord `json:"borrows"`
	NextBookID   BookID         `json:"next_book_id"`
	NextMemberID MemberID       `json:"next_member_id"`
	NextBorrowID BorrowID       `json:"next_borrow_id"`
}
