package library

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoDatabase is returned by Save on a manager that was not opened on a database.
var ErrNoDatabase = errors.New("library has no database attached")

// LibraryManager is the store handle for the catalog, the membership roll and
// the borrow ledger. Mutations are serialized behind a single write lock, so
// each one is applied as an indivisible step; queries share a read lock.
type LibraryManager struct {
	mu      sync.RWMutex
	books   *catalog
	members *membership
	ledger  *borrowLedger

	now    func() time.Time
	logger *slog.Logger
	db     *Database
}

// Option configures a LibraryManager.
type Option func(*LibraryManager)

// WithClock replaces time.Now. The clock is read once per operation.
func WithClock(now func() time.Time) Option {
	return func(lm *LibraryManager) { lm.now = now }
}

// WithLogger sets the structured logger. Defaults to a discarding logger.
func WithLogger(logger *slog.Logger) Option {
	return func(lm *LibraryManager) { lm.logger = logger }
}

// NewLibraryManager returns an empty, in-memory library.
func NewLibraryManager(opts ...Option) *LibraryManager {
	lm := &LibraryManager{
		books:   newCatalog(),
		members: newMembership(),
		ledger:  newBorrowLedger(),
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(lm)
	}
	return lm
}

// OpenLibraryManager opens (or creates) the SQLite database at dbPath and
// restores the last saved snapshot from it.
func OpenLibraryManager(dbPath string, opts ...Option) (*LibraryManager, error) {
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	snap, err := db.LoadSnapshot()
	if err != nil {
		db.Close()
		return nil, err
	}

	lm := NewLibraryManager(opts...)
	if err := lm.Restore(snap); err != nil {
		db.Close()
		return nil, err
	}
	lm.db = db
	lm.logger.Info("library loaded",
		"db", dbPath,
		"books", len(snap.Books),
		"members", len(snap.Members),
		"borrows", len(snap.Borrows),
	)
	return lm, nil
}

// Save writes the current state to the attached database. The snapshot is
// taken under the read lock; the write happens after it is released.
func (lm *LibraryManager) Save() (uuid.UUID, error) {
	if lm.db == nil {
		return uuid.Nil, ErrNoDatabase
	}
	snap := lm.Snapshot()
	id, err := lm.db.SaveSnapshot(snap)
	if err != nil {
		return uuid.Nil, err
	}
	lm.logger.Info("library saved", "snapshot_id", id.String())
	return id, nil
}

// Close closes the underlying database, if any. It does not save.
func (lm *LibraryManager) Close() error {
	if lm.db == nil {
		return nil
	}
	return lm.db.Close()
}

// ------------------ Book helpers ------------------

// AddBook registers a title with copies copies, all of them available.
// Zero copies is allowed.
func (lm *LibraryManager) AddBook(title, author, isbn string, copies uint) BookID {
	lm.mu.Lock()
	id := lm.books.add(title, author, isbn, copies)
	lm.mu.Unlock()

	lm.logger.Debug("book added", "book_id", id, "copies", copies)
	return id
}

func (lm *LibraryManager) GetBook(id BookID) (Book, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	b, ok := lm.books.get(id)
	if !ok {
		return Book{}, ErrBookNotFound
	}
	return *b, nil
}

// UpdateBookCopies sets the total number of copies of a book.
//
// Growth becomes available immediately. Shrinking removes copies from the
// available pool only and never below zero; outstanding loans are not
// recalled. When more copies are on loan than the new total, the book is left
// with AvailableCopies == 0 and more outstanding loans than TotalCopies, and
// returning those loans later raises AvailableCopies past TotalCopies. This
// degraded state is accepted policy.
func (lm *LibraryManager) UpdateBookCopies(id BookID, newTotal uint) error {
	lm.mu.Lock()
	err := lm.books.updateCopies(id, newTotal)
	lm.mu.Unlock()

	if err != nil {
		lm.logger.Info("update copies rejected", "book_id", id, "error", err)
		return err
	}
	lm.logger.Debug("book copies updated", "book_id", id, "total", newTotal)
	return nil
}

// Books returns all books in id order.
func (lm *LibraryManager) Books() []Book {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.books.list()
}

// ------------------ Member helpers ------------------

func (lm *LibraryManager) AddMember(name, email string) MemberID {
	lm.mu.Lock()
	id := lm.members.add(name, email, lm.now())
	lm.mu.Unlock()

	lm.logger.Debug("member added", "member_id", id)
	return id
}

func (lm *LibraryManager) GetMember(id MemberID) (Member, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	m, ok := lm.members.get(id)
	if !ok {
		return Member{}, ErrMemberNotFound
	}
	return *m, nil
}

// Members returns all members in id order.
func (lm *LibraryManager) Members() []Member {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.members.list()
}

// ------------------ Circulation ------------------

// BorrowBook lends one copy of bookID to memberID, due LoanPeriod from now.
// It fails with ErrBookNotFound, ErrMemberNotFound or ErrNoCopiesAvailable
// and changes nothing in that case.
func (lm *LibraryManager) BorrowBook(bookID BookID, memberID MemberID) (BorrowID, error) {
	lm.mu.Lock()
	id, err := lm.ledger.lend(lm.books, lm.members, bookID, memberID, lm.now())
	lm.mu.Unlock()

	if err != nil {
		lm.logger.Info("borrow rejected", "book_id", bookID, "member_id", memberID, "error", err)
		return 0, err
	}
	lm.logger.Debug("book borrowed", "borrow_id", id, "book_id", bookID, "member_id", memberID)
	return id, nil
}

// ReturnBook closes the loan and puts the copy back. A second return of the
// same loan fails with ErrAlreadyReturned and changes nothing, so retrying
// is always safe.
func (lm *LibraryManager) ReturnBook(id BorrowID) error {
	lm.mu.Lock()
	rec, err := lm.ledger.giveBack(lm.books, id, lm.now())
	var bookID BookID
	if rec != nil {
		bookID = rec.BookID
	}
	lm.mu.Unlock()

	if err != nil {
		lm.logger.Info("return rejected", "borrow_id", id, "error", err)
		return err
	}
	lm.logger.Debug("book returned", "borrow_id", id, "book_id", bookID)
	return nil
}

func (lm *LibraryManager) GetBorrow(id BorrowID) (BorrowRecord, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	rec, ok := lm.ledger.get(id)
	if !ok {
		return BorrowRecord{}, ErrBorrowNotFound
	}
	return rec.clone(), nil
}

// Borrows returns every borrow record, returned or not, in insertion order.
func (lm *LibraryManager) Borrows() []BorrowRecord {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.ledger.list()
}

// ------------------ Queries ------------------

// BooksBorrowedByMember lists the book of every outstanding loan held by
// memberID, in borrow order. A book appears once per outstanding loan.
// Unknown members yield an empty list.
func (lm *LibraryManager) BooksBorrowedByMember(memberID MemberID) []BookID {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.ledger.outstandingBooksFor(memberID)
}

// OverdueBooks lists outstanding loans whose due date is before now.
func (lm *LibraryManager) OverdueBooks() []OverdueLoan {
	now := lm.now()
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.ledger.overdue(now)
}

func (lm *LibraryManager) Statistics() Statistics {
	now := lm.now()
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return statistics(lm.books, lm.members, lm.ledger, now)
}

// ------------------ Snapshots ------------------

// Snapshot returns a deep copy of the whole library state.
func (lm *LibraryManager) Snapshot() Snapshot {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return Snapshot{
		Books:        lm.books.list(),
		Members:      lm.members.list(),
		Borrows:      lm.ledger.list(),
		NextBookID:   lm.books.nextID,
		NextMemberID: lm.members.nextID,
		NextBorrowID: lm.ledger.nextID,
	}
}

// Restore replaces the library state with snap. On error the current state
// is left untouched.
func (lm *LibraryManager) Restore(snap Snapshot) error {
	books := newCatalog()
	if err := books.restore(snap.Books, snap.NextBookID); err != nil {
		return err
	}
	members := newMembership()
	if err := members.restore(snap.Members, snap.NextMemberID); err != nil {
		return err
	}
	ledger := newBorrowLedger()
	if err := ledger.restore(snap.Borrows, snap.NextBorrowID, books, members); err != nil {
		return err
	}

	lm.mu.Lock()
	lm.books, lm.members, lm.ledger = books, members, ledger
	lm.mu.Unlock()
	return nil
}

// ------------------ Utilities ------------------

// PrettyBook formats a book for lists.
func PrettyBook(b Book) string {
	return fmt.Sprintf("%-5d %-30s %-25s %-15s %5d/%-5d", b.ID, truncate(b.Title, 30), truncate(b.Author, 25), truncate(b.ISBN, 15), b.AvailableCopies, b.TotalCopies)
}

// PrettyMember formats a member for lists.
func PrettyMember(m Member) string {
	return fmt.Sprintf("%-5d %-30s %-30s %s", m.ID, truncate(m.Name, 30), truncate(m.Email, 30), m.JoinDate.Format(time.DateOnly))
}

// truncate shortens s to maxLen runes so multi-byte titles are never split.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
