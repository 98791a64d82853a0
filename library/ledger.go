package library

import (
	"fmt"
	"time"
)

// borrowLedger owns the BorrowRecords and is the only place that moves
// copies between the shelf and members. Every operation either applies both
// its ledger change and its catalog change or neither.
type borrowLedger struct {
	records []*BorrowRecord
	index   map[BorrowID]*BorrowRecord
	nextID  BorrowID
}

func newBorrowLedger() *borrowLedger {
	return &borrowLedger{index: make(map[BorrowID]*BorrowRecord)}
}

// lend validates book then member, checks availability and only then creates
// the record and takes a copy off the shelf.
func (l *borrowLedger) lend(books *catalog, members *membership, bookID BookID, memberID MemberID, now time.Time) (BorrowID, error) {
	book, ok := books.get(bookID)
	if !ok {
		return 0, ErrBookNotFound
	}
	if _, ok := members.get(memberID); !ok {
		return 0, ErrMemberNotFound
	}
	if book.AvailableCopies == 0 {
		return 0, ErrNoCopiesAvailable
	}

	id := l.nextID
	l.nextID++
	rec := &BorrowRecord{
		ID:         id,
		BookID:     bookID,
		MemberID:   memberID,
		BorrowDate: now,
		DueDate:    now.Add(LoanPeriod),
	}
	l.records = append(l.records, rec)
	l.index[id] = rec
	book.AvailableCopies--
	return id, nil
}

// giveBack closes an outstanding record and puts the copy back on the shelf.
// A returned record is terminal.
func (l *borrowLedger) giveBack(books *catalog, id BorrowID, now time.Time) (*BorrowRecord, error) {
	rec, ok := l.index[id]
	if !ok {
		return nil, ErrBorrowNotFound
	}
	if !rec.Outstanding() {
		return nil, ErrAlreadyReturned
	}
	book, ok := books.get(rec.BookID)
	if !ok {
		// Books are never deleted, so this only happens with a hand-built snapshot.
		return nil, fmt.Errorf("borrow %d references %w", id, ErrBookNotFound)
	}

	returned := now
	rec.ReturnDate = &returned
	book.AvailableCopies = addCopies(book.AvailableCopies, 1)
	return rec, nil
}

func (l *borrowLedger) get(id BorrowID) (*BorrowRecord, bool) {
	rec, ok := l.index[id]
	return rec, ok
}

// list returns copies of all records in insertion order.
func (l *borrowLedger) list() []BorrowRecord {
	out := make([]BorrowRecord, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec.clone())
	}
	return out
}

func (l *borrowLedger) restore(records []BorrowRecord, nextID BorrowID, books *catalog, members *membership) error {
	l.records = make([]*BorrowRecord, 0, len(records))
	l.index = make(map[BorrowID]*BorrowRecord, len(records))
	for i := range records {
		rec := records[i].clone()
		if rec.ID < 0 || rec.ID >= nextID {
			return errInvalidID("borrow", int64(rec.ID), int64(nextID))
		}
		if _, dup := l.index[rec.ID]; dup {
			return errDuplicateID("borrow", int64(rec.ID))
		}
		if _, ok := books.get(rec.BookID); !ok {
			return fmt.Errorf("%w: borrow %d references unknown book %d", ErrInvalidSnapshot, rec.ID, rec.BookID)
		}
		if _, ok := members.get(rec.MemberID); !ok {
			return fmt.Errorf("%w: borrow %d references unknown member %d", ErrInvalidSnapshot, rec.ID, rec.MemberID)
		}
		l.records = append(l.records, &rec)
		l.index[rec.ID] = &rec
	}
	l.nextID = nextID
	return nil
}

func (r BorrowRecord) clone() BorrowRecord {
	if r.ReturnDate != nil {
		t := *r.ReturnDate
		r.ReturnDate = &t
	}
	return r
}
