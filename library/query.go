package library

import "time"

// Read-only derivations over the ledger and catalog. None of these mutate.

func (l *borrowLedger) outstandingBooksFor(memberID MemberID) []BookID {
	books := []BookID{}
	for _, rec := range l.records {
		if rec.MemberID == memberID && rec.Outstanding() {
			books = append(books, rec.BookID)
		}
	}
	return books
}

func (l *borrowLedger) overdue(now time.Time) []OverdueLoan {
	loans := []OverdueLoan{}
	for _, rec := range l.records {
		if rec.OverdueAt(now) {
			loans = append(loans, OverdueLoan{
				BorrowID: rec.ID,
				BookID:   rec.BookID,
				MemberID: rec.MemberID,
				DueDate:  rec.DueDate,
			})
		}
	}
	return loans
}

// circulation counts outstanding and overdue records in a single pass.
func (l *borrowLedger) circulation(now time.Time) (outstanding, overdue int) {
	for _, rec := range l.records {
		if !rec.Outstanding() {
			continue
		}
		outstanding++
		if rec.DueDate.Before(now) {
			overdue++
		}
	}
	return outstanding, overdue
}

func statistics(books *catalog, members *membership, ledger *borrowLedger, now time.Time) Statistics {
	inCirculation, overdue := ledger.circulation(now)
	return Statistics{
		TotalBooks:         books.len(),
		TotalMembers:       members.len(),
		BooksInCirculation: inCirculation,
		OverdueBooksCount:  overdue,
	}
}
