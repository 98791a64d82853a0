package library

import "math"

// catalog owns the Book records. Ids come from nextID, never from len(books).
type catalog struct {
	books  map[BookID]*Book
	nextID BookID
}

func newCatalog() *catalog {
	return &catalog{books: make(map[BookID]*Book)}
}

func (c *catalog) add(title, author, isbn string, copies uint) BookID {
	id := c.nextID
	c.nextID++
	c.books[id] = &Book{
		ID:              id,
		Title:           title,
		Author:          author,
		ISBN:            isbn,
		TotalCopies:     copies,
		AvailableCopies: copies,
	}
	return id
}

func (c *catalog) get(id BookID) (*Book, bool) {
	b, ok := c.books[id]
	return b, ok
}

// updateCopies revises the total. Growth is immediately available. A shrink
// is taken from the available pool only and floors at zero; copies already
// on loan are not recalled, so after a large shrink the number of outstanding
// loans may exceed TotalCopies.
func (c *catalog) updateCopies(id BookID, newTotal uint) error {
	b, ok := c.books[id]
	if !ok {
		return ErrBookNotFound
	}
	if newTotal > b.TotalCopies {
		b.AvailableCopies = addCopies(b.AvailableCopies, newTotal-b.TotalCopies)
	} else {
		b.AvailableCopies -= min(b.TotalCopies-newTotal, b.AvailableCopies)
	}
	b.TotalCopies = newTotal
	return nil
}

func (c *catalog) len() int { return len(c.books) }

// list returns copies of all books in id order.
func (c *catalog) list() []Book {
	out := make([]Book, 0, len(c.books))
	for id := BookID(0); id < c.nextID; id++ {
		if b, ok := c.books[id]; ok {
			out = append(out, *b)
		}
	}
	return out
}

func (c *catalog) restore(books []Book, nextID BookID) error {
	c.books = make(map[BookID]*Book, len(books))
	for i := range books {
		b := books[i]
		if b.ID < 0 || b.ID >= nextID {
			return errInvalidID("book", int64(b.ID), int64(nextID))
		}
		if _, dup := c.books[b.ID]; dup {
			return errDuplicateID("book", int64(b.ID))
		}
		c.books[b.ID] = &b
	}
	c.nextID = nextID
	return nil
}

// addCopies adds without wrapping. After a shrink below the outstanding loans
// AvailableCopies can exceed TotalCopies, so growth may overflow otherwise.
func addCopies(a, b uint) uint {
	if a > math.MaxUint-b {
		return math.MaxUint
	}
	return a + b
}
