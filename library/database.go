package library

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/blake2b"
)

// ErrSnapshotCorrupt is returned when the stored rows do not match the
// checksum recorded with them.
var ErrSnapshotCorrupt = errors.New("stored snapshot is corrupt")

const (
	dialectSQLite = "sqlite3"

	metaSchemaVersion = "schema_version"
	metaNextBookID    = "next_book_id"
	metaNextMemberID  = "next_member_id"
	metaNextBorrowID  = "next_borrow_id"
	metaSnapshotID    = "snapshot_id"
	metaChecksum      = "checksum"
	metaSavedAt       = "saved_at"

	// keeps each INSERT well under SQLite's bound-parameter limit
	insertBatchSize = 100
)

// MaxStoredCopies is the largest copy count SQLite's signed INTEGER can hold.
const MaxStoredCopies = math.MaxInt64

// Database persists library snapshots in SQLite. It is a collaborator of
// LibraryManager and is never touched while a mutation is in progress.
type Database struct {
	db *sqlx.DB
}

// NewDatabase opens (or creates) the SQLite database at dbPath and applies
// schema migrations.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Enable busy_timeout and foreign keys.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Database{db: db}, nil
}

// Close closes the DB.
func (d *Database) Close() error { return d.db.Close() }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sqlx.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key=?;`, metaSchemaVersion).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            isbn TEXT NOT NULL,
            total_copies INTEGER NOT NULL,
            available_copies INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS members (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL,
            join_date DATETIME NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS borrows (
            id INTEGER PRIMARY KEY,
            book_id INTEGER NOT NULL REFERENCES books(id),
            member_id INTEGER NOT NULL REFERENCES members(id),
            borrow_date DATETIME NOT NULL,
            due_date DATETIME NOT NULL,
            return_date DATETIME
        );`,
		`CREATE INDEX IF NOT EXISTS idx_borrows_member ON borrows(member_id);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES(?,?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, metaSchemaVersion, schemaVersion); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

type borrowRow struct {
	ID         BorrowID     `db:"id"`
	BookID     BookID       `db:"book_id"`
	MemberID   MemberID     `db:"member_id"`
	BorrowDate time.Time    `db:"borrow_date"`
	DueDate    time.Time    `db:"due_date"`
	ReturnDate sql.NullTime `db:"return_date"`
}

type metaRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// SaveSnapshot replaces the stored state with snap in one transaction and
// returns the id assigned to this save.
func (d *Database) SaveSnapshot(snap Snapshot) (uuid.UUID, error) {
	for _, b := range snap.Books {
		if uint64(b.TotalCopies) > MaxStoredCopies || uint64(b.AvailableCopies) > MaxStoredCopies {
			return uuid.Nil, fmt.Errorf("%w: book %d has %d/%d copies, limit %d",
				ErrCopiesOutOfRange, b.ID, b.AvailableCopies, b.TotalCopies, uint64(MaxStoredCopies))
		}
	}
	snap = normalizeSnapshot(snap)
	sum, err := checksum(snap)
	if err != nil {
		return uuid.Nil, err
	}
	snapshotID := uuid.New()

	tx, err := d.db.Beginx()
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback()

	// children first so the foreign keys hold throughout
	for _, table := range []string{"borrows", "members", "books"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return uuid.Nil, fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM meta WHERE key <> ?`, metaSchemaVersion); err != nil {
		return uuid.Nil, fmt.Errorf("clear meta: %w", err)
	}

	books := make([]any, 0, len(snap.Books))
	for _, b := range snap.Books {
		books = append(books, goqu.Record{
			"id":               b.ID,
			"title":            b.Title,
			"author":           b.Author,
			"isbn":             b.ISBN,
			"total_copies":     b.TotalCopies,
			"available_copies": b.AvailableCopies,
		})
	}
	members := make([]any, 0, len(snap.Members))
	for _, m := range snap.Members {
		members = append(members, goqu.Record{
			"id":        m.ID,
			"name":      m.Name,
			"email":     m.Email,
			"join_date": m.JoinDate,
		})
	}
	borrows := make([]any, 0, len(snap.Borrows))
	for _, r := range snap.Borrows {
		var returned sql.NullTime
		if r.ReturnDate != nil {
			returned = sql.NullTime{Time: *r.ReturnDate, Valid: true}
		}
		borrows = append(borrows, goqu.Record{
			"id":          r.ID,
			"book_id":     r.BookID,
			"member_id":   r.MemberID,
			"borrow_date": r.BorrowDate,
			"due_date":    r.DueDate,
			"return_date": returned,
		})
	}
	meta := []any{
		goqu.Record{"key": metaNextBookID, "value": strconv.FormatInt(int64(snap.NextBookID), 10)},
		goqu.Record{"key": metaNextMemberID, "value": strconv.FormatInt(int64(snap.NextMemberID), 10)},
		goqu.Record{"key": metaNextBorrowID, "value": strconv.FormatInt(int64(snap.NextBorrowID), 10)},
		goqu.Record{"key": metaSnapshotID, "value": snapshotID.String()},
		goqu.Record{"key": metaChecksum, "value": sum},
		goqu.Record{"key": metaSavedAt, "value": time.Now().UTC().Format(time.RFC3339Nano)},
	}

	for _, batch := range []struct {
		table string
		rows  []any
	}{
		{"books", books},
		{"members", members},
		{"borrows", borrows},
		{"meta", meta},
	} {
		if err := insertRows(tx, batch.table, batch.rows); err != nil {
			return uuid.Nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, err
	}
	return snapshotID, nil
}

func insertRows(tx *sqlx.Tx, table string, rows []any) error {
	dialect := goqu.Dialect(dialectSQLite)
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		query, args, err := dialect.Insert(table).Prepared(true).Rows(rows[start:end]...).ToSQL()
		if err != nil {
			return fmt.Errorf("build insert into %s: %w", table, err)
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	return nil
}

// LoadSnapshot reads the stored state. A database that has never been saved
// to yields an empty snapshot.
func (d *Database) LoadSnapshot() (Snapshot, error) {
	meta, err := d.readMeta()
	if err != nil {
		return Snapshot{}, err
	}
	if _, saved := meta[metaChecksum]; !saved {
		return Snapshot{}, nil
	}

	var snap Snapshot
	if snap.NextBookID, err = metaID[BookID](meta, metaNextBookID); err != nil {
		return Snapshot{}, err
	}
	if snap.NextMemberID, err = metaID[MemberID](meta, metaNextMemberID); err != nil {
		return Snapshot{}, err
	}
	if snap.NextBorrowID, err = metaID[BorrowID](meta, metaNextBorrowID); err != nil {
		return Snapshot{}, err
	}

	if err := d.db.Select(&snap.Books, `SELECT id,title,author,isbn,total_copies,available_copies FROM books ORDER BY id`); err != nil {
		return Snapshot{}, fmt.Errorf("load books: %w", err)
	}
	if err := d.db.Select(&snap.Members, `SELECT id,name,email,join_date FROM members ORDER BY id`); err != nil {
		return Snapshot{}, fmt.Errorf("load members: %w", err)
	}
	var rows []borrowRow
	if err := d.db.Select(&rows, `SELECT id,book_id,member_id,borrow_date,due_date,return_date FROM borrows ORDER BY id`); err != nil {
		return Snapshot{}, fmt.Errorf("load borrows: %w", err)
	}
	for _, row := range rows {
		rec := BorrowRecord{
			ID:         row.ID,
			BookID:     row.BookID,
			MemberID:   row.MemberID,
			BorrowDate: row.BorrowDate,
			DueDate:    row.DueDate,
		}
		if row.ReturnDate.Valid {
			t := row.ReturnDate.Time
			rec.ReturnDate = &t
		}
		snap.Borrows = append(snap.Borrows, rec)
	}

	snap = normalizeSnapshot(snap)
	sum, err := checksum(snap)
	if err != nil {
		return Snapshot{}, err
	}
	if sum != meta[metaChecksum] {
		return Snapshot{}, fmt.Errorf("%w: checksum %s, stored %s", ErrSnapshotCorrupt, sum, meta[metaChecksum])
	}
	return snap, nil
}

// LastSnapshotID returns the id of the most recent save, or uuid.Nil if the
// database has never been saved to.
func (d *Database) LastSnapshotID() (uuid.UUID, error) {
	var value string
	err := d.db.Get(&value, `SELECT value FROM meta WHERE key=?`, metaSnapshotID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(value)
}

func (d *Database) readMeta() (map[string]string, error) {
	var rows []metaRow
	if err := d.db.Select(&rows, `SELECT key,value FROM meta`); err != nil {
		return nil, fmt.Errorf("load meta: %w", err)
	}
	meta := make(map[string]string, len(rows))
	for _, row := range rows {
		meta[row.Key] = row.Value
	}
	return meta, nil
}

func metaID[T ~int64](meta map[string]string, key string) (T, error) {
	n, err := strconv.ParseInt(meta[key], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: meta %s: %v", ErrSnapshotCorrupt, key, err)
	}
	return T(n), nil
}

// normalizeSnapshot puts a snapshot in the shape it has after a round trip
// through SQLite: UTC times and non-nil slices.
func normalizeSnapshot(snap Snapshot) Snapshot {
	out := snap
	out.Books = append(make([]Book, 0, len(snap.Books)), snap.Books...)
	out.Members = make([]Member, 0, len(snap.Members))
	for _, m := range snap.Members {
		m.JoinDate = m.JoinDate.UTC()
		out.Members = append(out.Members, m)
	}
	out.Borrows = make([]BorrowRecord, 0, len(snap.Borrows))
	for _, r := range snap.Borrows {
		r = r.clone()
		r.BorrowDate = r.BorrowDate.UTC()
		r.DueDate = r.DueDate.UTC()
		if r.ReturnDate != nil {
			t := r.ReturnDate.UTC()
			r.ReturnDate = &t
		}
		out.Borrows = append(out.Borrows, r)
	}
	return out
}

func checksum(snap Snapshot) (string, error) {
	payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
