package main

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-ledger/library"
)

// runCLI executes the root command against a database in dir.
func runCLI(t *testing.T, dir, stdin string, args ...string) string {
	t.Helper()
	out, _, err := executeCLI(&app{}, dir, stdin, args...)
	require.NoError(t, err)
	return out
}

func executeCLI(a *app, dir, stdin string, args ...string) (string, string, error) {
	var out, logs bytes.Buffer
	cmd := newRootCmd(a)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(append(args,
		"--config", filepath.Join(dir, "absent.yaml"),
		"--db", filepath.Join(dir, "library.db"),
	))
	err := execute(a, cmd)
	return out.String(), logs.String(), err
}

func TestREPLLendingSession(t *testing.T) {
	dir := t.TempDir()

	out := runCLI(t, dir, strings.Join([]string{
		"add book", "Dune", "Herbert", "978-0", "1",
		"add member", "Alice", "a@x.com",
		"borrow", "0", "0",
		"borrow", "0", "0",
		"loans", "0",
		"return", "0",
		"return", "0",
		"stats",
		"exit",
	}, "\n"))

	assert.Contains(t, out, "Added book ID 0 with 1 copies.")
	assert.Contains(t, out, "Added member 'Alice' with ID 0")
	assert.Contains(t, out, "Loan 0 created")
	assert.Contains(t, out, "Error borrowing book: precondition failed: no copies available")
	assert.Contains(t, out, "Member 0 has 1 book(s) on loan:")
	assert.Contains(t, out, "Loan 0 returned.")
	assert.Contains(t, out, "Error returning book: precondition failed: book already returned")
	assert.Contains(t, out, "Books in circulation:  0")
	assert.Contains(t, out, "Goodbye!")
}

func TestAutosavePersistsBetweenRuns(t *testing.T) {
	dir := t.TempDir()
	runCLI(t, dir, "add book\nDune\nHerbert\n978-0\n2\nadd member\nAlice\na@x.com\nborrow\n0\n0\n")

	out := runCLI(t, dir, "", "export")

	var snap library.Snapshot
	require.NoError(t, jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal([]byte(out), &snap))
	require.Len(t, snap.Books, 1)
	assert.Equal(t, uint(1), snap.Books[0].AvailableCopies)
	require.Len(t, snap.Borrows, 1)
	assert.True(t, snap.Borrows[0].Outstanding())
	assert.Equal(t, library.BorrowID(1), snap.NextBorrowID)
}

func TestStatsAndOverdueCommands(t *testing.T) {
	dir := t.TempDir()
	runCLI(t, dir, "add book\nDune\nHerbert\n978-0\n2\n")

	out := runCLI(t, dir, "", "stats")
	assert.Contains(t, out, "Titles in catalog:     1")
	assert.Contains(t, out, "Registered members:    0")

	out = runCLI(t, dir, "", "overdue")
	assert.Contains(t, out, "No overdue loans.")
}

func TestREPLRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	out := runCLI(t, dir, "get book\nabc\nget book\n4\nfly\n")

	assert.Contains(t, out, "Invalid number: abc")
	assert.Contains(t, out, "Error: book not found")
	assert.Contains(t, out, "Unknown command.")
}

func TestFailedCommandStillClosesLibrary(t *testing.T) {
	dir := t.TempDir()
	runCLI(t, dir, "add book\nDune\nHerbert\n978-0\n1\n")

	a := &app{}
	overlong := strings.Repeat("x", bufio.MaxScanTokenSize+1)
	_, _, err := executeCLI(a, dir, overlong+"\n")
	require.ErrorIs(t, err, bufio.ErrTooLong)
	assert.Nil(t, a.mgr)
	assert.NoError(t, a.close())

	out := runCLI(t, dir, "", "stats")
	assert.Contains(t, out, "Titles in catalog:     1")
}
