package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-ledger/config"
	"library-ledger/library"
)

// app carries the state shared by every command once the library is open.
type app struct {
	cfg    config.FileConfig
	logger *slog.Logger
	mgr    *library.LibraryManager
}

// close releases the library. It is safe to call more than once.
func (a *app) close() error {
	if a.mgr == nil {
		return nil
	}
	err := a.mgr.Close()
	a.mgr = nil
	return err
}

func main() {
	a := &app{}
	if err := execute(a, newRootCmd(a)); err != nil {
		os.Exit(1)
	}
}

// execute runs root and closes the library afterwards, including when the
// command itself failed; cobra skips post-run hooks in that case.
func execute(a *app, root *cobra.Command) error {
	err := root.Execute()
	if cerr := a.close(); cerr != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error: close library:", cerr)
		err = errors.Join(err, cerr)
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	var (
		configPath string
		dbFile     string
	)

	root := &cobra.Command{
		Use:          "library",
		Short:        "Track a library's catalog, members and loans",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dbFile != "" {
				cfg.DBFile = dbFile
			}
			a.cfg = cfg
			a.logger = cfg.NewLogger(cmd.ErrOrStderr())

			mgr, err := library.OpenLibraryManager(cfg.DBFile, library.WithLogger(a.logger))
			if err != nil {
				return fmt.Errorf("open library %s: %w", cfg.DBFile, err)
			}
			a.mgr = mgr
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			interactive := term.IsTerminal(int(os.Stdin.Fd()))
			return a.repl(cmd.InOrStdin(), cmd.OutOrStdout(), interactive)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.ConfigPath, "path to the YAML config file")
	root.PersistentFlags().StringVar(&dbFile, "db", "", "SQLite database file (overrides config)")

	root.AddCommand(
		newStatsCmd(a),
		newOverdueCmd(a),
		newExportCmd(a),
	)
	return root
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print library statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printStatistics(cmd.OutOrStdout(), a.mgr.Statistics())
			return nil
		},
	}
}

func newOverdueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "List overdue loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printOverdue(cmd.OutOrStdout(), a.mgr.OverdueBooks())
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the whole library as JSON to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(a.mgr.Snapshot(), "", "  ")
			if err != nil {
				return fmt.Errorf("encode library: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

func printStatistics(w io.Writer, s library.Statistics) {
	fmt.Fprintf(w, "Titles in catalog:     %d\n", s.TotalBooks)
	fmt.Fprintf(w, "Registered members:    %d\n", s.TotalMembers)
	fmt.Fprintf(w, "Books in circulation:  %d\n", s.BooksInCirculation)
	fmt.Fprintf(w, "Overdue loans:         %d\n", s.OverdueBooksCount)
}

func printOverdue(w io.Writer, loans []library.OverdueLoan) {
	if len(loans) == 0 {
		fmt.Fprintln(w, "No overdue loans.")
		return
	}
	fmt.Fprintf(w, "%-8s %-8s %-8s %s\n", "Loan", "Book", "Member", "Due")
	fmt.Fprintln(w, strings.Repeat("-", 50))
	for _, l := range loans {
		fmt.Fprintf(w, "%-8d %-8d %-8d %s\n", l.BorrowID, l.BookID, l.MemberID, l.DueDate.Format("2006-01-02 15:04"))
	}
}
