// Package cli implements the bpb command line: offline reply parsing,
// illustration lookups, transcript inspection and one-shot coach turns
// against the same SQLite database the server uses.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ashureev/bpb-coach/internal/store"
	"github.com/spf13/cobra"
)

var (
	dbPath     string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "bpb",
	Short:         "Build Perfect Body coach tools",
	Long:          "Command line companion to the BPB coaching server. Reads and writes the server's SQLite database.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $DB_PATH or ./data/bpb.db)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("DB_PATH"); env != "" {
		return env
	}
	return "./data/bpb.db"
}

func openStore() (store.Repository, error) {
	return store.NewSQLite(getDBPath())
}

func textOutput() bool {
	return formatFlag == "text"
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
