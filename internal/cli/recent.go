package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tallybot/tallybot/internal/config"
	"github.com/tallybot/tallybot/internal/journal"
)

// RecentOptions holds flags for the recent command.
type RecentOptions struct {
	*RootOptions
	JournalFile string
	Limit       int
}

// NewRecentCommand creates the recent command, the read side of the
// reaction journal.
func NewRecentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show recently counted reactions from the journal",
		Long: `Read the reaction journal and print the most recently counted
reactions, newest first. Requires a journal to be configured.

Example:
  tallybot recent --journal-file ./reactions.db --limit 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecent(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.JournalFile, "journal-file", "", "path to the journal database (default: $TALLYBOT_JOURNAL_FILE)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "show at most N entries")

	return cmd
}

func runRecent(opts *RecentOptions, cmd *cobra.Command) error {
	path := opts.JournalFile
	if path == "" {
		path = os.Getenv(config.EnvJournalFile)
	}
	if path == "" {
		return NewExitError(ExitCommandError, "no journal configured: set --journal-file or "+config.EnvJournalFile)
	}

	j, err := journal.Open(path)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open journal", err)
	}
	defer j.Close()

	entries, err := j.Recent(cmd.Context(), opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read journal", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return formatter.Success(entries)
	}
	return formatter.Success(renderEntries(entries))
}

func renderEntries(entries []journal.Entry) string {
	if len(entries) == 0 {
		return "journal is empty"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%6s  %-20s  %-20s  %-20s  %5s\n", "Seq", "Message", "Author", "Reactor", "Delta")
	for _, e := range entries {
		fmt.Fprintf(&b, "%6d  %-20d  %-20d  %-20d  %5d\n", e.Seq, e.MessageID, e.AuthorID, e.ReactorID, e.Delta)
	}
	return strings.TrimRight(b.String(), "\n")
}
