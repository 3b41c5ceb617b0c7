package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tallybot/tallybot/internal/config"
	"github.com/tallybot/tallybot/internal/storage"
	"github.com/tallybot/tallybot/internal/tally"
)

// TopOptions holds flags for the top command.
type TopOptions struct {
	*RootOptions
	TallyFile string
	Limit     int
}

// LeaderboardRow is one rendered leaderboard position (JSON output).
type LeaderboardRow struct {
	Rank   int    `json:"rank"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Count  int64  `json:"count"`
}

// NewTopCommand creates the top command.
func NewTopCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TopOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the reaction leaderboard",
		Long: `Read the tally table and print authors ranked by reactions received.

Ties rank by user ID so output is stable across runs.

Example:
  tallybot top
  tallybot top --limit 10 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTop(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.TallyFile, "tally-file", "", "path to the tally CSV (default: $TALLYBOT_TALLY_FILE or "+config.DefaultTallyFile+")")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most N rows (0 = all)")

	return cmd
}

func runTop(opts *TopOptions, cmd *cobra.Command) error {
	path := opts.TallyFile
	if path == "" {
		path = os.Getenv(config.EnvTallyFile)
	}
	if path == "" {
		path = config.DefaultTallyFile
	}

	store := storage.NewCSVStore(path, config.DefaultOptOutFile)
	tallies, err := store.LoadTallies()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load tally table", err)
	}

	rows := rankTallies(tallies, opts.Limit)
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return formatter.Success(rows)
	}
	return formatter.Success(renderLeaderboard(rows))
}

// rankTallies sorts by count descending, user ID ascending, applies the
// limit, and assigns 1-based ranks.
func rankTallies(tallies []tally.Tally, limit int) []LeaderboardRow {
	sorted := make([]tally.Tally, len(tallies))
	copy(sorted, tallies)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		return sorted[i].UserID < sorted[j].UserID
	})

	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}

	rows := make([]LeaderboardRow, 0, len(sorted))
	for i, entry := range sorted {
		rows = append(rows, LeaderboardRow{
			Rank:   i + 1,
			UserID: entry.UserID,
			Name:   entry.DisplayName,
			Count:  entry.Count,
		})
	}
	return rows
}

// renderLeaderboard formats rows as a fixed-width text table.
func renderLeaderboard(rows []LeaderboardRow) string {
	if len(rows) == 0 {
		return "No reactions recorded yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%4s  %-20s  %-24s  %9s\n", "Rank", "User ID", "Name", "Reactions")
	for _, row := range rows {
		fmt.Fprintf(&b, "%4d  %-20d  %-24s  %9d\n", row.Rank, row.UserID, row.Name, row.Count)
	}
	return strings.TrimRight(b.String(), "\n")
}
