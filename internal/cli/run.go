package cli

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tallybot/tallybot/internal/config"
	"github.com/tallybot/tallybot/internal/discord"
	"github.com/tallybot/tallybot/internal/journal"
	"github.com/tallybot/tallybot/internal/optout"
	"github.com/tallybot/tallybot/internal/storage"
	"github.com/tallybot/tallybot/internal/tally"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigFile string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the reaction tally bot",
		Long: `Start the bot: connect to the Discord gateway, count reactions,
and persist tallies and the opt-out list to CSV.

Configuration comes from TALLYBOT_* environment variables, optionally
layered over a YAML file. TALLYBOT_TOKEN is required.

Example:
  TALLYBOT_TOKEN=... tallybot run
  tallybot run --config /etc/tallybot.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "path to YAML config file (optional)")

	return cmd
}

func runBot(opts *RunOptions) error {
	configureLogging(opts.Verbose)

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "configuration failed", err)
	}

	store := storage.NewCSVStore(cfg.TallyFile, cfg.OptOutFile)

	// Load failures are not fatal: the affected table starts empty for this
	// run and the save path recreates the file on the next mutation.
	tallies, err := store.LoadTallies()
	if err != nil {
		slog.Error("tally load failed, starting empty", "path", cfg.TallyFile, "error", err)
		tallies = nil
	}
	optOutIDs, err := store.LoadOptOuts()
	if err != nil {
		slog.Error("opt-out load failed, starting empty", "path", cfg.OptOutFile, "error", err)
		optOutIDs = nil
	}
	slog.Info("tables loaded", "tallies", len(tallies), "opt_outs", len(optOutIDs))

	registry := optout.New(store, optOutIDs)

	bot, err := discord.New(cfg.Token, cfg.GuildID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create gateway session", err)
	}

	trackerOpts := []tally.Option{
		tally.WithInitial(tallies),
		tally.WithIncrement(cfg.Increment),
		tally.WithResolver(discord.NewResolver(bot.Session())),
	}

	// The journal is optional and strictly supplementary: an open failure
	// disables it for this run instead of stopping the bot.
	if cfg.JournalFile != "" {
		j, err := journal.Open(cfg.JournalFile)
		if err != nil {
			slog.Error("journal open failed, journaling disabled", "path", cfg.JournalFile, "error", err)
		} else {
			defer func() {
				if closeErr := j.Close(); closeErr != nil {
					slog.Error("journal close failed", "error", closeErr)
				}
			}()
			trackerOpts = append(trackerOpts, tally.WithJournal(j))
			slog.Info("journal open", "path", cfg.JournalFile)
		}
	}

	tracker := tally.New(store, registry, trackerOpts...)
	bot.Bind(tracker, registry)

	if err := bot.Start(); err != nil {
		return WrapExitError(ExitCommandError, "failed to connect to gateway", err)
	}
	defer func() {
		if closeErr := bot.Close(); closeErr != nil {
			slog.Error("gateway close failed", "error", closeErr)
		}
	}()
	slog.Info("bot running", "increment", cfg.Increment, "guild_id", cfg.GuildID)

	// Block until interrupted. Event handling happens on the session's
	// goroutines; every delivered event runs to completion.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	slog.Info("received signal, shutting down", "signal", sig)
	return nil
}

// configureLogging installs the process-wide slog handler.
func configureLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}
