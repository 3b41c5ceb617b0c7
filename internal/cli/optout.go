package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tallybot/tallybot/internal/config"
	"github.com/tallybot/tallybot/internal/optout"
	"github.com/tallybot/tallybot/internal/storage"
)

// OptOutOptions holds flags for the optout command group.
type OptOutOptions struct {
	*RootOptions
	OptOutFile string
}

// NewOptOutCommand creates the optout command group.
//
// These commands edit the opt-out table offline - the same table the live
// bot reads at startup. Remove has no slash command equivalent, so this is
// the only way back onto the tally.
func NewOptOutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OptOutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "optout",
		Short: "Manage the opt-out list",
	}

	cmd.PersistentFlags().StringVar(&opts.OptOutFile, "optout-file", "", "path to the opt-out CSV (default: $TALLYBOT_OPTOUT_FILE or "+config.DefaultOptOutFile+")")

	cmd.AddCommand(newOptOutAddCommand(opts))
	cmd.AddCommand(newOptOutRemoveCommand(opts))
	cmd.AddCommand(newOptOutListCommand(opts))

	return cmd
}

func newOptOutAddCommand(opts *OptOutOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "add <user-id>",
		Short:         "Add a user to the opt-out list",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, userID, err := loadRegistry(opts, args[0])
			if err != nil {
				return err
			}
			added, err := registry.Add(userID)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to save opt-out list", err)
			}
			formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			if !added {
				return formatter.Success(fmt.Sprintf("user %d already ignored", userID))
			}
			return formatter.Success(fmt.Sprintf("user %d ignored", userID))
		},
	}
}

func newOptOutRemoveCommand(opts *OptOutOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <user-id>",
		Short:         "Remove a user from the opt-out list",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, userID, err := loadRegistry(opts, args[0])
			if err != nil {
				return err
			}
			removed, err := registry.Remove(userID)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to save opt-out list", err)
			}
			formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			if !removed {
				return formatter.Success(fmt.Sprintf("user %d not ignored", userID))
			}
			return formatter.Success(fmt.Sprintf("user %d no longer ignored", userID))
		},
	}
}

func newOptOutListCommand(opts *OptOutOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List opted-out user IDs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := storage.NewCSVStore(config.DefaultTallyFile, optOutPath(opts))
			userIDs, err := store.LoadOptOuts()
			if err != nil {
				return WrapExitError(ExitFailure, "failed to load opt-out list", err)
			}
			formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			if opts.Format == "json" {
				return formatter.Success(userIDs)
			}
			if len(userIDs) == 0 {
				return formatter.Success("no opted-out users")
			}
			for _, id := range userIDs {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

// loadRegistry builds a Registry over the opt-out file and parses the
// user ID argument.
func loadRegistry(opts *OptOutOptions, rawID string) (*optout.Registry, int64, error) {
	userID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid user id %q", rawID), err)
	}

	store := storage.NewCSVStore(config.DefaultTallyFile, optOutPath(opts))
	userIDs, err := store.LoadOptOuts()
	if err != nil {
		return nil, 0, WrapExitError(ExitFailure, "failed to load opt-out list", err)
	}
	return optout.New(store, userIDs), userID, nil
}

func optOutPath(opts *OptOutOptions) string {
	if opts.OptOutFile != "" {
		return opts.OptOutFile
	}
	if v := os.Getenv(config.EnvOptOutFile); v != "" {
		return v
	}
	return config.DefaultOptOutFile
}
