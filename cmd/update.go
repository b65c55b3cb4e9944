package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/smazurov/vcompress/internal/logging"
	"github.com/smazurov/vcompress/internal/updater"
	"github.com/smazurov/vcompress/internal/version"
)

// CreateUpdateCmd creates the update command.
func CreateUpdateCmd() *cobra.Command {
	var (
		opts     updater.Options
		check    bool
		rollback bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update vcompress to the latest release",
		Long: `Downloads the latest GitHub release and replaces the running binary. ` +
			`The previous binary is kept as a backup and restored if installing fails; ` +
			`--rollback restores it on demand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "info", Format: "text"})
			cmd.SilenceUsage = true

			svc, err := updater.NewService(opts)
			if err != nil {
				return err
			}
			if !svc.IsEnabled() {
				return fmt.Errorf("cannot update: %s", svc.DisabledReason())
			}

			out := cmd.OutOrStdout()
			switch {
			case rollback:
				if err := svc.Rollback(cmd.Context()); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(out, "Rolled back to the previous binary")
				return nil
			case check:
				info, err := svc.CheckForUpdate(cmd.Context())
				if err != nil {
					return err
				}
				printUpdateInfo(out, info)
				return nil
			}

			info, err := svc.ApplyUpdate(cmd.Context())
			if updater.IsCode(err, updater.ErrCodeNoUpdate) {
				_, _ = fmt.Fprintf(out, "Already up to date (%s)\n", version.Version)
				return nil
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "Updated %s -> %s\n", info.CurrentVersion, info.LatestVersion)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&check, "check", false, "Only report whether a newer release exists")
	flags.BoolVar(&rollback, "rollback", false, "Restore the binary saved by the last update")
	flags.BoolVar(&opts.Prerelease, "prerelease", false, "Consider prereleases")
	flags.StringVar(&opts.Repository, "repository", updater.DefaultRepository, "GitHub owner/name to fetch releases from")
	cmd.MarkFlagsMutuallyExclusive("check", "rollback")

	return cmd
}

func printUpdateInfo(w io.Writer, info *updater.UpdateInfo) {
	if !info.UpdateAvailable {
		_, _ = fmt.Fprintf(w, "Up to date: %s is the latest release\n", info.CurrentVersion)
		return
	}
	_, _ = fmt.Fprintf(w, "Update available: %s -> %s\n", info.CurrentVersion, info.LatestVersion)
	if info.ReleaseURL != "" {
		_, _ = fmt.Fprintf(w, "  %s\n", info.ReleaseURL)
	}
	if !info.PublishedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "  published %s\n", info.PublishedAt.Format("2006-01-02"))
	}
}
