package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/smazurov/vcompress/internal/config"
	"github.com/smazurov/vcompress/internal/logging"
	"github.com/smazurov/vcompress/internal/recommend"
	"github.com/smazurov/vcompress/internal/settings"
)

// CreateRecommendCmd creates the recommend command.
func CreateRecommendCmd() *cobra.Command {
	tc := DefaultToolchain()
	var (
		mono      bool
		outputDir string
		write     string
	)

	cmd := &cobra.Command{
		Use:   "recommend <file>...",
		Short: "Print a batch manifest with recommended settings",
		Long: `Probes each file and prints a TOML batch manifest whose per-file settings aim for ` +
			`an output of about 350 MiB. Files that cannot be probed keep the defaults. ` +
			`The manifest can be edited and passed to "vcompress run".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})
			cmd.SilenceUsage = true

			if err := tc.CheckProbe(); err != nil {
				return err
			}
			m, err := BuildRecommendedManifest(cmd.Context(), tc.Recommender(), settings.Defaults(tc.Hardware), args, mono, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			m.OutputDir = outputDir

			if write != "" {
				if err := m.Save(write); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", write)
				return nil
			}

			data, err := m.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&mono, "mono", false, "Prefer a mono downmix")
	flags.StringVarP(&outputDir, "output", "o", "", "output_dir written into the manifest")
	flags.StringVarP(&write, "write", "w", "", "Write the manifest to this file instead of stdout")
	flags.StringVar(&tc.FFprobe, "ffprobe", tc.FFprobe, "ffprobe binary")

	return cmd
}

// Recommender is the part of recommend.Engine the command needs.
type Recommender interface {
	Recommend(ctx context.Context, file string, base settings.Bundle, monoPref bool) (recommend.Recommendation, error)
}

// BuildRecommendedManifest recommends settings for every file. Probe
// failures are reported on warn and leave that file without settings.
func BuildRecommendedManifest(ctx context.Context, r Recommender, base settings.Bundle, files []string, mono bool, warn io.Writer) (*config.Manifest, error) {
	m := &config.Manifest{}
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return nil, err
		}
		entry := config.ManifestFile{Path: abs}

		rec, err := r.Recommend(ctx, abs, base, mono)
		if err != nil {
			_, _ = fmt.Fprintf(warn, "warning: %s: %v\n", file, err)
			m.Files = append(m.Files, entry)
			continue
		}
		for _, w := range rec.Warnings {
			_, _ = fmt.Fprintf(warn, "warning: %s: %s\n", file, w)
		}

		entry.Settings, err = config.BundleSettings(rec.Bundle)
		if err != nil {
			return nil, err
		}
		m.Files = append(m.Files, entry)
	}
	return m, nil
}
