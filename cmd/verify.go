package cmd

import (
	"context"

	"VelArchiver/internal/restore"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	verifyExtract string
	verifyDryRun  bool
)

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVar(&verifyExtract, "extract", "", "Extract the archive into this directory after verification")
	verifyCmd.Flags().BoolVar(&verifyDryRun, "dry-run", false, "With --extract, only count the entries that would be written")
}

var verifyCmd = &cobra.Command{
	Use:   "verify <archive-or-manifest-key>",
	Short: "Download an archive and check it against its manifest",
	Long:  "Verify downloads the archive, checks its digest and every entry checksum against the manifest, and optionally restores the files under --extract.",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	manifestKey, err := restore.ManifestKeyFor(args[0])
	if err != nil {
		return err
	}
	target, err := newTargetClient(ctx, cfg)
	if err != nil {
		return err
	}

	res, err := restore.Verify(ctx, target, manifestKey, restore.Options{
		SpoolDir:   cfg.Archive.SpoolDir,
		ExtractDir: verifyExtract,
		DryRun:     verifyDryRun,
	})
	if err != nil {
		return err
	}
	cmd.Printf("%s OK: %d entries, %s\n", res.Manifest.ArchiveKey, res.Verified, humanize.IBytes(uint64(max(res.Manifest.TotalBytes(), 0))))
	if verifyExtract != "" {
		verb := "Extracted"
		if verifyDryRun {
			verb = "Would extract"
		}
		cmd.Printf("%s %d files to %s\n", verb, res.Extracted, verifyExtract)
	}
	return nil
}
