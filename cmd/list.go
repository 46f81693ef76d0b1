package cmd

import (
	"context"
	"path"
	"slices"
	"strings"

	"VelArchiver/internal/restore"
	"VelArchiver/internal/s3"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	listDate  string
	listLimit int
)

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listDate, "date", "", "Only list archives of one day or month (YYYY/MM/DD or YYYY/MM)")
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Show at most this many archives, newest first (0 = all)")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List archives in the target with entry counts and sizes",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	target, err := newTargetClient(ctx, cfg)
	if err != nil {
		return err
	}

	prefix := s3.ManifestsPrefix
	if d := strings.Trim(listDate, "/"); d != "" {
		prefix = path.Join(prefix, d)
	}
	objs, err := target.ListObjects(ctx, prefix, 0)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		if strings.HasSuffix(o.Key, ".json") {
			keys = append(keys, o.Key)
		}
	}
	// keys sort by run date then run stamp
	slices.Sort(keys)
	slices.Reverse(keys)
	if listLimit > 0 && len(keys) > listLimit {
		keys = keys[:listLimit]
	}
	if len(keys) == 0 {
		cmd.Println("No archives found")
		return nil
	}

	for _, key := range keys {
		m, err := restore.FetchManifest(ctx, target, key)
		if err != nil {
			cmd.Printf("%s  ERROR: %v\n", key, err)
			continue
		}
		cmd.Printf("%s  %5d entries  %10s -> %10s  %s\n",
			m.CreatedAt.Format("2006-01-02 15:04:05"),
			len(m.Entries),
			humanize.IBytes(uint64(max(m.TotalBytes(), 0))),
			humanize.IBytes(uint64(max(m.ArchiveSize, 0))),
			m.ArchiveKey,
		)
	}
	return nil
}
