package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var (
	ingestDir   string
	ingestWatch bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index the policy corpus",
	Long: `Walk the corpus directory and index every .txt, .md and .pdf file.
The parent directory of each file is its policy category.

Examples:
  hrdesk ingest
  hrdesk ingest --dir ./policies
  hrdesk ingest --watch`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "Corpus directory (defaults to corpus_dir from config)")
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "Keep running and re-index changed files")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	res, err := buildForCLI(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = res.Cleanup() }()

	dir := ingestDir
	if dir == "" {
		dir = res.Config.CorpusDir
	}
	stats, err := res.Ingester.IngestDir(ctx, dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Indexed %d files into %d chunks (%d failed)\n", stats.Files, stats.Chunks, stats.Failed)
	cats := make([]string, 0, len(stats.ByCat))
	for c := range stats.ByCat {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		fmt.Fprintf(out, "  %-20s %d\n", c, stats.ByCat[c])
	}

	if !ingestWatch {
		return nil
	}
	return res.Ingester.Watch(ctx, dir)
}
