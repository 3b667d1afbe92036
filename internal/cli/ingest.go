package cli

import (
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <owner> <repo>",
	Short: "Fetch a GitHub repository and store its embeddings",
	Long: `Fetch the root-level files of a GitHub repository, split them into
chunks, embed each chunk, and upsert the vectors into the configured store.

Examples:
  talktocode ingest torvalds linux
  talktocode ingest golang go`,
	Args: cobra.ExactArgs(2),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	owner, repo := args[0], args[1]

	ctx := cmd.Context()
	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.cleanup()

	fmt.Printf("Fetching %s/%s...\n", owner, repo)

	// Progress bar is created lazily once the file count is known.
	var bar *progressbar.ProgressBar
	var barMu sync.Mutex

	progressCallback := func(done, total int, path string) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(done)
	}

	result, err := p.ingest.Ingest(ctx, owner, repo, progressCallback)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Files fetched:   %d\n", result.FilesFetched)
	fmt.Printf("  Files skipped:   %d\n", result.FilesSkipped)
	fmt.Printf("  Chunks created:  %d\n", result.ChunksCreated)
	fmt.Printf("  Chunks embedded: %d\n", result.ChunksEmbedded)
	fmt.Printf("  Chunks failed:   %d\n", result.ChunksFailed)
	fmt.Printf("  Vectors stored:  %d\n", result.VectorsUpserted)

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	return nil
}
