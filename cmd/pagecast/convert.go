package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagecast/pagecast/internal/api"
	"github.com/pagecast/pagecast/internal/structure"
)

var convertOut string

var convertCmd = &cobra.Command{
	Use:   "convert <file.pdf>",
	Short: "Convert a PDF to an accessible EPUB in-process",
	Long: `Convert runs the full conversion pipeline locally, without a server.

The finished EPUB is copied to the output path (default: the source file
name with an .epub extension).

If a <file>.sync.json sidecar exists next to the source, its audio timing
data is packaged as media overlays.

Examples:
  pagecast convert book.pdf
  pagecast convert book.pdf --out book.epub`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourcePath, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if _, err := os.Stat(sourcePath); err != nil {
			return fmt.Errorf("source file: %w", err)
		}

		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.store.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go rt.pool.Start(ctx)

		job, err := rt.orchestrator.Submit(ctx, sourcePath)
		if err != nil {
			return fmt.Errorf("submit conversion: %w", err)
		}
		rt.logger.Info("conversion started", "job_id", job.ID)

		final, err := waitForJob(ctx, rt, job.ID)
		if err != nil {
			return err
		}

		switch final.Status {
		case structure.JobCompleted:
			out := convertOut
			if out == "" {
				out = trimPDFExt(args[0]) + ".epub"
			}
			if err := copyFile(final.EpubPath, out); err != nil {
				return fmt.Errorf("copy archive: %w", err)
			}
			fmt.Printf("Saved %s\n", out)
			if final.RequiresReview {
				fmt.Printf("Warning: low confidence (%.2f), manual review recommended\n",
					final.ConfidenceScore)
			}
			return api.Output(final)
		case structure.JobFailed:
			return fmt.Errorf("conversion failed: %s", final.ErrorMessage)
		default:
			return fmt.Errorf("conversion did not finish: %s", final.Status)
		}
	},
}

// waitForJob polls the job store until the job reaches a terminal state.
func waitForJob(ctx context.Context, rt *runtime, jobID string) (*structure.ConversionJob, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastStep := structure.Step(-1)
	for {
		select {
		case <-ctx.Done():
			// Best effort: record the cancellation before exiting.
			_ = rt.orchestrator.Cancel(context.Background(), jobID)
			return rt.orchestrator.Job(context.Background(), jobID)
		case <-ticker.C:
			job, err := rt.orchestrator.Job(ctx, jobID)
			if err != nil {
				return nil, err
			}
			if job.Status == structure.JobInProgress && job.CurrentStep != lastStep {
				lastStep = job.CurrentStep
				rt.logger.Info("progress",
					"step", job.CurrentStep.String(),
					"percent", job.ProgressPercent)
			}
			if job.Status.Terminal() {
				return job, nil
			}
		}
	}
}

func trimPDFExt(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path
	}
	return path[:len(path)-len(ext)]
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func init() {
	convertCmd.Flags().StringVar(&convertOut, "out", "", "Output EPUB path")
	rootCmd.AddCommand(convertCmd)
}
