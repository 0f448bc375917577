package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pagecast/pagecast/internal/api"
	"github.com/pagecast/pagecast/internal/jobstore"
	"github.com/pagecast/pagecast/internal/structure"
	"github.com/pagecast/pagecast/internal/svcctx"
)

// DownloadEpubEndpoint handles GET /api/jobs/{id}/epub.
type DownloadEpubEndpoint struct{}

var _ api.Endpoint = (*DownloadEpubEndpoint)(nil)

func (e *DownloadEpubEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs/{id}/epub", e.handler
}

func (e *DownloadEpubEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.JobStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "job store not initialized")
		return
	}

	job, err := store.Job(r.Context(), r.PathValue("id"))
	if errors.Is(err, jobstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load job: %v", err))
		return
	}
	if job.Status != structure.JobCompleted || job.EpubPath == "" {
		writeError(w, http.StatusConflict, fmt.Sprintf("job is %s, archive not available", job.Status))
		return
	}
	if _, err := os.Stat(job.EpubPath); err != nil {
		writeError(w, http.StatusNotFound, "archive missing on disk")
		return
	}

	w.Header().Set("Content-Type", "application/epub+zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(job.EpubPath)))
	http.ServeFile(w, r, job.EpubPath)
}

func (e *DownloadEpubEndpoint) Command(getServerURL func() string) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "epub <id>",
		Short: "Download the finished EPUB for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outPath
			if out == "" {
				out = args[0] + ".epub"
			}
			client := api.NewClient(getServerURL())
			if err := client.Download(cmd.Context(), "/api/jobs/"+args[0]+"/epub", out); err != nil {
				return err
			}
			fmt.Printf("Saved %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file path")
	return cmd
}
