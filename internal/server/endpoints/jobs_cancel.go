package endpoints

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/pagecast/pagecast/internal/api"
	"github.com/pagecast/pagecast/internal/jobstore"
	"github.com/pagecast/pagecast/internal/structure"
	"github.com/pagecast/pagecast/internal/svcctx"
)

// CancelJobEndpoint handles POST /api/jobs/{id}/cancel.
type CancelJobEndpoint struct{}

var _ api.Endpoint = (*CancelJobEndpoint)(nil)

func (e *CancelJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/jobs/{id}/cancel", e.handler
}

func (e *CancelJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.JobStoreFrom(r.Context())
	orchestrator := svcctx.OrchestratorFrom(r.Context())
	if store == nil || orchestrator == nil {
		writeError(w, http.StatusServiceUnavailable, "services not initialized")
		return
	}

	jobID := r.PathValue("id")
	if _, err := store.Job(r.Context(), jobID); errors.Is(err, jobstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	err := orchestrator.Cancel(r.Context(), jobID)
	if errors.Is(err, jobstore.ErrJobTerminal) {
		writeError(w, http.StatusConflict, "job already finished")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to cancel job: %v", err))
		return
	}

	job, err := store.Job(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load job: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (e *CancelJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a conversion job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var job structure.ConversionJob
			if err := client.Post(cmd.Context(), "/api/jobs/"+args[0]+"/cancel", nil, &job); err != nil {
				return err
			}
			return api.Output(job)
		},
	}
}
